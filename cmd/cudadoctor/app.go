package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"cudadoctor/internal/capability"
	"cudadoctor/internal/config"
	"cudadoctor/internal/detect"
	"cudadoctor/internal/diag"
	"cudadoctor/internal/gpu"
	"cudadoctor/internal/logging"
	"cudadoctor/internal/probe"
	"cudadoctor/internal/reconcile"
	"cudadoctor/internal/report"
	"cudadoctor/internal/snapshot"
	"cudadoctor/internal/sysinfo"
	"cudadoctor/internal/tui"
)

// app holds the collaborators shared by every mode.
type app struct {
	logger   *logging.Logger
	redactor *diag.Redactor
	exec     probe.Executor
	runner   *probe.Runner
	gpus     *gpu.Detector
	detector *detect.Detector
	host     *sysinfo.HostReader
	builder  *snapshot.Builder
	reporter *report.Reporter
}

func newApp(cfg config.Config, stdout, stderr io.Writer) (*app, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}
	logger := logging.NewWriterLogger(level, logging.Format(cfg.Logging.Format), stderr)
	redactor := diag.NewRedactor()

	exec, err := probe.NewCachingExecutor(probe.NewExecutor(probe.ExecutorOptions{
		Timeout: cfg.Timeout(),
		Logger:  logger,
		Redact:  redactor.Redact,
	}), cfg.Probe.CacheSize, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create probe cache: %w", err)
	}
	runner := probe.NewRunner(exec, logger)

	gpus := gpu.NewDetector(logger)
	plan := detect.NewPlan(detect.CurrentPlatform(), detect.Settings{
		Python:    cfg.Probe.Python,
		Pip:       cfg.Probe.Pip,
		Conda:     cfg.Probe.Conda,
		CUDARoots: cfg.Search.CUDARoots,
	}, gpus)
	detector := detect.NewDetector(runner, plan, logger)
	host := sysinfo.NewHostReader(logger)

	logger.Debug("cli.start", "cudadoctor starting", map[string]interface{}{
		"version":      version,
		"os":           runtime.GOOS,
		"nvml":         gpus.NVMLEnabled(),
		"timeout_secs": cfg.Probe.TimeoutSeconds,
	})

	return &app{
		logger:   logger,
		redactor: redactor,
		exec:     exec,
		runner:   runner,
		gpus:     gpus,
		detector: detector,
		host:     host,
		builder:  snapshot.NewBuilder(detector, host, logger),
		reporter: report.New(stdout, runtime.GOOS),
	}, nil
}

func (a *app) close() {
	if cache, ok := a.exec.(*probe.CachingExecutor); ok {
		a.logger.Debug("probe.cache.stats", "Probe cache statistics", map[string]interface{}{
			"hits": cache.Hits(),
		})
	}
}

// sweep runs the default check of every capability.
func (a *app) sweep(ctx context.Context, showfix bool) error {
	snap := a.builder.Build(ctx)
	a.reporter.Sweep(snap, a.detector.PipVersion(ctx), showfix)
	if snap.NothingDetected() {
		return errNothingDetected
	}
	return nil
}

func (a *app) export(ctx context.Context, path string) error {
	snap := a.builder.Build(ctx)
	if err := snapshot.WriteFile(path, snap, a.logger); err != nil {
		return err
	}
	a.reporter.Exported(path, snap)
	return nil
}

// compare reads the remote snapshot before probing anything, so a bad file
// fails fast.
func (a *app) compare(ctx context.Context, path string) error {
	remote, err := snapshot.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to import %s: %w", path, err)
	}

	local := a.builder.Build(ctx)
	entries := reconcile.Reconcile(local, remote)

	summary := reconcile.Summary(entries)
	a.logger.Info("reconcile.complete", "Snapshots compared", map[string]interface{}{
		"remote_host": remote.Hostname,
		"match":       summary[reconcile.Match],
		"mismatch":    summary[reconcile.Mismatch],
		"local_only":  summary[reconcile.LocalOnly],
		"remote_only": summary[reconcile.RemoteOnly],
	})

	a.reporter.Comparison(remote, entries)
	return nil
}

func (a *app) systemView(ctx context.Context) report.SystemView {
	return report.SystemView{
		Info:        a.host.Read(ctx),
		Hostname:    sysinfo.Hostname(),
		GPUs:        a.detector.GPUs(ctx),
		Python:      a.detector.PythonVersion(ctx),
		Pip:         a.detector.PipVersion(ctx),
		VirtualEnv:  diag.ActiveEnvironment(os.LookupEnv),
		Environment: a.redactor.Environment(os.LookupEnv),
	}
}

func (a *app) systemInfo(ctx context.Context) error {
	a.reporter.SystemInfo(a.systemView(ctx))
	return nil
}

func (a *app) checks(ctx context.Context) []diag.Check {
	return diag.NewValidator(a.exec, gpu.NewToolkitDetector(a.exec, a.logger), a.logger).Validate(ctx)
}

func (a *app) validateConfig(ctx context.Context) error {
	a.reporter.Checks(a.checks(ctx))
	return nil
}

func (a *app) multiGPU(ctx context.Context) error {
	status, _ := a.gpus.Status(ctx, a.runner)
	topology, _ := gpu.Topology(ctx, a.runner)

	var devices []capability.Device
	if len(status.Devices) == 0 {
		devices = a.detector.GPUs(ctx)
	}
	a.reporter.MultiGPU(status, topology, devices)
	return nil
}

func (a *app) interactive(ctx context.Context) error {
	return tui.Run(ctx, tui.DefaultChecks(a.detector), a.logger)
}

// bundle collects the snapshot, validation checks, GPU status and redacted
// environment into one zip archive.
func (a *app) bundle(ctx context.Context, path string) error {
	if path == "" || path == bundleAuto {
		path = diag.DefaultBundleName(time.Now())
	}

	snap := a.builder.Build(ctx)
	status, _ := a.gpus.Status(ctx, a.runner)

	files := map[string][]byte{}
	var err error
	if files["snapshot.json"], err = snapshot.Encode(snap); err != nil {
		return err
	}
	if files["checks.json"], err = diag.JSONFile(a.checks(ctx)); err != nil {
		return err
	}
	if files["gpu_status.json"], err = diag.JSONFile(status); err != nil {
		return err
	}
	if files["environment.json"], err = diag.JSONFile(a.redactor.Environment(os.LookupEnv)); err != nil {
		return err
	}

	if err := diag.NewPackager(version, sysinfo.Hostname, a.logger).Write(path, files); err != nil {
		return err
	}
	a.reporter.Bundled(path, len(files)+1)
	return nil
}
