package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"cudadoctor/internal/logging"
)

// DefaultTimeout bounds a single strategy attempt.
const DefaultTimeout = 45 * time.Second

// CommandOutput is the captured result of an external process.
type CommandOutput struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner runs a process and captures stdout and stderr separately.
// It returns an error when the process cannot start or exits non-zero.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (CommandOutput, error)
}

// FileFinder locates and reads files.
type FileFinder interface {
	// Find walks root and returns the first file whose base name is in names.
	Find(ctx context.Context, root string, names []string, maxDepth int) (string, error)
	// Exists reports whether path names a regular file.
	Exists(path string) bool
	ReadFile(path string) ([]byte, error)
}

// Executor runs one strategy attempt.
type Executor interface {
	Execute(ctx context.Context, s Strategy) Result
}

// ExecRunner implements CommandRunner with os/exec.
type ExecRunner struct{}

// Run executes the command without a shell.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (CommandOutput, error) {
	// #nosec G204 -- argv comes from the built-in strategy tables
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := CommandOutput{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return out, fmt.Errorf("%s: %w", name, ErrTimeout)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, fmt.Errorf("%s exited with code %d: %s", name, out.ExitCode, strings.TrimSpace(out.Stderr))
		}
		return out, fmt.Errorf("failed to run %s: %w", name, err)
	}

	return out, nil
}

// OSFinder implements FileFinder on the local filesystem.
type OSFinder struct{}

// Find walks root depth-first. Unreadable directories are skipped.
func (OSFinder) Find(ctx context.Context, root string, names []string, maxDepth int) (string, error) {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", err
	}

	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}

	var found string
	walkErr := filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if d.IsDir() {
			if maxDepth > 0 && depthBelow(resolved, path) >= maxDepth {
				return filepath.SkipDir
			}
			return nil
		}

		if _, ok := want[d.Name()]; ok {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if walkErr != nil {
		return "", walkErr
	}
	if found == "" {
		return "", ErrNotFound
	}
	return found, nil
}

// Exists reports whether path is a regular file (after following links).
func (OSFinder) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ReadFile reads a whole file.
func (OSFinder) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path comes from a scan of known roots
}

func depthBelow(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

// ExecutorOptions configures a SystemExecutor. Zero values get defaults.
type ExecutorOptions struct {
	Runner  CommandRunner
	Finder  FileFinder
	Getenv  func(string) string
	Timeout time.Duration
	Logger  *logging.Logger
	// Redact is applied to captured output before it is logged.
	Redact func(string) string
}

// SystemExecutor executes strategies against the real system through its
// collaborators. Each attempt gets its own timeout.
type SystemExecutor struct {
	runner  CommandRunner
	finder  FileFinder
	getenv  func(string) string
	timeout time.Duration
	logger  *logging.Logger
	redact  func(string) string
}

// NewExecutor creates a strategy executor.
func NewExecutor(opts ExecutorOptions) *SystemExecutor {
	e := &SystemExecutor{
		runner:  opts.Runner,
		finder:  opts.Finder,
		getenv:  opts.Getenv,
		timeout: opts.Timeout,
		logger:  opts.Logger,
		redact:  opts.Redact,
	}
	if e.runner == nil {
		e.runner = ExecRunner{}
	}
	if e.finder == nil {
		e.finder = OSFinder{}
	}
	if e.getenv == nil {
		e.getenv = os.Getenv
	}
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}
	if e.logger == nil {
		e.logger = logging.Nop()
	}
	if e.redact == nil {
		e.redact = func(s string) string { return s }
	}
	return e
}

// Execute runs one strategy attempt and never panics on bad strategy data.
func (e *SystemExecutor) Execute(ctx context.Context, s Strategy) Result {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	switch s.Kind {
	case KindCommand:
		if len(s.Command) == 0 {
			return Failure(ErrEmptyCommand)
		}
		return e.runCommand(ctx, s.Command[0], s.Command[1:])

	case KindFileScan:
		path, err := e.scan(ctx, s)
		if err != nil {
			return Failure(err)
		}
		return e.consume(ctx, s, path)

	case KindEnvironment:
		path, err := e.lookupEnv(s)
		if err != nil {
			return Failure(err)
		}
		return e.consume(ctx, s, path)

	case KindLibrary:
		return e.query(ctx, s)

	default:
		return Failure(fmt.Errorf("unknown strategy kind %q", s.Kind))
	}
}

func (e *SystemExecutor) runCommand(ctx context.Context, name string, args []string) Result {
	out, err := e.runner.Run(ctx, name, args...)

	if e.logger.DebugEnabled() {
		e.logger.Debug("probe.command.output", "Command finished", map[string]interface{}{
			"command":   strings.TrimSpace(name + " " + strings.Join(args, " ")),
			"exit_code": out.ExitCode,
			"stdout":    e.redact(strings.TrimSpace(out.Stdout)),
			"stderr":    e.redact(strings.TrimSpace(out.Stderr)),
		})
	}

	if err != nil {
		return Failure(err)
	}
	return Success(out.Stdout)
}

func (e *SystemExecutor) scan(ctx context.Context, s Strategy) (string, error) {
	for _, root := range s.Roots {
		path, err := e.finder.Find(ctx, root, s.FileNames, s.MaxDepth)
		if err == nil {
			e.logger.Debug("probe.scan.found", "File located", map[string]interface{}{
				"root": root,
				"path": path,
			})
			return path, nil
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("scan %s: %w", root, ErrTimeout)
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", ErrNotFound
}

func (e *SystemExecutor) lookupEnv(s Strategy) (string, error) {
	value := e.getenv(s.EnvVar)
	if value == "" {
		return "", fmt.Errorf("$%s is not set: %w", s.EnvVar, ErrNotFound)
	}
	for _, dir := range filepath.SplitList(value) {
		if dir == "" {
			continue
		}
		for _, name := range s.FileNames {
			candidate := filepath.Join(dir, name)
			if e.finder.Exists(candidate) {
				return candidate, nil
			}
		}
	}
	return "", ErrNotFound
}

func (e *SystemExecutor) consume(ctx context.Context, s Strategy, path string) Result {
	if s.RunArgs != nil {
		return e.runCommand(ctx, path, s.RunArgs)
	}
	data, err := e.finder.ReadFile(path)
	if err != nil {
		return Failure(fmt.Errorf("read %s: %w", path, err))
	}
	return Success(string(data))
}

// query runs a library query in its own goroutine so that a hung native call
// still yields a timeout failure.
func (e *SystemExecutor) query(ctx context.Context, s Strategy) Result {
	if s.Query == nil {
		return Failure(ErrNoQuery)
	}

	done := make(chan Result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- Failure(fmt.Errorf("library query panicked: %v", p))
			}
		}()
		out, err := s.Query(ctx)
		if err != nil {
			done <- Failure(err)
			return
		}
		done <- Success(out)
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Failure(fmt.Errorf("%s: %w", s.Label(), ErrTimeout))
		}
		return Failure(ctx.Err())
	}
}
