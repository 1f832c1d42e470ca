package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"cudadoctor/internal/config"
)

// bundleAuto is the --bundle value used when the flag is given without a path.
const bundleAuto = "auto"

type rootFlags struct {
	verbose        bool
	showfix        bool
	configPath     string
	timeout        int
	exportPath     string
	importPath     string
	sysinfo        bool
	validateConfig bool
	multiGPU       bool
	tui            bool
	bundlePath     string
}

// validate rejects flag values cobra cannot check by itself.
func (f *rootFlags) validate(cmd *cobra.Command) error {
	if cmd.Flags().Changed("timeout") && (f.timeout < 1 || f.timeout > 600) {
		return fmt.Errorf("--timeout must be between 1 and 600 seconds, got %d", f.timeout)
	}
	if cmd.Flags().Changed("export") && f.exportPath == "" {
		return fmt.Errorf("--export requires a file path")
	}
	if cmd.Flags().Changed("import") && f.importPath == "" {
		return fmt.Errorf("--import requires a file path")
	}
	return nil
}

// apply folds command line overrides into the loaded configuration.
func (f *rootFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("timeout") {
		cfg.Probe.TimeoutSeconds = f.timeout
	}
	if f.verbose {
		cfg.Logging.Level = "debug"
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "cudadoctor",
		Short: "cudadoctor checks a machine's GPU, CUDA and deep-learning framework setup",
		Long: `cudadoctor detects the NVIDIA driver, CUDA toolkit, cuDNN, TensorFlow, PyTorch
and Python on this machine and reports what it found. Snapshots can be
exported and compared against another machine.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flags.validate(cmd); err != nil {
				return err
			}

			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			flags.apply(cmd, &cfg)

			a, err := newApp(cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			switch {
			case cmd.Flags().Changed("export"):
				return a.export(ctx, flags.exportPath)
			case cmd.Flags().Changed("import"):
				return a.compare(ctx, flags.importPath)
			case flags.sysinfo:
				return a.systemInfo(ctx)
			case flags.validateConfig:
				return a.validateConfig(ctx)
			case flags.multiGPU:
				return a.multiGPU(ctx)
			case flags.tui:
				return a.interactive(ctx)
			case cmd.Flags().Changed("bundle"):
				return a.bundle(ctx, flags.bundlePath)
			default:
				return a.sweep(ctx, flags.showfix)
			}
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	f := cmd.Flags()
	f.BoolVarP(&flags.verbose, "verbose", "v", false, "Log every probe attempt to stderr")
	f.BoolVar(&flags.showfix, "showfix", false, "Show installation guides for missing components")
	f.StringVarP(&flags.configPath, "config", "c", "", "Configuration file (YAML)")
	f.IntVar(&flags.timeout, "timeout", config.DefaultTimeoutSeconds, "Seconds each probe attempt may take (1-600)")

	f.StringVar(&flags.exportPath, "export", "", "Export the environment snapshot to `FILE`")
	f.StringVar(&flags.importPath, "import", "", "Compare this machine against a snapshot `FILE`")
	f.BoolVar(&flags.sysinfo, "sysinfo", false, "Show detailed system information")
	f.BoolVar(&flags.validateConfig, "validate-config", false, "Check environment variables, linked libraries and device nodes")
	f.BoolVar(&flags.multiGPU, "multi-gpu", false, "Show live status of every GPU")
	f.BoolVar(&flags.tui, "tui", false, "Run the checks interactively")
	f.StringVar(&flags.bundlePath, "bundle", "", "Write a diagnostic zip bundle (default name when no `FILE` is given)")
	f.Lookup("bundle").NoOptDefVal = bundleAuto

	cmd.MarkFlagsMutuallyExclusive("export", "import", "sysinfo", "validate-config", "multi-gpu", "tui", "bundle")

	return cmd
}
