// Package detect wires strategy chains to parsers, one chain per capability.
// The chains for the running platform are computed once as a Plan.
package detect

import (
	"context"
	"path/filepath"
	"runtime"

	"cudadoctor/internal/capability"
	"cudadoctor/internal/parse"
	"cudadoctor/internal/probe"
)

// Operating systems with platform-specific strategies.
const (
	Linux   = "linux"
	Windows = "windows"
	Darwin  = "darwin"
)

const (
	scriptTFVersion    = "import tensorflow as tf; print(tf.__version__)"
	scriptTorchVersion = "import torch; print(torch.__version__)"
	scriptTorchCUDA    = "import torch; print(torch.version.cuda)"
	scriptTFCUDA       = "import tensorflow as tf; print(tf.sysconfig.get_build_info()['cuda_version'])"
	scriptTorchCuDNN   = "import torch; print(torch.backends.cudnn.version())"
	scriptTFCuDNN      = "import tensorflow as tf; print(tf.sysconfig.get_build_info()['cudnn_version'])"
)

// Platform identifies the machine the plan is built for.
type Platform struct {
	OS   string
	Arch string
}

// CurrentPlatform returns the platform of the running process.
func CurrentPlatform() Platform {
	return Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// Libraries provides in-process queries whose answers are rendered as the
// text nvidia-smi or lspci would print. *gpu.Detector implements it.
type Libraries interface {
	DriverVersion(ctx context.Context) (string, error)
	DeviceTable(ctx context.Context) (string, error)
	PCIDevices(ctx context.Context) (string, error)
}

// Settings tune the interpreters and search roots used by the plan.
type Settings struct {
	Python    []string
	Pip       []string
	Conda     string
	CUDARoots []string
}

// DefaultSettings returns the interpreters tried when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Python: []string{"python", "python3"},
		Pip:    []string{"pip", "pip3"},
		Conda:  "conda",
	}
}

// Plan holds the ordered strategy chain of every capability.
type Plan struct {
	Platform   Platform
	Driver     []probe.Step[string]
	Toolkit    []probe.Step[string]
	CuDNN      []probe.Step[string]
	TensorFlow []probe.Step[string]
	PyTorch    []probe.Step[string]
	Python     []probe.Step[string]
	Pip        []probe.Step[string]
	GPUs       []probe.Step[[]capability.Device]
}

// DefaultCUDARoots are the directory trees scanned for toolkit files.
func DefaultCUDARoots(goos string) []string {
	switch goos {
	case Windows:
		return []string{
			`C:\Program Files\NVIDIA GPU Computing Toolkit\CUDA`,
			`C:\Program Files\NVIDIA Corporation\NVSMI`,
			`C:\Windows\System32`,
		}
	case Darwin:
		return []string{"/usr/local/cuda", "/Developer/NVIDIA"}
	default:
		return []string{"/usr/local/cuda", "/opt/cuda", "/usr/include", "/usr/local/include"}
	}
}

// NewPlan computes every chain for the given platform. Strategies that do
// not apply to the platform are left out rather than skipped at run time.
func NewPlan(p Platform, s Settings, libs Libraries) Plan {
	if len(s.Python) == 0 {
		s.Python = DefaultSettings().Python
	}
	if len(s.Pip) == 0 {
		s.Pip = DefaultSettings().Pip
	}
	if s.Conda == "" {
		s.Conda = DefaultSettings().Conda
	}
	roots := s.CUDARoots
	if len(roots) == 0 {
		roots = DefaultCUDARoots(p.OS)
	}

	b := builder{platform: p, settings: s, roots: roots, libs: libs}
	return Plan{
		Platform:   p,
		Driver:     b.driver(),
		Toolkit:    b.toolkit(),
		CuDNN:      b.cudnn(),
		TensorFlow: b.framework("tensorflow", scriptTFVersion, []string{"tensorflow"}),
		PyTorch:    b.framework("torch", scriptTorchVersion, []string{"pytorch", "torch"}),
		Python:     b.python(),
		Pip:        b.pip(),
		GPUs:       b.gpus(),
	}
}

type builder struct {
	platform Platform
	settings Settings
	roots    []string
	libs     Libraries
}

func command(argv ...string) probe.Strategy {
	return probe.Strategy{Kind: probe.KindCommand, Command: argv}
}

func step(s probe.Strategy, parser func(string) (string, bool)) probe.Step[string] {
	return probe.Step[string]{Strategy: s, Parse: parser}
}

func (b builder) exe(name string) string {
	if b.platform.OS == Windows {
		return name + ".exe"
	}
	return name
}

func (b builder) library(name string, query func(context.Context) (string, error)) probe.Strategy {
	return probe.Strategy{Name: name, Kind: probe.KindLibrary, Query: query}
}

// pythonScripts runs script under every configured interpreter.
func (b builder) pythonScripts(script string, parser func(string) (string, bool)) []probe.Step[string] {
	steps := make([]probe.Step[string], 0, len(b.settings.Python))
	for _, py := range b.settings.Python {
		steps = append(steps, step(command(py, "-c", script), parser))
	}
	return steps
}

func (b builder) driver() []probe.Step[string] {
	var steps []probe.Step[string]
	if b.libs != nil {
		steps = append(steps, step(b.library("nvml driver version", b.libs.DriverVersion), parse.DriverVersion))
	}
	steps = append(steps, step(command("nvidia-smi", "--query-gpu=driver_version", "--format=csv,noheader"), parse.DriverVersion))

	switch b.platform.OS {
	case Linux:
		steps = append(steps, step(probe.Strategy{
			Name:      "/proc/driver/nvidia/version",
			Kind:      probe.KindFileScan,
			Roots:     []string{"/proc/driver/nvidia"},
			FileNames: []string{"version"},
			MaxDepth:  1,
		}, parse.ProcDriverVersion))
	case Windows:
		steps = append(steps, step(probe.Strategy{
			Kind:      probe.KindFileScan,
			Roots:     []string{`C:\Program Files\NVIDIA Corporation\NVSMI`, `C:\Windows\System32`},
			FileNames: []string{"nvidia-smi.exe"},
			MaxDepth:  1,
			RunArgs:   []string{"--query-gpu=driver_version", "--format=csv,noheader"},
		}, parse.DriverVersion))
	}
	return steps
}

func (b builder) toolkit() []probe.Step[string] {
	steps := []probe.Step[string]{
		step(command("nvcc", "--version"), parse.NvccVersion),
	}

	if b.platform.OS != Windows {
		steps = append(steps,
			step(command("/usr/local/cuda/bin/nvcc", "--version"), parse.NvccVersion),
			step(command("/opt/cuda/bin/nvcc", "--version"), parse.NvccVersion),
		)
	}

	for _, env := range []string{"CUDA_HOME", "CUDA_PATH"} {
		steps = append(steps, step(probe.Strategy{
			Kind:      probe.KindEnvironment,
			EnvVar:    env,
			FileNames: []string{filepath.Join("bin", b.exe("nvcc"))},
			RunArgs:   []string{"--version"},
		}, parse.NvccVersion))
	}

	if b.platform.OS == Linux {
		home := []string{"/usr/local/cuda"}
		if len(b.settings.CUDARoots) > 0 {
			home = b.settings.CUDARoots
		}
		steps = append(steps,
			step(probe.Strategy{
				Kind:      probe.KindFileScan,
				Roots:     home,
				FileNames: []string{"version.json"},
				MaxDepth:  1,
			}, parse.CudaVersionJSON),
			step(probe.Strategy{
				Kind:      probe.KindFileScan,
				Roots:     home,
				FileNames: []string{"version.txt"},
				MaxDepth:  1,
			}, parse.CudaVersionTxt),
		)
	}

	steps = append(steps, b.pythonScripts(scriptTorchCUDA, parse.ImportedVersion)...)
	steps = append(steps, b.pythonScripts(scriptTFCUDA, parse.ImportedVersion)...)

	steps = append(steps, step(probe.Strategy{
		Name:      "scan CUDA roots for nvcc",
		Kind:      probe.KindFileScan,
		Roots:     b.roots,
		FileNames: []string{"nvcc", "nvcc.exe"},
		RunArgs:   []string{"--version"},
	}, parse.NvccVersion))

	return steps
}

func (b builder) cudnn() []probe.Step[string] {
	var steps []probe.Step[string]

	switch b.platform.OS {
	case Windows:
		steps = append(steps, step(probe.Strategy{
			Kind:      probe.KindEnvironment,
			EnvVar:    "PATH",
			FileNames: []string{"cudnn_version.h"},
		}, parse.CudnnHeader))
	case Linux:
		steps = append(steps, step(probe.Strategy{
			Kind:      probe.KindEnvironment,
			EnvVar:    "LD_LIBRARY_PATH",
			FileNames: []string{"cudnn_version.h"},
		}, parse.CudnnHeader))
	}

	steps = append(steps,
		step(probe.Strategy{
			Kind:      probe.KindEnvironment,
			EnvVar:    "CUDA_HOME",
			FileNames: []string{filepath.Join("include", "cudnn_version.h")},
		}, parse.CudnnHeader),
		step(probe.Strategy{
			Name:      "scan CUDA roots for cudnn_version.h",
			Kind:      probe.KindFileScan,
			Roots:     b.roots,
			FileNames: []string{"cudnn_version.h"},
		}, parse.CudnnHeader),
		step(probe.Strategy{
			Name:      "scan CUDA roots for cudnn.h",
			Kind:      probe.KindFileScan,
			Roots:     b.roots,
			FileNames: []string{"cudnn.h"},
		}, parse.CudnnHeader),
	)

	steps = append(steps, b.pythonScripts(scriptTorchCuDNN, parse.CudnnVersion)...)
	steps = append(steps, b.pythonScripts(scriptTFCuDNN, parse.CudnnVersion)...)
	return steps
}

// framework tries the import probe under every interpreter, then every pip,
// then conda under each of its package names.
func (b builder) framework(pipName, script string, condaNames []string) []probe.Step[string] {
	steps := b.pythonScripts(script, parse.ImportedVersion)
	for _, pip := range b.settings.Pip {
		steps = append(steps, step(command(pip, "show", pipName), parse.PipShow))
	}
	for _, name := range condaNames {
		steps = append(steps, step(command(b.settings.Conda, "list", name), parse.CondaList(name)))
	}
	return steps
}

func (b builder) python() []probe.Step[string] {
	steps := make([]probe.Step[string], 0, len(b.settings.Python)+1)
	for _, py := range b.settings.Python {
		steps = append(steps, step(command(py, "--version"), parse.PythonVersion))
	}
	if b.platform.OS == Windows {
		steps = append(steps, step(command("py", "--version"), parse.PythonVersion))
	}
	return steps
}

func (b builder) pip() []probe.Step[string] {
	steps := make([]probe.Step[string], 0, len(b.settings.Pip)+len(b.settings.Python))
	for _, pip := range b.settings.Pip {
		steps = append(steps, step(command(pip, "--version"), parse.PipVersion))
	}
	for _, py := range b.settings.Python {
		steps = append(steps, step(command(py, "-m", "pip", "--version"), parse.PipVersion))
	}
	return steps
}

func (b builder) gpus() []probe.Step[[]capability.Device] {
	type devStep = probe.Step[[]capability.Device]

	var steps []devStep
	if b.libs != nil {
		steps = append(steps, devStep{
			Strategy: b.library("nvml devices", b.libs.DeviceTable),
			Parse:    parse.GPUTable(true),
		})
	}

	steps = append(steps,
		devStep{
			Strategy: command("nvidia-smi", "--query-gpu=name,memory.total,compute_cap", "--format=csv,noheader,nounits"),
			Parse:    parse.GPUTable(true),
		},
		devStep{
			Strategy: command("nvidia-smi", "--query-gpu=name,memory.total", "--format=csv,noheader,nounits"),
			Parse:    parse.GPUTable(false),
		},
	)

	if b.libs != nil {
		steps = append(steps, devStep{
			Strategy: b.library("pci enumeration", b.libs.PCIDevices),
			Parse:    parse.DeviceNames,
		})
	}

	switch b.platform.OS {
	case Linux:
		steps = append(steps, devStep{Strategy: command("lspci"), Parse: parse.DeviceNames})
	case Windows:
		steps = append(steps, devStep{Strategy: command("wmic", "path", "win32_VideoController", "get", "name"), Parse: parse.DeviceNames})
	case Darwin:
		steps = append(steps, devStep{Strategy: command("system_profiler", "SPDisplaysDataType"), Parse: parse.DeviceNames})
	}

	steps = append(steps, devStep{Strategy: command("nvidia-smi", "-L"), Parse: parse.SMIList})
	return steps
}
