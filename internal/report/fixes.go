package report

import "cudadoctor/internal/capability"

// GPUFix is the fix key for a machine without a visible NVIDIA GPU.
const GPUFix = "gpu"

// Fix returns installation guidance for a missing capability on goos.
// Unknown names yield "".
func Fix(name, goos string) string {
	switch name {
	case GPUFix:
		return gpuFix(goos)
	case capability.Driver:
		return driverFix(goos)
	case capability.Toolkit:
		return toolkitFix(goos)
	case capability.CuDNN:
		return cudnnFix(goos)
	case capability.TensorFlow:
		return tensorflowFix
	case capability.PyTorch:
		return pytorchFix
	case capability.Python:
		return pythonFix(goos)
	case capability.Pip:
		return pipFix
	default:
		return ""
	}
}

func gpuFix(goos string) string {
	switch goos {
	case "windows":
		return `Hardware:
  - Check the card is seated and its PCIe power connectors are attached
  - Device Manager > Display adapters: update an "Unknown device" entry
BIOS:
  - Enable the PCIe slot and make it the primary display adapter`
	case "darwin":
		return `macOS 10.14 and later do not support NVIDIA GPUs.
  - Check System Information > Graphics/Displays
  - system_profiler SPDisplaysDataType`
	default:
		return `Hardware:
  - Check the card is seated and its PCIe power connectors are attached
Detection:
  - lspci | grep -i nvidia
  - sudo lshw -c display
Driver:
  - The GPU is only listed by nvidia-smi once a driver is loaded`
	}
}

func driverFix(goos string) string {
	if goos == "windows" {
		return `Install the driver:
  1. Download it from https://www.nvidia.com/Download/index.aspx
  2. Run the installer as Administrator, choose "Custom (Advanced)" > clean install
  3. Restart
Use DDU to remove a broken previous driver first.`
	}
	return `Ubuntu/Debian:  sudo apt install nvidia-driver-535 && sudo reboot
Fedora/RHEL:    sudo dnf install akmod-nvidia && sudo akmods --force && sudo reboot
Arch:           sudo pacman -S nvidia nvidia-utils && sudo reboot
Verify:         nvidia-smi  or  cat /proc/driver/nvidia/version`
}

func toolkitFix(goos string) string {
	if goos == "windows" {
		return `Install from https://developer.nvidia.com/cuda-downloads (Windows x86_64).
Set CUDA_PATH to C:\Program Files\NVIDIA GPU Computing Toolkit\CUDA\vX.Y
and add %CUDA_PATH%\bin to PATH.
Verify: nvcc --version`
	}
	return `Install from https://developer.nvidia.com/cuda-downloads or your package manager
(Ubuntu: sudo apt install cuda-toolkit).
Then:
  export PATH=/usr/local/cuda/bin:$PATH
  export LD_LIBRARY_PATH=/usr/local/cuda/lib64:$LD_LIBRARY_PATH
Verify: nvcc --version`
}

func cudnnFix(goos string) string {
	if goos == "windows" {
		return `Download cuDNN for your CUDA version from https://developer.nvidia.com/cudnn
and copy its bin, include and lib folders into %CUDA_PATH%.
Conda alternative: conda install cudnn`
	}
	return `Download cuDNN for your CUDA version from https://developer.nvidia.com/cudnn, then:
  sudo cp cuda/include/cudnn*.h /usr/local/cuda/include
  sudo cp cuda/lib64/libcudnn* /usr/local/cuda/lib64
  sudo chmod a+r /usr/local/cuda/include/cudnn*.h /usr/local/cuda/lib64/libcudnn*
Conda alternative: conda install cudnn
Verify: python -c "import torch; print(torch.backends.cudnn.version())"`
}

const tensorflowFix = `CPU:  pip install tensorflow
GPU:  pip install "tensorflow[and-cuda]"
Verify: python -c "import tensorflow as tf; print(tf.config.list_physical_devices('GPU'))"
Guide: https://www.tensorflow.org/install`

const pytorchFix = `Pick the command for your CUDA version at https://pytorch.org/get-started/locally/
CUDA 12.1: pip install torch torchvision torchaudio --index-url https://download.pytorch.org/whl/cu121
CPU only:  pip install torch torchvision torchaudio --index-url https://download.pytorch.org/whl/cpu
Verify: python -c "import torch; print(torch.cuda.is_available())"`

func pythonFix(goos string) string {
	switch goos {
	case "windows":
		return `Install Python 3 from https://www.python.org/downloads/windows/ and tick "Add python.exe to PATH".`
	case "darwin":
		return `brew install python@3.11`
	default:
		return `Ubuntu/Debian: sudo apt install python3 python3-venv python3-pip`
	}
}

const pipFix = `python -m ensurepip --upgrade
or: python -m pip install --upgrade pip`
