package parse

import (
	"regexp"
	"strconv"
	"strings"

	"cudadoctor/internal/capability"
)

var (
	pciRevision = regexp.MustCompile(`\s*\(rev [0-9a-fA-F]+\)\s*$`)
	pciSkip     = []string{"audio", "usb", "serial bus", "bridge"}

	computeCapability = regexp.MustCompile(`^\d+\.\d+$`)
)

// Unavailable reports whether an nvidia-smi cell carries no value.
func Unavailable(cell string) bool {
	switch strings.TrimSpace(cell) {
	case "", "N/A", "[N/A]", "[Not Supported]", "Not Supported":
		return true
	}
	return false
}

// CSVCells splits one nvidia-smi csv,noheader row into trimmed cells.
func CSVCells(row string) []string {
	cells := strings.Split(row, ",")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells
}

// GPUTable returns a parser for
// `nvidia-smi --query-gpu=name,memory.total[,compute_cap] --format=csv,noheader,nounits`.
// Memory is reported in MiB and converted to GiB. The name is whatever
// precedes the fixed trailing columns, so names containing commas survive.
func GPUTable(withComputeCapability bool) func(string) ([]capability.Device, bool) {
	trailing := 1
	if withComputeCapability {
		trailing = 2
	}

	return func(raw string) ([]capability.Device, bool) {
		var devices []capability.Device
		for _, l := range lines(raw) {
			if dev, ok := gpuRow(CSVCells(l), trailing, withComputeCapability); ok {
				devices = append(devices, dev)
			}
		}
		return devices, len(devices) > 0
	}
}

// gpuRow reads one GPUTable row. Rows that do not have the expected
// trailing columns are diagnostics and are rejected.
func gpuRow(cells []string, trailing int, withComputeCapability bool) (capability.Device, bool) {
	if len(cells) < trailing+1 {
		return capability.Device{}, false
	}
	name := strings.Join(cells[:len(cells)-trailing], ", ")
	if name == "" || HasNotFoundMarker(name) {
		return capability.Device{}, false
	}

	dev := capability.Device{Name: name}

	memCell := cells[len(cells)-trailing]
	if !Unavailable(memCell) {
		mib, err := strconv.ParseFloat(memCell, 64)
		if err != nil {
			return capability.Device{}, false
		}
		gb := mib / 1024.0
		dev.MemoryGB = &gb
	}

	if withComputeCapability {
		cc := cells[len(cells)-1]
		switch {
		case Unavailable(cc):
		case computeCapability.MatchString(cc):
			dev.ComputeCapability = &cc
		default:
			return capability.Device{}, false
		}
	}
	return dev, true
}

// DeviceNames extracts NVIDIA device names from PCI listings: lspci lines,
// wmic VideoController output, system_profiler "Chipset Model" lines, or
// the one-name-per-line rendering of an in-process PCI enumeration.
// Non-display NVIDIA functions (HDMI audio, USB-C controllers) are skipped.
func DeviceNames(raw string) ([]capability.Device, bool) {
	var devices []capability.Device
	for _, l := range lines(raw) {
		lower := strings.ToLower(l)
		// system_profiler section headers end with a colon
		if !strings.Contains(lower, "nvidia") || strings.HasSuffix(l, ":") {
			continue
		}

		skip := false
		for _, s := range pciSkip {
			if strings.Contains(lower, s) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}

		name := l
		if idx := strings.Index(name, ": "); idx >= 0 {
			name = name[idx+2:]
		}
		name = strings.TrimSpace(pciRevision.ReplaceAllString(name, ""))
		if name == "" {
			continue
		}
		devices = append(devices, capability.Device{Name: name})
	}
	return devices, len(devices) > 0
}

// SMIList parses `nvidia-smi -L` ("GPU 0: NVIDIA A100-SXM4-40GB (UUID: GPU-...)").
func SMIList(raw string) ([]capability.Device, bool) {
	var devices []capability.Device
	for _, l := range lines(raw) {
		if !strings.HasPrefix(l, "GPU ") {
			continue
		}
		idx := strings.Index(l, ": ")
		if idx < 0 {
			continue
		}
		name := l[idx+2:]
		if p := strings.Index(name, " (UUID:"); p >= 0 {
			name = name[:p]
		}
		name = strings.TrimSpace(name)
		if name != "" {
			devices = append(devices, capability.Device{Name: name})
		}
	}
	return devices, len(devices) > 0
}
