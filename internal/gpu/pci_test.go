package gpu

import (
	"errors"
	"testing"

	ghwgpu "github.com/jaypipes/ghw/pkg/gpu"
	"github.com/jaypipes/ghw/pkg/pci"
	"github.com/jaypipes/pcidb"

	"cudadoctor/internal/parse"
)

func card(vendor, product string) *ghwgpu.GraphicsCard {
	return &ghwgpu.GraphicsCard{
		DeviceInfo: &pci.Device{
			Vendor:  &pcidb.Vendor{Name: vendor},
			Product: &pcidb.Product{Name: product},
		},
	}
}

func TestPCIDeviceLines(t *testing.T) {
	lister := func() ([]*ghwgpu.GraphicsCard, error) {
		return []*ghwgpu.GraphicsCard{
			card("Intel Corporation", "UHD Graphics 630"),
			card("NVIDIA Corporation", "GA102 [GeForce RTX 3090]"),
			{DeviceInfo: nil},
			nil,
		}, nil
	}

	out, err := pciDeviceLines(lister)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if out != "NVIDIA Corporation GA102 [GeForce RTX 3090]" {
		t.Errorf("Unexpected rendering: %q", out)
	}

	devices, ok := parse.DeviceNames(out)
	if !ok || len(devices) != 1 {
		t.Fatalf("Expected rendering to parse into one device, got %v", devices)
	}
}

func TestPCIDeviceLines_NoNvidia(t *testing.T) {
	lister := func() ([]*ghwgpu.GraphicsCard, error) {
		return []*ghwgpu.GraphicsCard{card("Advanced Micro Devices, Inc. [AMD/ATI]", "Navi 21")}, nil
	}
	if _, err := pciDeviceLines(lister); err == nil {
		t.Error("Expected error without NVIDIA cards")
	}
}

func TestPCIDeviceLines_ListError(t *testing.T) {
	lister := func() ([]*ghwgpu.GraphicsCard, error) {
		return nil, errors.New("no /sys")
	}
	if _, err := pciDeviceLines(lister); err == nil {
		t.Error("Expected enumeration error to propagate")
	}
}
