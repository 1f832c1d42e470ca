package gpu

import (
	"context"
	"errors"
	"strings"

	"github.com/jaypipes/ghw"
	ghwgpu "github.com/jaypipes/ghw/pkg/gpu"
	"github.com/samber/lo"
)

// GraphicsCardLister enumerates graphics cards. It is ghw.GPU in production.
type GraphicsCardLister func() ([]*ghwgpu.GraphicsCard, error)

func listGraphicsCards() ([]*ghwgpu.GraphicsCard, error) {
	info, err := ghw.GPU(ghw.WithDisableWarnings())
	if err != nil {
		return nil, err
	}
	return info.GraphicsCards, nil
}

// PCIDevices renders one "vendor product" line per NVIDIA graphics card
// found by PCI enumeration, ready for parse.DeviceNames.
func (d *Detector) PCIDevices(_ context.Context) (string, error) {
	return pciDeviceLines(listGraphicsCards)
}

func pciDeviceLines(list GraphicsCardLister) (string, error) {
	cards, err := list()
	if err != nil {
		return "", err
	}

	names := lo.FilterMap(cards, func(card *ghwgpu.GraphicsCard, _ int) (string, bool) {
		if card == nil || card.DeviceInfo == nil {
			return "", false
		}
		dev := card.DeviceInfo

		var vendor, product string
		if dev.Vendor != nil {
			vendor = dev.Vendor.Name
		}
		if dev.Product != nil {
			product = dev.Product.Name
		}

		name := strings.TrimSpace(vendor + " " + product)
		if !strings.Contains(strings.ToLower(name), "nvidia") {
			return "", false
		}
		return name, true
	})

	if len(names) == 0 {
		return "", errors.New("no NVIDIA graphics card on the PCI bus")
	}
	return strings.Join(names, "\n"), nil
}
