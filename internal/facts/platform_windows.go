//go:build windows

package facts

import (
	"context"
	"errors"
	"strings"

	"github.com/yusufpapurcu/wmi"
)

// WMI class names must match the struct type names.
type Win32_ComputerSystemProduct struct {
	UUID string
}

type Win32_ComputerSystem struct {
	Manufacturer string
	Model        string
}

func hardwareUUID(_ context.Context, hostID string) (string, error) {
	var products []Win32_ComputerSystemProduct
	if err := wmi.Query(wmi.CreateQuery(&products, ""), &products); err == nil && len(products) > 0 {
		if id := strings.TrimSpace(products[0].UUID); id != "" {
			return id, nil
		}
	}
	if hostID == "" {
		return "", errors.New("neither SMBIOS UUID nor machine guid is available")
	}
	return hostID, nil
}

func modelName(_ context.Context) (string, error) {
	var systems []Win32_ComputerSystem
	if err := wmi.Query(wmi.CreateQuery(&systems, ""), &systems); err != nil {
		return "", err
	}
	if len(systems) == 0 {
		return "", errors.New("computer system info not found")
	}

	manufacturer := strings.TrimSpace(systems[0].Manufacturer)
	if manufacturer == "" {
		manufacturer = unknown
	}
	model := strings.TrimSpace(systems[0].Model)
	if model == "" {
		model = unknown
	}
	return manufacturer + " " + model, nil
}
