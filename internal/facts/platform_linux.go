//go:build linux

package facts

import (
	"context"
	"errors"
	"os"
	"strings"
)

const dmiDir = "/sys/class/dmi/id/"

func hardwareUUID(_ context.Context, hostID string) (string, error) {
	if hostID == "" {
		return "", errors.New("host id is empty")
	}
	return hostID, nil
}

func modelName(_ context.Context) (string, error) {
	vendor := readDMI("sys_vendor")
	product := readDMI("product_name")
	if vendor == "" && product == "" {
		return "", errors.New("dmi vendor and product are unavailable")
	}
	return strings.TrimSpace(vendor + " " + product), nil
}

func readDMI(name string) string {
	data, err := os.ReadFile(dmiDir + name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
