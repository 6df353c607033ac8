//go:build darwin

package facts

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sys/unix"
)

func hardwareUUID(_ context.Context, hostID string) (string, error) {
	if hostID == "" {
		return "", errors.New("IOPlatformUUID is unavailable")
	}
	return strings.ToUpper(hostID), nil
}

func modelName(_ context.Context) (string, error) {
	model, err := unix.Sysctl("hw.model")
	if err != nil {
		return "", err
	}
	return "Apple " + strings.TrimSpace(model), nil
}
