//go:build !linux && !windows && !darwin

package facts

import (
	"context"
	"errors"
)

func hardwareUUID(_ context.Context, hostID string) (string, error) {
	if hostID == "" {
		return "", errors.New("host id is empty")
	}
	return hostID, nil
}

func modelName(_ context.Context) (string, error) {
	return unknown, nil
}
