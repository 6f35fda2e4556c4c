//go:build puregohid

package main

import (
	"errors"

	"github.com/jangala-dev/uartx-async/hal/cp2110"
	"github.com/jangala-dev/uartx-async/internal/hidraw"
)

func openHID() (cp2110.Device, error) {
	if CLI.RawPath == "" {
		return nil, errors.New("--hidraw must be specified when using pure Go HID")
	}
	d, err := hidraw.Open(CLI.RawPath)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func listHID() error {
	return errors.New("HID enumeration is not supported using pure Go HID")
}
