//go:build !puregohid

package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sstallion/go-hid"

	"github.com/jangala-dev/uartx-async/hal/cp2110"
)

var errFound = errors.New("found")

func searchDevice(foundHandler func(info *hid.DeviceInfo) error) error {
	return hid.Enumerate(uint16(CLI.VID), uint16(CLI.PID), func(info *hid.DeviceInfo) error {
		if CLI.Serial != "" && info.SerialNbr != CLI.Serial {
			return nil
		}
		if CLI.RawPath != "" && info.Path != CLI.RawPath {
			return nil
		}
		return foundHandler(info)
	})
}

// hidDevice adapts go-hid to cp2110.Device, which reports a read timeout as
// an empty read.
type hidDevice struct {
	*hid.Device
}

func (d hidDevice) ReadWithTimeout(b []byte, timeout time.Duration) (int, error) {
	n, err := d.Device.ReadWithTimeout(b, timeout)
	if errors.Is(err, hid.ErrTimeout) {
		return 0, nil
	}
	return n, err
}

func openHID() (cp2110.Device, error) {
	if err := hid.Init(); err != nil {
		return nil, err
	}
	var dev *hid.Device
	err := searchDevice(func(info *hid.DeviceInfo) error {
		d, err := hid.OpenPath(info.Path)
		if err == nil {
			dev = d
			return errFound
		}
		return err
	})
	if dev != nil {
		return hidDevice{dev}, nil
	}
	if err == nil {
		err = os.ErrNotExist
	}
	return nil, err
}

func listHID() error {
	if err := hid.Init(); err != nil {
		return err
	}
	defer hid.Exit()
	return searchDevice(func(info *hid.DeviceInfo) error {
		fmt.Printf("%s: ID %04x:%04x %s %s serial=%s\n",
			info.Path, info.VendorID, info.ProductID, info.MfrStr, info.ProductStr, info.SerialNbr)
		return nil
	})
}
