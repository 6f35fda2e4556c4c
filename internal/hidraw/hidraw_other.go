//go:build !linux

package hidraw

import "time"

// Device is unavailable on this platform.
type Device struct{}

// Open always fails with ErrUnsupported.
func Open(path string) (*Device, error) { return nil, ErrUnsupported }

func (d *Device) Write(b []byte) (int, error) { return 0, ErrUnsupported }

func (d *Device) ReadWithTimeout(b []byte, timeout time.Duration) (int, error) {
	return 0, ErrUnsupported
}

func (d *Device) SendFeatureReport(b []byte) (int, error) { return 0, ErrUnsupported }

func (d *Device) GetFeatureReport(b []byte) (int, error) { return 0, ErrUnsupported }

func (d *Device) Close() error { return nil }
