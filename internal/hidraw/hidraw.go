// Package hidraw is a cgo-free HID transport on Linux hidraw nodes.
package hidraw

import "errors"

// ErrTooLong is returned for reports larger than the kernel transfer buffer.
var ErrTooLong = errors.New("hidraw: report too long")

// ErrUnsupported is returned by Open on platforms without hidraw.
var ErrUnsupported = errors.New("hidraw: not supported on this platform")
