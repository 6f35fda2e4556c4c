package uartx

import "errors"

// Driver errors. Wrapped errors returned by the driver match these with errors.Is.
var (
	// ErrInvalidArgument indicates a nil handle, an empty buffer, an
	// unrecognized configuration value or a handle that is no longer live.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrBusy indicates an asynchronous operation is already in flight for the device.
	ErrBusy = errors.New("device busy")

	// ErrWouldBlock indicates the receive buffer had nothing to return.
	ErrWouldBlock = errors.New("operation would block")

	// ErrIO indicates the hardware reported a transfer failure.
	ErrIO = errors.New("i/o error")

	// ErrOutOfMemory indicates no transaction record is available for the device.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrConfigurationFailed indicates a hardware programming step failed during Init.
	ErrConfigurationFailed = errors.New("configuration failed")

	// ErrUnsupported indicates the operation is not implemented.
	ErrUnsupported = errors.New("not supported")

	// ErrTimeout indicates the transmitter did not drain in time.
	ErrTimeout = errors.New("timeout")
)
