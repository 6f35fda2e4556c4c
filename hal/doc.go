// Package hal defines the hardware collaborators of the uartx driver core.
//
// The driver never touches peripheral registers itself. Everything it needs
// from the chip is expressed by two interfaces:
//
//   - [Port]: the per-instance transaction primitive. It programs the line
//     format, performs synchronous reads and writes, reports status flags and
//     runs one asynchronous [Transaction] at a time, completing it from
//     interrupt context through the transaction's callback.
//   - [InterruptController]: routes completion events to handlers registered
//     by the driver (the completion bridge).
//
// Backends live in sub-packages:
//
//   - [github.com/jangala-dev/uartx-async/hal/sim]: deterministic simulation
//     used by tests and the loopback demo.
//   - [github.com/jangala-dev/uartx-async/hal/ttyport]: a host serial device.
//   - [github.com/jangala-dev/uartx-async/hal/cp2110]: a CP2110 USB-HID bridge.
//   - [github.com/jangala-dev/uartx-async/hal/rp2]: the RP2040/RP2350 PL011
//     (TinyGo only).
package hal
