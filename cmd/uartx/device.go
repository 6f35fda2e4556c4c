package main

import (
	"errors"
	"fmt"

	"github.com/jangala-dev/uartx-async/hal"
	"github.com/jangala-dev/uartx-async/hal/cp2110"
	"github.com/jangala-dev/uartx-async/hal/sim"
	"github.com/jangala-dev/uartx-async/hal/ttyport"
	"github.com/jangala-dev/uartx-async/internal/logging"
	"github.com/jangala-dev/uartx-async/uartx"
)

var errNoBackend = errors.New("select a port with --tty, --hid or --hidraw")

func parseParity(s string) (uartx.Parity, error) {
	switch s {
	case "none", "":
		return uartx.ParityNone, nil
	case "odd":
		return uartx.ParityOdd, nil
	case "even":
		return uartx.ParityEven, nil
	case "mark":
		return uartx.ParityMark, nil
	case "space":
		return uartx.ParitySpace, nil
	}
	return 0, fmt.Errorf("unknown parity %q", s)
}

// openPort builds the hal.Port selected by the global flags. Nothing is
// opened until uartx.Init programs it.
func openPort() (hal.Port, error) {
	irq := hal.IRQ(CLI.IRQ)
	switch {
	case CLI.TTY != "":
		return ttyport.New(ttyport.Config{Name: CLI.TTY, IRQ: irq}), nil
	case CLI.HID || CLI.RawPath != "":
		return cp2110.New(cp2110.Config{IRQ: irq, Open: openHID}), nil
	}
	return nil, errNoBackend
}

// openUART initializes a driver handle on the selected port. The host
// backends complete transactions on their own goroutines, so a software
// interrupt controller is enough to route them to the bridge.
func openUART(async bool) (*uartx.UART, error) {
	port, err := openPort()
	if err != nil {
		return nil, err
	}
	par, err := parseParity(CLI.Parity)
	if err != nil {
		return nil, err
	}
	flow := uartx.FlowDisabled
	if CLI.RTSCTS {
		flow = uartx.FlowActiveLow
	}

	u, err := uartx.Init(uartx.Config{
		BaudRate:    CLI.Baud,
		Parity:      par,
		WordSize:    uartx.WordSize(CLI.DataBits),
		StopBits:    uartx.StopBits(CLI.StopBits),
		FlowControl: flow,
		AsyncRx:     async,
		Port:        port,
		IRQ:         sim.NewController(),
	})
	if err != nil {
		return nil, err
	}
	logging.Debug(logging.ComponentCLI, "port open", "device", u.ID(), "baud", u.Baud(), "async", async)
	return u, nil
}
