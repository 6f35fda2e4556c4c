//go:build rp2040 || rp2350

package rp2

import (
	"device/rp"
	"machine"
	"runtime/interrupt"
)

// PL011 instances on the RP2040/RP2350. UART0 defaults to the board's
// UART pins; UART1 pins must be set before Init.
var (
	UART0  = &_UART0
	_UART0 = Port{
		Bus: rp.UART0,
		TX:  machine.UART_TX_PIN,
		RX:  machine.UART_RX_PIN,
		RTS: machine.NoPin,
		CTS: machine.NoPin,
		irq: rp.IRQ_UART0_IRQ,
	}

	UART1  = &_UART1
	_UART1 = Port{
		Bus: rp.UART1,
		TX:  machine.NoPin,
		RX:  machine.NoPin,
		RTS: machine.NoPin,
		CTS: machine.NoPin,
		irq: rp.IRQ_UART1_IRQ,
	}
)

func init() {
	UART0.Interrupt = interrupt.New(rp.IRQ_UART0_IRQ, _UART0.handleInterrupt)
	UART1.Interrupt = interrupt.New(rp.IRQ_UART1_IRQ, _UART1.handleInterrupt)
}
