//go:build rp2040 || rp2350

package rp2

import (
	"runtime/interrupt"

	"github.com/jangala-dev/uartx-async/hal"
)

const maxLines = 4

type line struct {
	irq     hal.IRQ
	used    bool
	enabled bool
	cbs     [2]hal.Callback
}

// Controller is a fixed-size hal.InterruptController. Dispatch runs inside
// the PL011 ISR; every mutation masks interrupts instead of taking a lock.
type Controller struct {
	lines [maxLines]line
}

// Interrupts is the controller shared by UART0 and UART1.
var Interrupts = &Controller{}

// find returns the line for irq, claiming a free entry if create is set.
func (c *Controller) find(irq hal.IRQ, create bool) *line {
	var free *line
	for i := range c.lines {
		l := &c.lines[i]
		if l.used && l.irq == irq {
			return l
		}
		if !l.used && free == nil {
			free = l
		}
	}
	if !create || free == nil {
		return nil
	}
	*free = line{irq: irq, used: true}
	return free
}

func (c *Controller) RegisterCallback(irq hal.IRQ, cb hal.Callback) error {
	if cb.Handler == nil || int(cb.Event) >= len(line{}.cbs) {
		return hal.ErrUnsupported
	}
	state := interrupt.Disable()
	defer interrupt.Restore(state)
	l := c.find(irq, true)
	if l == nil {
		return hal.ErrBusy
	}
	l.cbs[cb.Event] = cb
	return nil
}

func (c *Controller) UnregisterCallback(irq hal.IRQ, ev hal.Event) error {
	state := interrupt.Disable()
	defer interrupt.Restore(state)
	if l := c.find(irq, false); l != nil && int(ev) < len(l.cbs) {
		l.cbs[ev] = hal.Callback{}
		if l.cbs[0].Handler == nil && l.cbs[1].Handler == nil && !l.enabled {
			l.used = false
		}
	}
	return nil
}

func (c *Controller) Enable(irq hal.IRQ) error { return c.setEnabled(irq, true) }

func (c *Controller) Disable(irq hal.IRQ) error { return c.setEnabled(irq, false) }

func (c *Controller) setEnabled(irq hal.IRQ, on bool) error {
	state := interrupt.Disable()
	defer interrupt.Restore(state)
	l := c.find(irq, on)
	if l == nil {
		if on {
			return hal.ErrBusy
		}
		return nil
	}
	l.enabled = on
	return nil
}

func (c *Controller) Dispatch(irq hal.IRQ, ev hal.Event) {
	l := c.find(irq, false)
	if l == nil || !l.enabled || int(ev) >= len(l.cbs) {
		return
	}
	if cb := l.cbs[ev]; cb.Handler != nil {
		cb.Handler(cb.Context)
	}
}
