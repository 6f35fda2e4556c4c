package sim

import (
	"sync"

	"github.com/jangala-dev/uartx-async/hal"
)

type irqLine struct {
	enabled bool
	cbs     map[hal.Event]hal.Callback
}

// Controller is a simulated interrupt controller. Dispatch runs handlers in
// the calling goroutine, which plays the role of interrupt context.
type Controller struct {
	mu         sync.Mutex
	lines      map[hal.IRQ]*irqLine
	dispatched int

	failRegister error
	failEnable   error
}

// NewController returns an empty controller.
func NewController() *Controller {
	return &Controller{lines: make(map[hal.IRQ]*irqLine)}
}

// FailRegister makes RegisterCallback return err until cleared with nil.
func (c *Controller) FailRegister(err error) {
	c.mu.Lock()
	c.failRegister = err
	c.mu.Unlock()
}

// FailEnable makes Enable return err until cleared with nil.
func (c *Controller) FailEnable(err error) {
	c.mu.Lock()
	c.failEnable = err
	c.mu.Unlock()
}

func (c *Controller) line(irq hal.IRQ) *irqLine {
	l, ok := c.lines[irq]
	if !ok {
		l = &irqLine{cbs: make(map[hal.Event]hal.Callback)}
		c.lines[irq] = l
	}
	return l
}

func (c *Controller) RegisterCallback(irq hal.IRQ, cb hal.Callback) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failRegister != nil {
		return c.failRegister
	}
	if cb.Handler == nil {
		return hal.ErrUnsupported
	}
	c.line(irq).cbs[cb.Event] = cb
	return nil
}

func (c *Controller) UnregisterCallback(irq hal.IRQ, ev hal.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.lines[irq]; ok {
		delete(l.cbs, ev)
	}
	return nil
}

func (c *Controller) Enable(irq hal.IRQ) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failEnable != nil {
		return c.failEnable
	}
	c.line(irq).enabled = true
	return nil
}

func (c *Controller) Disable(irq hal.IRQ) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.line(irq).enabled = false
	return nil
}

func (c *Controller) Dispatch(irq hal.IRQ, ev hal.Event) {
	c.mu.Lock()
	l, ok := c.lines[irq]
	if !ok || !l.enabled {
		c.mu.Unlock()
		return
	}
	cb, ok := l.cbs[ev]
	if ok {
		c.dispatched++
	}
	c.mu.Unlock()
	if ok {
		cb.Handler(cb.Context)
	}
}

// Registered reports whether a handler is registered for (irq, ev).
func (c *Controller) Registered(irq hal.IRQ, ev hal.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.lines[irq]
	if !ok {
		return false
	}
	_, ok = l.cbs[ev]
	return ok
}

// Enabled reports whether irq is enabled.
func (c *Controller) Enabled(irq hal.IRQ) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.lines[irq]
	return ok && l.enabled
}

// Dispatched returns how many handler invocations Dispatch has made.
func (c *Controller) Dispatched() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatched
}
