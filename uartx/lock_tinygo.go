//go:build tinygo

package uartx

import "runtime/interrupt"

// slotLock guards a table slot. The completion path runs in interrupt
// context on a single core, so the lock masks interrupts instead of parking.
type slotLock struct {
	state interrupt.State
}

func (l *slotLock) Lock() { l.state = interrupt.Disable() }

func (l *slotLock) Unlock() { interrupt.Restore(l.state) }
