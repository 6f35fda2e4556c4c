//go:build uartxdebug

package uartx

import "sync/atomic"

// Stats holds counters since the last reset.
type Stats struct {
	// Engine
	Arms    uint32 // transactions accepted by the hardware
	ArmBusy uint32 // arms rejected with ErrBusy

	// Completion bridge
	BridgeRuns    uint32 // bridge invocations that delivered a byte
	NotifySent    uint32 // notify channel sends that succeeded
	NotifyDropped uint32 // notify channel sends that were dropped (buffer full)

	// Ring buffer
	RingPuts    uint32 // successful Put()s
	RingDrops   uint32 // failed Put()s (overflow)
	RingMaxUsed uint32 // high-water mark of ring occupancy

	// Blocking API behaviour
	WriteChunks   uint32 // hardware writes issued by Write
	WriteBytes    uint32 // bytes accepted by those writes
	ReadWaits     uint32 // times a blocking read had to wait
	SpuriousWakes uint32 // notify received but no data available
	Timeouts      uint32 // context or transmitter timeouts
}

// DebugEnabled reports whether the counters are compiled in.
const DebugEnabled = true

func (u *UART) DebugReset() {
	// Zero the struct by reassigning (safe as Stats is POD)
	u.stats = Stats{}
}

func (u *UART) DebugStats() Stats {
	return Stats{
		Arms:    atomic.LoadUint32(&u.stats.Arms),
		ArmBusy: atomic.LoadUint32(&u.stats.ArmBusy),

		BridgeRuns:    atomic.LoadUint32(&u.stats.BridgeRuns),
		NotifySent:    atomic.LoadUint32(&u.stats.NotifySent),
		NotifyDropped: atomic.LoadUint32(&u.stats.NotifyDropped),

		RingPuts:    atomic.LoadUint32(&u.stats.RingPuts),
		RingDrops:   atomic.LoadUint32(&u.stats.RingDrops),
		RingMaxUsed: atomic.LoadUint32(&u.stats.RingMaxUsed),

		WriteChunks:   atomic.LoadUint32(&u.stats.WriteChunks),
		WriteBytes:    atomic.LoadUint32(&u.stats.WriteBytes),
		ReadWaits:     atomic.LoadUint32(&u.stats.ReadWaits),
		SpuriousWakes: atomic.LoadUint32(&u.stats.SpuriousWakes),
		Timeouts:      atomic.LoadUint32(&u.stats.Timeouts),
	}
}
