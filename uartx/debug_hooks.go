//go:build uartxdebug

package uartx

import "sync/atomic"

func (u *UART) dbgArm(busy bool) {
	if busy {
		atomic.AddUint32(&u.stats.ArmBusy, 1)
	} else {
		atomic.AddUint32(&u.stats.Arms, 1)
	}
}

// Called by the completion bridge per received byte with the Put() outcome.
func (u *UART) dbgOnByte(putOK bool) {
	atomic.AddUint32(&u.stats.BridgeRuns, 1)
	if !putOK {
		atomic.AddUint32(&u.stats.RingDrops, 1)
		return
	}
	atomic.AddUint32(&u.stats.RingPuts, 1)
	// track high-water mark
	used := uint32(u.Buffer.Used())
	for {
		max := atomic.LoadUint32(&u.stats.RingMaxUsed)
		if used <= max {
			break
		}
		if atomic.CompareAndSwapUint32(&u.stats.RingMaxUsed, max, used) {
			break
		}
	}
}

func (u *UART) dbgNotify(sent bool) {
	if sent {
		atomic.AddUint32(&u.stats.NotifySent, 1)
	} else {
		atomic.AddUint32(&u.stats.NotifyDropped, 1)
	}
}

func (u *UART) dbgWriteChunk(n int) {
	atomic.AddUint32(&u.stats.WriteChunks, 1)
	atomic.AddUint32(&u.stats.WriteBytes, uint32(n))
}

func (u *UART) dbgReadWait() {
	atomic.AddUint32(&u.stats.ReadWaits, 1)
}
func (u *UART) dbgSpuriousWake() {
	atomic.AddUint32(&u.stats.SpuriousWakes, 1)
}
func (u *UART) dbgTimeout() {
	atomic.AddUint32(&u.stats.Timeouts, 1)
}
