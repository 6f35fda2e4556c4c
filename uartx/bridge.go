package uartx

// rxCompleteHandler is registered on the interrupt controller for
// hal.EventRxComplete with the *UART as context.
func rxCompleteHandler(ctx any) {
	if u, ok := ctx.(*UART); ok {
		u.handleRxComplete()
	}
}

// handleRxComplete runs in interrupt context after each one-byte background
// receive. It queues the staged byte (dropped if the ring is full) and re-arms
// the next receive. It must not block or allocate.
func (u *UART) handleRxComplete() {
	s := u.slot
	s.mu.Lock()
	b := s.staging[0]
	ok := s.rec.Err == nil && s.rec.RxCount == 1
	s.mu.Unlock()

	if ok && u.Buffer != nil {
		put := u.Buffer.Put(b)
		u.dbgOnByte(put)
		if put {
			u.dbgNotify(signal(u.notify))
		}
	}

	if Lifecycle(u.state.Load()) != AsyncArmed {
		return
	}
	// The bridge is the only issuer of receives in this mode; ErrBusy cannot
	// be acted on here and is ignored.
	_ = u.arm(s.staging[:], nil)
}
