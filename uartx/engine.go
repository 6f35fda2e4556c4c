package uartx

import (
	"context"
	"errors"
	"fmt"

	"github.com/jangala-dev/uartx-async/hal"
)

// ReadNonblocking arms one asynchronous receive of len(p) bytes into p and
// returns immediately. p must stay valid until the transaction completes,
// which is signalled on Done.
//
// If the hardware already has a transaction in flight the call fails with
// ErrBusy; requests are rejected, never queued. In asynchronous receive mode
// the background receive is always in flight, so this always reports ErrBusy.
func (u *UART) ReadNonblocking(p []byte) error {
	if u == nil || len(p) == 0 {
		return ErrInvalidArgument
	}
	return u.arm(p, nil)
}

// WriteNonblocking arms one asynchronous transmit of p and returns
// immediately. p must stay valid until the transaction completes.
func (u *UART) WriteNonblocking(p []byte) error {
	if u == nil || len(p) == 0 {
		return ErrInvalidArgument
	}
	return u.arm(nil, p)
}

// arm populates the device record and submits the transaction to the port.
// It is called from both mainline and interrupt context.
func (u *UART) arm(rx, tx []byte) error {
	s := u.slot
	s.mu.Lock()
	if !u.live() {
		s.mu.Unlock()
		return ErrInvalidArgument
	}

	t := &s.xfer[s.next]
	*t = hal.Transaction{Rx: rx, Tx: tx, Callback: u.onDone}

	s.rec.Port = u.port
	s.rec.RxBuf, s.rec.RxLen = rx, len(rx)
	s.rec.TxBuf, s.rec.TxLen = tx, len(tx)
	s.rec.Callback = u.onDone

	err := u.port.TransactionAsync(t)
	switch {
	case err == nil:
		s.next ^= 1
		s.rec.RxCount, s.rec.TxCount = 0, 0
		s.rec.Err = nil
		if rx != nil {
			s.rec.State = StateReceivePending
		} else {
			s.rec.State = StateTransmitPending
		}
		s.mu.Unlock()
		u.dbgArm(false)
		return nil
	case errors.Is(err, hal.ErrBusy):
		s.mu.Unlock()
		u.dbgArm(true)
		return ErrBusy
	default:
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
}

// transferDone is the hal.Transaction callback. It runs in interrupt
// context: it settles the record, then routes the completion event through
// the interrupt controller to the completion bridge. A completion that
// arrives after Remove is dropped: the slot may already belong to a new
// handle.
func (u *UART) transferDone(t *hal.Transaction, err error) {
	s := u.slot
	s.mu.Lock()
	if !u.live() {
		s.mu.Unlock()
		return
	}
	prev := s.rec.State
	s.rec.RxCount = t.RxCount
	s.rec.TxCount = t.TxCount
	s.rec.Err = err
	s.rec.State = StateIdle
	s.mu.Unlock()

	signal(u.txNotify)

	if u.irq == nil {
		return
	}
	switch prev {
	case StateReceivePending:
		u.irq.Dispatch(u.port.IRQ(), hal.EventRxComplete)
	case StateTransmitPending:
		u.irq.Dispatch(u.port.IRQ(), hal.EventTxComplete)
	case StateIdle:
	}
}

// TransferStatus returns a snapshot of the device's transaction record.
func (u *UART) TransferStatus() Record {
	u.slot.mu.Lock()
	defer u.slot.mu.Unlock()
	return u.slot.rec
}

// WaitTransfer blocks until no asynchronous transaction is pending, then
// returns the result of the last one. It is meant for caller-issued
// non-blocking operations; in asynchronous receive mode it only returns on
// ctx expiry or Remove.
func (u *UART) WaitTransfer(ctx context.Context) error {
	for {
		rec := u.TransferStatus()
		if rec.State == StateIdle {
			if rec.Err != nil {
				return fmt.Errorf("%w: %w", ErrIO, rec.Err)
			}
			return nil
		}
		select {
		case <-u.txNotify:
		case <-u.closed:
			return context.Canceled
		case <-ctx.Done():
			u.dbgTimeout()
			return ctx.Err()
		}
	}
}
