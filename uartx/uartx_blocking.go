// uartx/uartx_blocking.go

package uartx

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/jangala-dev/uartx-async/hal"
)

// Read copies received data into p.
//
// In asynchronous receive mode it drains up to len(p) bytes from the ring and
// returns the partial count once the ring is empty, or ErrWouldBlock if it
// was empty to begin with. Otherwise it performs a blocking hardware read of
// exactly len(p) bytes.
func (u *UART) Read(p []byte) (int, error) {
	if u == nil || len(p) == 0 {
		return 0, ErrInvalidArgument
	}
	if !u.live() {
		return 0, ErrInvalidArgument
	}
	if u.Buffer != nil {
		if n := u.TryRead(p); n > 0 {
			return n, nil
		}
		return 0, ErrWouldBlock
	}
	if err := u.port.Read(p); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return len(p), nil
}

// TryRead returns immediately with up to len(p) bytes copied from the RX buffer.
// A return value of 0 means “no data now”.
func (u *UART) TryRead(p []byte) int {
	if u.Buffer == nil {
		return 0
	}
	n := 0
	for n < len(p) {
		b, ok := u.Buffer.Get()
		if !ok {
			break
		}
		p[n] = b
		n++
	}
	return n
}

// ReadByte reads a single byte from the software RX buffer.
// If there is no data available, it returns ErrWouldBlock.
func (u *UART) ReadByte() (byte, error) {
	if u.Buffer == nil {
		return 0, ErrInvalidArgument
	}
	b, ok := u.Buffer.Get()
	if !ok {
		return 0, ErrWouldBlock
	}
	return b, nil
}

// WaitReadable blocks until data is available, the device is removed or ctx is done.
func (u *UART) WaitReadable(ctx context.Context) error {
	if u.Buffer == nil {
		return ErrInvalidArgument
	}
	for {
		if u.Buffered() > 0 {
			return nil
		}
		u.dbgReadWait()
		select {
		case <-u.notify:
			// re-check; if empty, it was a spurious wake (coalesced notify)
			if u.Buffered() == 0 {
				u.dbgSpuriousWake()
			}
		case <-u.closed:
			return context.Canceled
		case <-ctx.Done():
			u.dbgTimeout()
			return ctx.Err()
		}
	}
}

// ReadContext blocks until at least one byte is available, then reads up to len(p).
// Without asynchronous receive it is a plain blocking Read.
func (u *UART) ReadContext(ctx context.Context, p []byte) (int, error) {
	if u.Buffer == nil {
		return u.Read(p)
	}
	if len(p) == 0 {
		return 0, ErrInvalidArgument
	}
	for {
		if n := u.TryRead(p); n > 0 {
			return n, nil
		}
		if err := u.WaitReadable(ctx); err != nil {
			return 0, err
		}
	}
}

// ReadFullContext reads exactly len(p) bytes from the RX buffer unless ctx
// ends first, in which case it returns the count read so far.
func (u *UART) ReadFullContext(ctx context.Context, p []byte) (int, error) {
	if u.Buffer == nil {
		return u.Read(p)
	}
	read := 0
	for read < len(p) {
		if n := u.TryRead(p[read:]); n > 0 {
			read += n
			continue
		}
		if err := u.WaitReadable(ctx); err != nil {
			return read, err
		}
	}
	return read, nil
}

// ReadWithTimeout is ReadContext with a deadline d from now.
func (u *UART) ReadWithTimeout(p []byte, d time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return u.ReadContext(ctx, p)
}

// Write transmits p synchronously in chunks no larger than the hardware
// FIFO. Before each chunk it busy-waits for the transmitter to report empty,
// bounded by the configured write timeout.
//
// On failure it returns the number of bytes the hardware accepted before the
// error together with ErrIO or ErrTimeout. A port that keeps accepting zero
// bytes for longer than the write timeout fails with ErrTimeout.
func (u *UART) Write(p []byte) (int, error) {
	if u == nil || len(p) == 0 {
		return 0, ErrInvalidArgument
	}
	if !u.live() {
		return 0, ErrInvalidArgument
	}
	depth := u.port.FIFODepth()
	if depth <= 0 {
		depth = 1
	}

	sent := 0
	var stall time.Time // set while the port accepts nothing
	for sent < len(p) {
		n := min(depth, len(p)-sent)
		if err := u.waitTxEmpty(); err != nil {
			return sent, err
		}
		w, err := u.port.Write(p[sent : sent+n])
		sent += w
		u.dbgWriteChunk(w)
		if err != nil {
			return sent, fmt.Errorf("%w: %w", ErrIO, err)
		}
		if w > 0 {
			stall = time.Time{}
			continue
		}
		switch {
		case stall.IsZero():
			stall = time.Now().Add(u.cfg.WriteTimeout)
		case time.Now().After(stall):
			u.dbgTimeout()
			return sent, fmt.Errorf("%v: transmitter accepted no bytes: %w", u.id, ErrTimeout)
		}
		runtime.Gosched()
	}
	return sent, nil
}

// WriteByte writes a single byte with the same blocking behaviour as Write.
func (u *UART) WriteByte(c byte) error {
	_, err := u.Write([]byte{c})
	return err
}

// Writev writes the provided buffers in sequence with the same blocking behaviour as Write.
// It stops on the first error and returns the total number of bytes accepted up to that point.
func (u *UART) Writev(bufs ...[]byte) (int, error) {
	sent := 0
	for _, p := range bufs {
		if len(p) == 0 {
			continue
		}
		n, err := u.Write(p)
		sent += n
		if err != nil {
			return sent, err
		}
	}
	return sent, nil
}

func (u *UART) waitTxEmpty() error {
	if u.port.Status().Has(hal.StatusTxEmpty) {
		return nil
	}
	deadline := time.Now().Add(u.cfg.WriteTimeout)
	for !u.port.Status().Has(hal.StatusTxEmpty) {
		if time.Now().After(deadline) {
			u.dbgTimeout()
			return fmt.Errorf("%v: transmitter not empty: %w", u.id, ErrTimeout)
		}
		runtime.Gosched()
	}
	return nil
}
