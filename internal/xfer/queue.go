// Package xfer emulates the transaction side of a UART peripheral for host
// backends whose bytes arrive on a goroutine rather than in an interrupt.
//
// A Queue holds a bounded software RX FIFO and at most one armed
// hal.Transaction. The backend's reader goroutine calls Push; armed
// receives complete from the FIFO in that goroutine. Transmits run on a
// goroutine of their own. Callbacks are always invoked with the queue
// unlocked and never from within Arm.
package xfer

import (
	"sync"

	"github.com/jangala-dev/uartx-async/hal"
)

// Queue is the per-port emulation state. The zero value is not usable; call New.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	limit   int
	open    bool
	rx      []byte
	overrun bool
	pending *hal.Transaction
	txBusy  bool
	broken  error

	// servicing is set while a goroutine is completing receives, so that
	// re-arms from its callbacks do not start a second one.
	servicing bool
}

// New returns a closed queue whose FIFO holds at most limit bytes.
func New(limit int) *Queue {
	q := &Queue{limit: limit}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Open resets the queue for a new session.
func (q *Queue) Open() {
	q.mu.Lock()
	q.open = true
	q.rx = q.rx[:0]
	q.overrun = false
	q.pending = nil
	q.txBusy = false
	q.broken = nil
	q.mu.Unlock()
}

// Close abandons any armed transaction and wakes blocked readers.
func (q *Queue) Close() {
	q.mu.Lock()
	q.open = false
	q.pending = nil
	q.txBusy = false
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Arm takes ownership of t. A transmit is handed to send on a new goroutine.
func (q *Queue) Arm(t *hal.Transaction, send func([]byte) (int, error)) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	switch {
	case !q.open:
		return hal.ErrClosed
	case q.broken != nil:
		return q.broken
	case q.pending != nil:
		return hal.ErrBusy
	}
	t.RxCount, t.TxCount = 0, 0
	q.pending = t

	if t.Rx == nil {
		q.txBusy = true
		go q.transmit(t, send)
		return nil
	}
	if len(q.rx) > 0 && !q.servicing {
		go q.Service()
	}
	return nil
}

func (q *Queue) transmit(t *hal.Transaction, send func([]byte) (int, error)) {
	n, err := send(t.Tx)

	q.mu.Lock()
	if q.pending != t {
		q.mu.Unlock()
		return
	}
	t.TxCount = n
	q.pending = nil
	q.txBusy = false
	q.mu.Unlock()

	if t.Callback != nil {
		t.Callback(t, err)
	}
}

// Push queues received bytes and completes armed receives. Bytes that do
// not fit are dropped and reported through hal.StatusOverrun.
func (q *Queue) Push(b []byte) {
	q.mu.Lock()
	if !q.open {
		q.mu.Unlock()
		return
	}
	if room := q.limit - len(q.rx); len(b) > room {
		b = b[:room]
		q.overrun = true
	}
	q.rx = append(q.rx, b...)
	q.cond.Broadcast()
	q.mu.Unlock()

	q.Service()
}

// Service completes armed receives from the FIFO until one is left waiting
// for more data.
func (q *Queue) Service() {
	q.mu.Lock()
	if q.servicing {
		q.mu.Unlock()
		return
	}
	q.servicing = true
	for {
		t := q.pending
		if t == nil || t.Rx == nil || !q.open {
			break
		}
		n := copy(t.Rx[t.RxCount:], q.rx)
		q.rx = q.rx[n:]
		t.RxCount += n
		if t.RxCount < len(t.Rx) {
			break
		}
		q.pending = nil
		q.mu.Unlock()

		if t.Callback != nil {
			t.Callback(t, nil)
		}
		q.mu.Lock()
	}
	q.servicing = false
	q.mu.Unlock()
}

// Fail marks the session broken and completes an armed receive with err.
// Later arms and reads return wrapped until the next Open.
func (q *Queue) Fail(err, wrapped error) {
	q.mu.Lock()
	q.broken = wrapped
	t := q.pending
	if t != nil && t.Rx != nil {
		q.pending = nil
	} else {
		t = nil
	}
	q.cond.Broadcast()
	q.mu.Unlock()

	if t != nil && t.Callback != nil {
		t.Callback(t, err)
	}
}

// Read blocks until len(b) bytes are queued.
func (q *Queue) Read(b []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.open && q.broken == nil && len(q.rx) < len(b) {
		q.cond.Wait()
	}
	if !q.open {
		return hal.ErrClosed
	}
	if q.broken != nil {
		return q.broken
	}
	n := copy(b, q.rx)
	q.rx = q.rx[n:]
	return nil
}

// Write runs a synchronous send while reporting the transmitter busy.
func (q *Queue) Write(send func() (int, error)) (int, error) {
	q.mu.Lock()
	if !q.open {
		q.mu.Unlock()
		return 0, hal.ErrClosed
	}
	q.txBusy = true
	q.mu.Unlock()

	n, err := send()

	q.mu.Lock()
	q.txBusy = q.pending != nil && q.pending.Rx == nil
	q.mu.Unlock()
	return n, err
}

// Status reports the emulated FIFO state. Overrun is cleared once reported.
func (q *Queue) Status() hal.StatusFlags {
	q.mu.Lock()
	defer q.mu.Unlock()
	var s hal.StatusFlags
	if !q.txBusy {
		s |= hal.StatusTxEmpty
	}
	if len(q.rx) == 0 {
		s |= hal.StatusRxEmpty
	}
	if len(q.rx) >= q.limit {
		s |= hal.StatusRxFull
	}
	if q.pending != nil {
		if q.pending.Rx != nil {
			s |= hal.StatusRxBusy
		} else {
			s |= hal.StatusTxBusy
		}
	}
	if q.overrun {
		s |= hal.StatusOverrun
		q.overrun = false
	}
	return s
}
