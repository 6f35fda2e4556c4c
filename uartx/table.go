package uartx

import (
	"strconv"
	"sync"

	"github.com/jangala-dev/uartx-async/hal"
)

// MaxDevices is the number of UART instances a Table can address.
const MaxDevices = 8

// DeviceID identifies one UART instance and indexes the transaction table.
type DeviceID uint8

// Valid reports whether id can address a table record.
func (id DeviceID) Valid() bool { return id < MaxDevices }

func (id DeviceID) String() string { return "uart" + strconv.Itoa(int(id)) }

// State is the tagged state of a device's transaction record.
type State uint8

const (
	// StateIdle means no asynchronous transaction is armed.
	StateIdle State = iota
	// StateReceivePending means a receive transaction is armed.
	StateReceivePending
	// StateTransmitPending means a transmit transaction is armed.
	StateTransmitPending
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReceivePending:
		return "receive-pending"
	case StateTransmitPending:
		return "transmit-pending"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// Record is the per-device description of the most recent asynchronous request.
//
// A request rejected with ErrBusy still overwrites the buffer fields; State and
// the counters always describe the transaction the hardware actually holds.
type Record struct {
	Port hal.Port

	RxBuf   []byte
	RxLen   int
	RxCount int

	TxBuf   []byte
	TxLen   int
	TxCount int

	Callback func(*hal.Transaction, error)
	State    State
	Err      error // result of the last completed transaction
}

// slot is one table entry. mu is held only while the record is populated or
// consumed, never across a hardware callback or interrupt dispatch.
type slot struct {
	mu   slotLock
	open bool
	rec  Record

	// The hardware keeps a pointer to the armed transaction, so requests
	// alternate between two so a rejected request cannot clobber it.
	xfer [2]hal.Transaction
	next uint8

	staging [1]byte
}

// Table is the arena of transaction records, one per device id. A process
// normally uses DefaultTable.
type Table struct {
	mu     sync.Mutex
	slots  []slot
	closed bool
}

// DefaultTable is the process-wide table used when Config.Table is nil.
var DefaultTable = NewTable(MaxDevices)

// NewTable returns a table with records for device ids 0..n-1. n is clamped
// to MaxDevices.
func NewTable(n int) *Table {
	if n > MaxDevices {
		n = MaxDevices
	}
	if n < 0 {
		n = 0
	}
	return &Table{slots: make([]slot, n)}
}

// Len returns the number of records in the table.
func (t *Table) Len() int { return len(t.slots) }

// InUse reports whether a handle currently owns the record for id.
func (t *Table) InUse(id DeviceID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return int(id) < len(t.slots) && t.slots[id].open
}

// Close tears the table down. It fails with ErrBusy while any device is open;
// afterwards no record can be claimed.
func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.slots {
		if t.slots[i].open {
			return ErrBusy
		}
	}
	t.closed = true
	return nil
}

func (t *Table) claim(id DeviceID) (*slot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || int(id) >= len(t.slots) {
		return nil, ErrOutOfMemory
	}
	s := &t.slots[id]
	if s.open {
		return nil, ErrBusy
	}
	s.mu.Lock()
	s.open = true
	s.rec = Record{}
	s.xfer = [2]hal.Transaction{}
	s.next = 0
	s.staging[0] = 0
	s.mu.Unlock()
	return s, nil
}

func (t *Table) release(id DeviceID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := &t.slots[id]
	s.mu.Lock()
	s.open = false
	s.rec = Record{}
	s.mu.Unlock()
}
