// uartx/uartx.go

// Package uartx is an interrupt-driven UART driver core. It offers blocking
// Read/Write, non-blocking single-transaction ReadNonblocking and
// WriteNonblocking, and an optional background receive mode in which a
// one-byte hardware receive is re-armed from interrupt context on every
// completion and the bytes are queued in a 256-byte ring for Read to drain.
//
// All chip access goes through a hal.Port and a hal.InterruptController.
package uartx

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/jangala-dev/uartx-async/hal"
	"github.com/jangala-dev/uartx-async/internal/logging"
)

// Flusher is implemented by types that can flush buffered output to the underlying device.
type Flusher interface{ Flush() error }

var _ Flusher = (*UART)(nil)

// Defaults applied by Init to zero-valued Config fields.
const (
	DefaultBaudRate      = 115200
	DefaultFlowThreshold = 8
	DefaultWriteTimeout  = time.Second
)

// Lifecycle is the device state machine position.
type Lifecycle uint32

const (
	Uninitialized Lifecycle = iota
	Configured
	AsyncArmed
	ShuttingDown
	Removed
)

func (l Lifecycle) String() string {
	switch l {
	case Uninitialized:
		return "uninitialized"
	case Configured:
		return "configured"
	case AsyncArmed:
		return "async-armed"
	case ShuttingDown:
		return "shutting-down"
	case Removed:
		return "removed"
	default:
		return "lifecycle(" + strconv.Itoa(int(l)) + ")"
	}
}

// Config describes one UART instance.
type Config struct {
	DeviceID    DeviceID
	BaudRate    uint32 // 0 selects DefaultBaudRate
	Parity      Parity
	WordSize    WordSize // 0 selects 8
	StopBits    StopBits // 0 selects 1
	FlowControl FlowControl
	// FlowThreshold is passed to Port.SetFlowControl; 0 selects DefaultFlowThreshold.
	FlowThreshold int
	Voltage       hal.VoltageLevel

	// AsyncRx enables background reception into the ring buffer. It
	// requires IRQ.
	AsyncRx bool

	// WriteTimeout bounds the wait for the transmit FIFO to drain before
	// each Write chunk; 0 selects DefaultWriteTimeout.
	WriteTimeout time.Duration

	Port  hal.Port
	IRQ   hal.InterruptController
	Table *Table // nil selects DefaultTable
}

func (c Config) withDefaults() Config {
	if c.BaudRate == 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.WordSize == 0 {
		c.WordSize = WordSize8
	}
	if c.StopBits == 0 {
		c.StopBits = StopBits1
	}
	if c.FlowThreshold == 0 {
		c.FlowThreshold = DefaultFlowThreshold
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.Table == nil {
		c.Table = DefaultTable
	}
	return c
}

// Validate checks the enumerations and collaborators of c after defaults
// have been applied.
func (c Config) Validate() error {
	switch {
	case c.Port == nil:
		return fmt.Errorf("%w: nil port", ErrInvalidArgument)
	case !c.DeviceID.Valid():
		return fmt.Errorf("%w: device id %d", ErrInvalidArgument, c.DeviceID)
	case !c.Parity.Valid():
		return fmt.Errorf("%w: parity %v", ErrInvalidArgument, c.Parity)
	case !c.WordSize.Valid():
		return fmt.Errorf("%w: word size %d", ErrInvalidArgument, c.WordSize)
	case !c.StopBits.Valid():
		return fmt.Errorf("%w: stop bits %d", ErrInvalidArgument, c.StopBits)
	case !c.FlowControl.Valid():
		return fmt.Errorf("%w: flow control %v", ErrInvalidArgument, c.FlowControl)
	case c.AsyncRx && c.IRQ == nil:
		return fmt.Errorf("%w: asynchronous receive needs an interrupt controller", ErrInvalidArgument)
	}
	return nil
}

// UART is a handle to one configured UART instance.
type UART struct {
	// Buffer is the software RX ring; nil unless asynchronous receive is enabled.
	Buffer *RingBuffer

	id    DeviceID
	baud  uint32
	cfg   Config
	port  hal.Port
	irq   hal.InterruptController
	table *Table
	slot  *slot
	state atomic.Uint32

	// onDone is stored once so re-arming from interrupt context does not
	// allocate a method value.
	onDone func(*hal.Transaction, error)

	notify   chan struct{} // coalesced RX readiness notifications
	txNotify chan struct{} // coalesced transaction completion notifications
	closed   chan struct{}

	stats Stats
}

// Init configures the device described by cfg and returns its handle.
//
// Hardware is programmed in the order baud, pins, data size, parity, stop
// bits, flow control. With cfg.AsyncRx the receive ring is allocated, the
// completion bridge is registered and enabled on cfg.IRQ and the first
// one-byte receive is armed. Any failure releases everything acquired so far.
func Init(cfg Config) (*UART, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s, err := cfg.Table.claim(cfg.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", cfg.DeviceID, err)
	}

	u := &UART{
		id:       cfg.DeviceID,
		baud:     cfg.BaudRate,
		cfg:      cfg,
		port:     cfg.Port,
		irq:      cfg.IRQ,
		table:    cfg.Table,
		slot:     s,
		notify:   make(chan struct{}, 1),
		txNotify: make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}
	u.onDone = u.transferDone

	if err := u.configure(); err != nil {
		cfg.Table.release(u.id)
		logging.Warn(logging.ComponentUART, "configure failed", "device", u.id, "err", err)
		return nil, err
	}
	u.state.Store(uint32(Configured))

	if cfg.AsyncRx {
		if err := u.startAsync(); err != nil {
			cfg.Table.release(u.id)
			logging.Warn(logging.ComponentUART, "async receive setup failed", "device", u.id, "err", err)
			return nil, err
		}
	}

	logging.Info(logging.ComponentUART, "initialized", "device", u.id,
		"baud", u.baud, "async", cfg.AsyncRx)
	return u, nil
}

func (u *UART) configure() error {
	c := u.cfg
	if err := u.port.Init(c.BaudRate); err != nil {
		return fmt.Errorf("%w: baud %d: %w", ErrConfigurationFailed, c.BaudRate, err)
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"pins", func() error { return u.port.ConfigurePins(c.Voltage) }},
		{"data size", func() error { return u.port.SetDataSize(c.WordSize) }},
		{"parity", func() error { return u.port.SetParity(c.Parity) }},
		{"stop bits", func() error { return u.port.SetStopBits(c.StopBits) }},
		{"flow control", func() error { return u.port.SetFlowControl(c.FlowControl, c.FlowThreshold) }},
	}
	for _, st := range steps {
		if err := st.fn(); err != nil {
			u.shutdownPort()
			return fmt.Errorf("%w: %s: %w", ErrConfigurationFailed, st.name, err)
		}
	}
	return nil
}

// startAsync enters AsyncArmed: ring, bridge registration, IRQ enable, first arm.
func (u *UART) startAsync() error {
	u.Buffer = NewRingBuffer()
	line := u.port.IRQ()

	err := u.irq.RegisterCallback(line, hal.Callback{
		Event:   hal.EventRxComplete,
		Handler: rxCompleteHandler,
		Context: u,
	})
	if err != nil {
		u.Buffer = nil
		u.shutdownPort()
		return fmt.Errorf("%w: register irq %d: %w", ErrConfigurationFailed, line, err)
	}

	rollback := func() {
		_ = u.irq.Disable(line)
		_ = u.irq.UnregisterCallback(line, hal.EventRxComplete)
		u.shutdownPort()
		u.Buffer = nil
		u.state.Store(uint32(Configured))
	}

	if err := u.irq.Enable(line); err != nil {
		rollback()
		return fmt.Errorf("%w: enable irq %d: %w", ErrConfigurationFailed, line, err)
	}

	u.state.Store(uint32(AsyncArmed))
	if err := u.arm(u.slot.staging[:], nil); err != nil {
		rollback()
		return err
	}
	return nil
}

func (u *UART) shutdownPort() {
	if err := u.port.Shutdown(); err != nil {
		logging.Warn(logging.ComponentHAL, "shutdown failed", "device", u.id, "err", err)
	}
}

// Remove shuts the peripheral down and releases the device record.
//
// A non-blocking transmit started by the caller must complete first; Remove
// returns ErrBusy while one is pending. A background receive is abandoned.
func (u *UART) Remove() error {
	if u == nil {
		return ErrInvalidArgument
	}
	s := u.slot

	s.mu.Lock()
	st := Lifecycle(u.state.Load())
	if st != Configured && st != AsyncArmed {
		s.mu.Unlock()
		return fmt.Errorf("%w: device is %v", ErrInvalidArgument, st)
	}
	if s.rec.State == StateTransmitPending {
		s.mu.Unlock()
		return fmt.Errorf("%v: %w", u.id, ErrBusy)
	}
	u.state.Store(uint32(ShuttingDown))
	s.mu.Unlock()

	if u.irq != nil && st == AsyncArmed {
		line := u.port.IRQ()
		_ = u.irq.Disable(line)
		_ = u.irq.UnregisterCallback(line, hal.EventRxComplete)
	}
	err := u.port.Shutdown()

	u.table.release(u.id)
	u.state.Store(uint32(Removed))
	close(u.closed)

	if err != nil {
		logging.Warn(logging.ComponentHAL, "shutdown failed", "device", u.id, "err", err)
		return fmt.Errorf("%w: shutdown: %w", ErrIO, err)
	}
	logging.Info(logging.ComponentUART, "removed", "device", u.id)
	return nil
}

// Errors would report accumulated line errors. It is not implemented.
func (u *UART) Errors() error {
	return ErrUnsupported
}

// ID returns the device id.
func (u *UART) ID() DeviceID { return u.id }

// Baud returns the configured baud rate.
func (u *UART) Baud() uint32 { return u.baud }

// Lifecycle returns the current state machine position.
func (u *UART) Lifecycle() Lifecycle { return Lifecycle(u.state.Load()) }

// Readable returns a coalesced notification for RX readiness.
// The completion bridge sends on this channel after queueing a byte.
// Callers must re-check state after waking.
func (u *UART) Readable() <-chan struct{} { return u.notify }

// Done returns a coalesced notification sent whenever an asynchronous
// transaction completes. Callers must re-check TransferStatus after waking.
func (u *UART) Done() <-chan struct{} { return u.txNotify }

// Buffered returns the number of bytes currently stored in the software RX buffer.
func (u *UART) Buffered() int {
	if u.Buffer == nil {
		return 0
	}
	return u.Buffer.Used()
}

// Flush blocks until the transmitter reports empty, polling at roughly two
// character times, or until the write timeout elapses.
func (u *UART) Flush() error {
	tick := u.drainTick()
	deadline := time.Now().Add(u.cfg.WriteTimeout)
	for !u.port.Status().Has(hal.StatusTxEmpty) {
		if time.Now().After(deadline) {
			u.dbgTimeout()
			return ErrTimeout
		}
		time.Sleep(tick)
	}
	return nil
}

// drainTick returns a short polling interval for Flush based on the configured baud.
// The value is approximately two character times at 8N1, with a lower bound to avoid zero.
func (u *UART) drainTick() time.Duration {
	if u.baud == 0 {
		return 50 * time.Microsecond
	}
	perBit := time.Second / time.Duration(u.baud)
	t := 2 * 10 * perBit
	if t < 20*time.Microsecond {
		t = 20 * time.Microsecond
	}
	return t
}

func (u *UART) live() bool {
	st := Lifecycle(u.state.Load())
	return st == Configured || st == AsyncArmed
}

func signal(ch chan struct{}) bool {
	select {
	case ch <- struct{}{}:
		return true
	default:
		return false
	}
}
