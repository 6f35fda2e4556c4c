// Package sim provides a deterministic simulated UART port and interrupt
// controller implementing the hal interfaces.
//
// Nothing happens in the background unless asked: bytes arriving on the line
// are queued with Feed and the "interrupt" that moves them into an armed
// transaction runs when Service is called (or periodically under Run).
// Faults can be injected per hardware step.
package sim

import (
	"context"
	"sync"
	"time"

	"github.com/jangala-dev/uartx-async/hal"
)

// DefaultFIFODepth matches the 8-entry FIFO of small Cortex-M UARTs.
const DefaultFIFODepth = 8

// Step names a hardware operation for fault injection.
type Step uint8

const (
	StepInit Step = iota
	StepPins
	StepDataSize
	StepParity
	StepStopBits
	StepFlow
	StepArm
	StepWrite
	StepRead
	StepShutdown
	numSteps
)

// LineConfig is the line format last programmed into a Port.
type LineConfig struct {
	Baud          uint32
	Voltage       hal.VoltageLevel
	DataSize      hal.WordSize
	Parity        hal.Parity
	StopBits      hal.StopBits
	Flow          hal.FlowControl
	FlowThreshold int
}

type fault struct {
	after int // successful calls left before failing; <0 disarmed
	err   error
}

// Port is a simulated UART instance. The zero value is not usable; call NewPort.
type Port struct {
	mu   sync.Mutex
	cond *sync.Cond

	irq   hal.IRQ
	depth int

	enabled   bool
	line      LineConfig
	order     []Step
	shutdowns int

	rx      []byte
	pending *hal.Transaction
	wire    []byte
	writes  [][]byte
	peer    *Port

	faults    [numSteps]fault
	busyPolls int
	stuckTx   bool
}

// NewPort returns a simulated port completing on irq with the given FIFO
// depth (DefaultFIFODepth if depth <= 0).
func NewPort(irq hal.IRQ, depth int) *Port {
	if depth <= 0 {
		depth = DefaultFIFODepth
	}
	p := &Port{irq: irq, depth: depth}
	p.cond = sync.NewCond(&p.mu)
	for i := range p.faults {
		p.faults[i].after = -1
	}
	return p
}

// Connect cross-wires a and b so that bytes transmitted by one arrive at the other.
func Connect(a, b *Port) {
	a.mu.Lock()
	a.peer = b
	a.mu.Unlock()
	b.mu.Lock()
	b.peer = a
	b.mu.Unlock()
}

// Fail makes step return err after it has succeeded `after` more times.
// A nil err clears the fault.
func (p *Port) Fail(step Step, after int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		p.faults[step] = fault{after: -1}
		return
	}
	p.faults[step] = fault{after: after, err: err}
}

// HoldTx makes Status report a non-empty transmitter for the next n polls.
func (p *Port) HoldTx(n int) {
	p.mu.Lock()
	p.busyPolls = n
	p.mu.Unlock()
}

// StickTx makes the transmitter never report empty while stuck is true.
func (p *Port) StickTx(stuck bool) {
	p.mu.Lock()
	p.stuckTx = stuck
	p.mu.Unlock()
}

// check consumes one call of step and returns the injected error, if due.
// Configuration steps are recorded in p.order. Caller holds p.mu.
func (p *Port) check(step Step) error {
	if step <= StepFlow || step == StepShutdown {
		p.order = append(p.order, step)
	}
	f := &p.faults[step]
	switch {
	case f.after < 0:
		return nil
	case f.after == 0:
		return f.err
	default:
		f.after--
		return nil
	}
}

func (p *Port) Init(baud uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(StepInit); err != nil {
		return err
	}
	p.line = LineConfig{Baud: baud}
	p.enabled = true
	return nil
}

func (p *Port) ConfigurePins(v hal.VoltageLevel) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(StepPins); err != nil {
		return err
	}
	p.line.Voltage = v
	return nil
}

func (p *Port) SetDataSize(bits hal.WordSize) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(StepDataSize); err != nil {
		return err
	}
	p.line.DataSize = bits
	return nil
}

func (p *Port) SetParity(par hal.Parity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(StepParity); err != nil {
		return err
	}
	p.line.Parity = par
	return nil
}

func (p *Port) SetStopBits(s hal.StopBits) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(StepStopBits); err != nil {
		return err
	}
	p.line.StopBits = s
	return nil
}

func (p *Port) SetFlowControl(f hal.FlowControl, threshold int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(StepFlow); err != nil {
		return err
	}
	p.line.Flow, p.line.FlowThreshold = f, threshold
	return nil
}

func (p *Port) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.check(StepShutdown)
	p.enabled = false
	p.pending = nil
	p.shutdowns++
	p.cond.Broadcast()
	return err
}

// TransactionAsync arms t. Completion happens on a later Service call.
func (p *Port) TransactionAsync(t *hal.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return hal.ErrClosed
	}
	if err := p.check(StepArm); err != nil {
		return err
	}
	if p.pending != nil {
		return hal.ErrBusy
	}
	t.RxCount, t.TxCount = 0, 0
	p.pending = t
	return nil
}

func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	if !p.enabled {
		p.mu.Unlock()
		return 0, hal.ErrClosed
	}
	if err := p.check(StepWrite); err != nil {
		p.mu.Unlock()
		return 0, err
	}
	if len(b) > p.depth {
		b = b[:p.depth]
	}
	p.writes = append(p.writes, append([]byte(nil), b...))
	p.wire = append(p.wire, b...)
	peer := p.peer
	p.mu.Unlock()

	if peer != nil {
		peer.Receive(b)
	}
	return len(b), nil
}

// Read blocks until len(b) bytes have arrived or the port is shut down.
func (p *Port) Read(b []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(StepRead); err != nil {
		return err
	}
	for p.enabled && len(p.rx) < len(b) {
		p.cond.Wait()
	}
	if !p.enabled {
		return hal.ErrClosed
	}
	n := copy(b, p.rx)
	p.rx = p.rx[n:]
	return nil
}

func (p *Port) Status() hal.StatusFlags {
	p.mu.Lock()
	defer p.mu.Unlock()
	var s hal.StatusFlags
	switch {
	case p.stuckTx:
	case p.busyPolls > 0:
		p.busyPolls--
	default:
		s |= hal.StatusTxEmpty
	}
	if len(p.rx) == 0 {
		s |= hal.StatusRxEmpty
	}
	if p.pending != nil {
		if p.pending.Rx != nil {
			s |= hal.StatusRxBusy
		} else {
			s |= hal.StatusTxBusy
		}
	}
	return s
}

func (p *Port) FIFODepth() int { return p.depth }

func (p *Port) IRQ() hal.IRQ { return p.irq }

// Feed queues bytes as if they had arrived on the RX line.
func (p *Port) Feed(b []byte) {
	p.mu.Lock()
	p.rx = append(p.rx, b...)
	p.cond.Broadcast()
	p.mu.Unlock()
}

// Receive feeds b and services the port.
func (p *Port) Receive(b []byte) {
	p.Feed(b)
	p.Service()
}

// Service plays the port's interrupt: it moves queued RX bytes into an armed
// receive and completes an armed transmit, invoking transaction callbacks in
// the calling goroutine until no further progress is possible. It returns
// the number of callbacks invoked.
func (p *Port) Service() int {
	fired := 0
	for {
		p.mu.Lock()
		t := p.pending
		if t == nil || !p.enabled {
			p.mu.Unlock()
			return fired
		}

		var deliver []byte
		var peer *Port
		if t.Rx != nil {
			n := copy(t.Rx[t.RxCount:], p.rx)
			p.rx = p.rx[n:]
			t.RxCount += n
			if t.RxCount < len(t.Rx) {
				p.mu.Unlock()
				return fired
			}
		} else {
			t.TxCount = len(t.Tx)
			p.wire = append(p.wire, t.Tx...)
			deliver, peer = t.Tx, p.peer
		}
		p.pending = nil
		p.mu.Unlock()

		if peer != nil {
			peer.Receive(deliver)
		}
		if t.Callback != nil {
			t.Callback(t, nil)
		}
		fired++
	}
}

// Abort completes the armed transaction with err, as a line error would.
func (p *Port) Abort(err error) bool {
	p.mu.Lock()
	t := p.pending
	p.pending = nil
	p.mu.Unlock()
	if t == nil {
		return false
	}
	if t.Callback != nil {
		t.Callback(t, err)
	}
	return true
}

// Run calls Service every interval until ctx is done.
func (p *Port) Run(ctx context.Context, interval time.Duration) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			p.Service()
		}
	}
}

// Pending reports whether a transaction is armed.
func (p *Port) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending != nil
}

// Enabled reports whether the port is initialized and not shut down.
func (p *Port) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// Line returns the programmed line format.
func (p *Port) Line() LineConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.line
}

// Order returns the configuration and shutdown steps invoked so far.
func (p *Port) Order() []Step {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Step(nil), p.order...)
}

// Wire returns every byte transmitted so far.
func (p *Port) Wire() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.wire...)
}

// Writes returns the chunks passed to Write, in order.
func (p *Port) Writes() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.writes))
	copy(out, p.writes)
	return out
}

// Shutdowns returns how many times Shutdown was called.
func (p *Port) Shutdowns() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shutdowns
}

func (s Step) String() string {
	switch s {
	case StepInit:
		return "init"
	case StepPins:
		return "pins"
	case StepDataSize:
		return "data-size"
	case StepParity:
		return "parity"
	case StepStopBits:
		return "stop-bits"
	case StepFlow:
		return "flow"
	case StepArm:
		return "arm"
	case StepWrite:
		return "write"
	case StepRead:
		return "read"
	case StepShutdown:
		return "shutdown"
	default:
		return "step?"
	}
}
