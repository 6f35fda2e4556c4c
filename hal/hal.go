package hal

import "errors"

// Hardware-level errors reported by Port implementations.
var (
	// ErrBusy is returned by TransactionAsync when a transaction is already
	// in flight on the port.
	ErrBusy = errors.New("transaction in progress")

	// ErrUnsupported indicates the backend cannot honour a setting.
	ErrUnsupported = errors.New("not supported by hardware")

	// ErrClosed indicates the port has been shut down.
	ErrClosed = errors.New("port shut down")
)

// IRQ identifies an interrupt line on an InterruptController.
type IRQ uint16

// Event selects which completion a registered callback is interested in.
type Event uint8

// Completion events dispatched by the driver's transaction callback.
const (
	EventRxComplete Event = iota // receive transaction finished
	EventTxComplete              // transmit transaction finished
)

// String returns the event name.
func (e Event) String() string {
	switch e {
	case EventRxComplete:
		return "rx-complete"
	case EventTxComplete:
		return "tx-complete"
	default:
		return "unknown"
	}
}

// StatusFlags is the hardware status bitmask returned by Port.Status.
type StatusFlags uint32

// Status bits.
const (
	StatusTxEmpty StatusFlags = 1 << iota // transmit FIFO empty
	StatusTxFull                          // transmit FIFO full
	StatusRxEmpty                         // receive FIFO empty
	StatusRxFull                          // receive FIFO full
	StatusTxBusy                          // asynchronous transmit in flight
	StatusRxBusy                          // asynchronous receive in flight
	StatusOverrun                         // receive overrun since last read
)

// Has reports whether all bits in f are set.
func (s StatusFlags) Has(f StatusFlags) bool { return s&f == f }

// Transaction is the request handed to Port.TransactionAsync.
//
// The port owns the transaction from a successful arm until it invokes
// Callback. Callback runs in interrupt context and must not block.
type Transaction struct {
	Tx      []byte
	TxCount int
	Rx      []byte
	RxCount int

	Callback func(t *Transaction, err error)
}

// Port is the hardware transaction primitive for one UART instance.
//
// Implementations must never invoke a transaction callback synchronously
// from within TransactionAsync.
type Port interface {
	// Init enables the peripheral at the given baud rate.
	Init(baud uint32) error
	// ConfigurePins routes the UART pins at the given I/O voltage.
	ConfigurePins(v VoltageLevel) error
	SetDataSize(bits WordSize) error
	SetParity(p Parity) error
	SetStopBits(s StopBits) error
	// SetFlowControl configures RTS/CTS; threshold is the RX FIFO level at
	// which RTS is deasserted, where the hardware supports one.
	SetFlowControl(f FlowControl, threshold int) error
	// Shutdown disables the peripheral and abandons any armed transaction
	// without invoking its callback.
	Shutdown() error

	// TransactionAsync arms t. It returns nil once started, ErrBusy when a
	// transaction is already in flight, or another error on failure.
	TransactionAsync(t *Transaction) error

	// Write transmits p synchronously and returns the bytes accepted.
	Write(p []byte) (int, error)
	// Read blocks until len(p) bytes have been received.
	Read(p []byte) error
	Status() StatusFlags
	// FIFODepth is the largest chunk Write accepts in one call.
	FIFODepth() int
	// IRQ is the interrupt line the port completes transactions on.
	IRQ() IRQ
}

// Callback is a handler registered with an InterruptController.
type Callback struct {
	Event   Event
	Handler func(ctx any)
	Context any
}

// InterruptController routes completion events to registered handlers.
type InterruptController interface {
	RegisterCallback(irq IRQ, cb Callback) error
	UnregisterCallback(irq IRQ, ev Event) error
	Enable(irq IRQ) error
	Disable(irq IRQ) error
	// Dispatch invokes the handler registered for (irq, ev) if the line is
	// enabled. It is called from interrupt context.
	Dispatch(irq IRQ, ev Event)
}
