// Package ttyport implements hal.Port on a host serial device (a USB-UART
// bridge or a native tty) through go.bug.st/serial.
//
// A reader goroutine stands in for the RX interrupt: it moves bytes from the
// OS into a software FIFO and completes an armed receive from there.
// Asynchronous transmits run on their own goroutine.
package ttyport

import (
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/jangala-dev/uartx-async/hal"
	"github.com/jangala-dev/uartx-async/internal/logging"
	"github.com/jangala-dev/uartx-async/internal/xfer"
)

// Defaults for zero Config fields.
const (
	DefaultFIFODepth = 64
	DefaultReadPoll  = 10 * time.Millisecond

	maxQueued = 4096
)

// Conn is the part of serial.Port the backend drives.
type Conn interface {
	SetMode(mode *serial.Mode) error
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Drain() error
	ResetInputBuffer() error
	SetReadTimeout(t time.Duration) error
	Close() error
}

// OpenFunc opens the named device with an initial mode.
type OpenFunc func(name string, mode *serial.Mode) (Conn, error)

// OpenSerial opens a real serial device.
func OpenSerial(name string, mode *serial.Mode) (Conn, error) {
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Config selects the device and the emulated hardware characteristics.
type Config struct {
	Name      string // e.g. /dev/ttyUSB0 or COM3
	IRQ       hal.IRQ
	FIFODepth int           // largest Write chunk; 0 selects DefaultFIFODepth
	ReadPoll  time.Duration // OS read timeout of the reader goroutine
	Open      OpenFunc      // nil selects OpenSerial
}

// Port is a hal.Port backed by a serial device.
type Port struct {
	cfg Config
	q   *xfer.Queue

	mu   sync.Mutex
	conn Conn
	mode serial.Mode
	stop chan struct{}
}

// New returns an unopened port. The device is opened by Init.
func New(cfg Config) *Port {
	if cfg.FIFODepth <= 0 {
		cfg.FIFODepth = DefaultFIFODepth
	}
	if cfg.ReadPoll <= 0 {
		cfg.ReadPoll = DefaultReadPoll
	}
	if cfg.Open == nil {
		cfg.Open = OpenSerial
	}
	return &Port{cfg: cfg, q: xfer.New(maxQueued)}
}

// Init opens the device at baud with 8N1 framing, or changes the baud rate
// of an already open device.
func (p *Port) Init(baud uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil {
		m := p.mode
		m.BaudRate = int(baud)
		if err := p.conn.SetMode(&m); err != nil {
			return err
		}
		p.mode = m
		return nil
	}

	p.mode = serial.Mode{
		BaudRate: int(baud),
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	conn, err := p.cfg.Open(p.cfg.Name, &p.mode)
	if err != nil {
		return fmt.Errorf("open %s: %w", p.cfg.Name, err)
	}
	if err := conn.SetReadTimeout(p.cfg.ReadPoll); err != nil {
		conn.Close()
		return fmt.Errorf("%s: set read timeout: %w", p.cfg.Name, err)
	}
	_ = conn.ResetInputBuffer()

	p.conn = conn
	p.stop = make(chan struct{})
	p.q.Open()
	go p.run(conn, p.stop)

	logging.Debug(logging.ComponentHAL, "serial port opened", "port", p.cfg.Name, "baud", baud)
	return nil
}

// ConfigurePins accepts only the default level; host adapters have a fixed I/O voltage.
func (p *Port) ConfigurePins(v hal.VoltageLevel) error {
	if v != hal.VoltageDefault {
		return hal.ErrUnsupported
	}
	return nil
}

func (p *Port) SetDataSize(bits hal.WordSize) error {
	return p.setMode(func(m *serial.Mode) error {
		m.DataBits = int(bits)
		return nil
	})
}

func (p *Port) SetParity(par hal.Parity) error {
	return p.setMode(func(m *serial.Mode) error {
		switch par {
		case hal.ParityNone:
			m.Parity = serial.NoParity
		case hal.ParityOdd:
			m.Parity = serial.OddParity
		case hal.ParityEven:
			m.Parity = serial.EvenParity
		case hal.ParityMark:
			m.Parity = serial.MarkParity
		case hal.ParitySpace:
			m.Parity = serial.SpaceParity
		default:
			return hal.ErrUnsupported
		}
		return nil
	})
}

func (p *Port) SetStopBits(s hal.StopBits) error {
	return p.setMode(func(m *serial.Mode) error {
		switch s {
		case hal.StopBits1:
			m.StopBits = serial.OneStopBit
		case hal.StopBits2:
			m.StopBits = serial.TwoStopBits
		default:
			return hal.ErrUnsupported
		}
		return nil
	})
}

// SetFlowControl accepts only FlowDisabled; the serial library exposes no
// RTS/CTS handshake setting.
func (p *Port) SetFlowControl(f hal.FlowControl, _ int) error {
	if f != hal.FlowDisabled {
		return hal.ErrUnsupported
	}
	return nil
}

func (p *Port) setMode(fn func(*serial.Mode) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return hal.ErrClosed
	}
	m := p.mode
	if err := fn(&m); err != nil {
		return err
	}
	if err := p.conn.SetMode(&m); err != nil {
		return err
	}
	p.mode = m
	return nil
}

// Shutdown closes the device. An armed transaction is abandoned.
func (p *Port) Shutdown() error {
	p.mu.Lock()
	conn := p.conn
	if conn == nil {
		p.mu.Unlock()
		return nil
	}
	p.conn = nil
	close(p.stop)
	p.q.Close()
	p.mu.Unlock()

	logging.Debug(logging.ComponentHAL, "serial port closed", "port", p.cfg.Name)
	return conn.Close()
}

func (p *Port) TransactionAsync(t *hal.Transaction) error {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return hal.ErrClosed
	}
	return p.q.Arm(t, func(b []byte) (int, error) {
		n, err := conn.Write(b)
		if err == nil {
			err = conn.Drain()
		}
		return n, err
	})
}

func (p *Port) Write(b []byte) (int, error) {
	if len(b) > p.cfg.FIFODepth {
		b = b[:p.cfg.FIFODepth]
	}
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return 0, hal.ErrClosed
	}
	return p.q.Write(func() (int, error) { return conn.Write(b) })
}

// Read blocks until len(b) bytes have been received.
func (p *Port) Read(b []byte) error { return p.q.Read(b) }

func (p *Port) Status() hal.StatusFlags { return p.q.Status() }

func (p *Port) FIFODepth() int { return p.cfg.FIFODepth }

func (p *Port) IRQ() hal.IRQ { return p.cfg.IRQ }

// run is the reader goroutine for one open session of conn.
func (p *Port) run(conn Conn, stop <-chan struct{}) {
	buf := make([]byte, p.cfg.FIFODepth)
	for {
		n, err := conn.Read(buf)
		select {
		case <-stop:
			return
		default:
		}
		if err != nil {
			logging.Warn(logging.ComponentHAL, "serial read failed", "port", p.cfg.Name, "err", err)
			p.q.Fail(err, fmt.Errorf("%s: %w", p.cfg.Name, err))
			return
		}
		if n > 0 {
			p.q.Push(buf[:n])
		} else {
			p.q.Service()
		}
	}
}
