// Package cp2110 implements hal.Port on a Silicon Labs CP2110 HID-to-UART
// bridge.
//
// The chip is driven entirely through HID reports: feature reports configure
// and query the UART, interrupt reports carry the data. Any HID transport
// satisfying Device works; github.com/sstallion/go-hid devices do, and so do
// Linux hidraw nodes opened with internal/hidraw.
package cp2110

import (
	"fmt"
	"sync"
	"time"

	"github.com/jangala-dev/uartx-async/hal"
	"github.com/jangala-dev/uartx-async/internal/logging"
	"github.com/jangala-dev/uartx-async/internal/xfer"
)

// USB identifiers of the CP2110.
const (
	VendorID  = 0x10C4
	ProductID = 0xEA80
)

const (
	// DefaultReadPoll is the interrupt-report read timeout of the reader goroutine.
	DefaultReadPoll = 10 * time.Millisecond

	maxQueued = 4096
)

// Device is a HID transport. ReadWithTimeout must return (0, nil) when no
// report arrived in time. Report buffers start with the report ID.
type Device interface {
	Write(b []byte) (int, error)
	ReadWithTimeout(b []byte, timeout time.Duration) (int, error)
	GetFeatureReport(b []byte) (int, error)
	SendFeatureReport(b []byte) (int, error)
	Close() error
}

// Config selects the device and the emulated interrupt line.
type Config struct {
	IRQ      hal.IRQ
	ReadPoll time.Duration
	// Open returns the HID device. It is called by Init whenever the port is
	// not open.
	Open func() (Device, error)
}

// Port is a hal.Port backed by a CP2110.
type Port struct {
	cfg Config
	q   *xfer.Queue

	mu   sync.Mutex
	dev  Device
	line lineConfig
	stop chan struct{}
}

// New returns an unopened port.
func New(cfg Config) *Port {
	if cfg.ReadPoll <= 0 {
		cfg.ReadPoll = DefaultReadPoll
	}
	return &Port{cfg: cfg, q: xfer.New(maxQueued)}
}

// Init opens the device, enables its UART at baud with 8N1 framing and
// purges both FIFOs. On an open port it changes the baud rate only.
func (p *Port) Init(baud uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dev != nil {
		return p.setLine(func(c *lineConfig) error {
			c.Baud = baud
			return nil
		})
	}
	if p.cfg.Open == nil {
		return fmt.Errorf("cp2110: no device opener: %w", hal.ErrUnsupported)
	}
	dev, err := p.cfg.Open()
	if err != nil {
		return fmt.Errorf("cp2110: open: %w", err)
	}

	line := defaultLineConfig(baud)
	steps := []struct {
		name   string
		report []byte
	}{
		{"enable uart", []byte{reportUARTEnable, 1}},
		{"configure", line.marshal()},
		{"purge", []byte{reportPurge, purgeBoth}},
	}
	for _, st := range steps {
		if _, err := dev.SendFeatureReport(st.report); err != nil {
			dev.Close()
			return fmt.Errorf("cp2110: %s: %w", st.name, err)
		}
	}

	p.dev = dev
	p.line = line
	p.stop = make(chan struct{})
	p.q.Open()
	go p.run(dev, p.stop)

	logging.Debug(logging.ComponentHAL, "cp2110 opened", "baud", baud)
	return nil
}

// ConfigurePins accepts only the default level; the CP2110 I/O voltage
// follows its VIO pin.
func (p *Port) ConfigurePins(v hal.VoltageLevel) error {
	if v != hal.VoltageDefault {
		return hal.ErrUnsupported
	}
	return nil
}

func (p *Port) SetDataSize(bits hal.WordSize) error {
	return p.lockedSetLine(func(c *lineConfig) (err error) {
		c.DataBits, err = encodeDataBits(bits)
		return err
	})
}

func (p *Port) SetParity(par hal.Parity) error {
	return p.lockedSetLine(func(c *lineConfig) (err error) {
		c.Parity, err = encodeParity(par)
		return err
	})
}

func (p *Port) SetStopBits(s hal.StopBits) error {
	return p.lockedSetLine(func(c *lineConfig) (err error) {
		c.StopBits, err = encodeStopBits(s)
		return err
	})
}

// SetFlowControl supports the chip's active-low RTS/CTS only. The RTS
// threshold is fixed in silicon.
func (p *Port) SetFlowControl(f hal.FlowControl, _ int) error {
	return p.lockedSetLine(func(c *lineConfig) error {
		switch f {
		case hal.FlowDisabled:
			c.Flow = 0
		case hal.FlowActiveLow:
			c.Flow = 1
		default:
			return hal.ErrUnsupported
		}
		return nil
	})
}

func (p *Port) lockedSetLine(fn func(*lineConfig) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.setLine(fn)
}

// setLine applies fn to a copy of the line config and sends it. Caller holds p.mu.
func (p *Port) setLine(fn func(*lineConfig) error) error {
	if p.dev == nil {
		return hal.ErrClosed
	}
	c := p.line
	if err := fn(&c); err != nil {
		return err
	}
	if _, err := p.dev.SendFeatureReport(c.marshal()); err != nil {
		return fmt.Errorf("cp2110: configure: %w", err)
	}
	p.line = c
	return nil
}

// Shutdown disables the UART and closes the device.
func (p *Port) Shutdown() error {
	p.mu.Lock()
	dev := p.dev
	if dev == nil {
		p.mu.Unlock()
		return nil
	}
	p.dev = nil
	close(p.stop)
	p.q.Close()
	p.mu.Unlock()

	_, err := dev.SendFeatureReport([]byte{reportUARTEnable, 0})
	if cerr := dev.Close(); err == nil {
		err = cerr
	}
	logging.Debug(logging.ComponentHAL, "cp2110 closed")
	return err
}

func (p *Port) device() Device {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dev
}

func (p *Port) TransactionAsync(t *hal.Transaction) error {
	dev := p.device()
	if dev == nil {
		return hal.ErrClosed
	}
	return p.q.Arm(t, func(b []byte) (int, error) { return writeAll(dev, b) })
}

// Write sends at most FIFODepth bytes as one interrupt report.
func (p *Port) Write(b []byte) (int, error) {
	dev := p.device()
	if dev == nil {
		return 0, hal.ErrClosed
	}
	if len(b) > reportDataMax {
		b = b[:reportDataMax]
	}
	return p.q.Write(func() (int, error) { return writeAll(dev, b) })
}

func writeAll(dev Device, b []byte) (int, error) {
	sent := 0
	for sent < len(b) {
		r := dataReport(b[sent:])
		if _, err := dev.Write(r); err != nil {
			return sent, err
		}
		sent += len(r) - 1
	}
	return sent, nil
}

func (p *Port) Read(b []byte) error { return p.q.Read(b) }

// Status combines the software FIFO state with the chip's transmit FIFO
// count and error flags.
func (p *Port) Status() hal.StatusFlags {
	s := p.q.Status()
	dev := p.device()
	if dev == nil {
		return s
	}
	buf := make([]byte, 7)
	buf[0] = reportUARTStatus
	if _, err := dev.GetFeatureReport(buf); err != nil {
		logging.Debug(logging.ComponentHAL, "cp2110 status failed", "err", err)
		return s &^ hal.StatusTxEmpty
	}
	st, err := parseUARTStatus(buf)
	if err != nil {
		return s &^ hal.StatusTxEmpty
	}
	if st.TxFIFO != 0 {
		s &^= hal.StatusTxEmpty
	}
	if st.Errors&statusOverrun != 0 {
		s |= hal.StatusOverrun
	}
	return s
}

// FIFODepth is the payload of one interrupt report.
func (p *Port) FIFODepth() int { return reportDataMax }

func (p *Port) IRQ() hal.IRQ { return p.cfg.IRQ }

func (p *Port) run(dev Device, stop <-chan struct{}) {
	buf := make([]byte, 1+reportDataMax)
	for {
		n, err := dev.ReadWithTimeout(buf, p.cfg.ReadPoll)
		select {
		case <-stop:
			return
		default:
		}
		if err != nil {
			logging.Warn(logging.ComponentHAL, "cp2110 read failed", "err", err)
			p.q.Fail(err, fmt.Errorf("cp2110: %w", err))
			return
		}
		if data := parseDataReport(buf[:n]); len(data) > 0 {
			p.q.Push(data)
		} else {
			p.q.Service()
		}
	}
}
