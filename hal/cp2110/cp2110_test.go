package cp2110

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jangala-dev/uartx-async/hal"
	"github.com/jangala-dev/uartx-async/hal/sim"
	"github.com/jangala-dev/uartx-async/uartx"
)

// fakeDevice records reports sent to a CP2110 and plays back interrupt
// reports queued on in.
type fakeDevice struct {
	in chan []byte

	mu       sync.Mutex
	features [][]byte
	writes   [][]byte
	txFIFO   uint16
	errFlags uint8
	closed   bool
}

func newFakeDevice() *fakeDevice { return &fakeDevice{in: make(chan []byte, 16)} }

func (d *fakeDevice) Write(b []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes = append(d.writes, append([]byte(nil), b...))
	return len(b), nil
}

func (d *fakeDevice) ReadWithTimeout(b []byte, timeout time.Duration) (int, error) {
	select {
	case r := <-d.in:
		return copy(b, r), nil
	case <-time.After(timeout):
		return 0, nil
	}
}

func (d *fakeDevice) GetFeatureReport(b []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b[0] != reportUARTStatus {
		return 0, errors.New("unexpected report")
	}
	b[1], b[2] = byte(d.txFIFO>>8), byte(d.txFIFO)
	b[3], b[4] = 0, 0
	b[5], b[6] = d.errFlags, 0
	return 7, nil
}

func (d *fakeDevice) SendFeatureReport(b []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.features = append(d.features, append([]byte(nil), b...))
	return len(b), nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) sentFeatures() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]byte(nil), d.features...)
}

func (d *fakeDevice) sentData() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []byte
	for _, w := range d.writes {
		out = append(out, parseDataReport(w)...)
	}
	return out
}

func newTestPort(t *testing.T) (*Port, *fakeDevice) {
	t.Helper()
	dev := newFakeDevice()
	p := New(Config{
		IRQ:      3,
		ReadPoll: 2 * time.Millisecond,
		Open:     func() (Device, error) { return dev, nil },
	})
	t.Cleanup(func() { _ = p.Shutdown() })
	return p, dev
}

func TestLineConfig_Encoding(t *testing.T) {
	c := lineConfig{Baud: 115200, Parity: 2, Flow: 1, DataBits: 2, StopBits: 1}
	want := []byte{0x50, 0x00, 0x01, 0xC2, 0x00, 0x02, 0x01, 0x02, 0x01}
	if diff := cmp.Diff(want, c.marshal()); diff != "" {
		t.Fatalf("marshal (-want +got):\n%s", diff)
	}
	got, err := parseLineConfig(want)
	if err != nil || got != c {
		t.Fatalf("parse = %+v, %v", got, err)
	}
	if _, err := parseLineConfig(want[:5]); !errors.Is(err, errShortReport) {
		t.Fatalf("short report: err = %v", err)
	}
}

func TestDataReport_Framing(t *testing.T) {
	long := bytes.Repeat([]byte{0xAA}, 100)
	r := dataReport(long)
	if len(r) != 1+reportDataMax || r[0] != reportDataMax {
		t.Fatalf("report id %#x len %d", r[0], len(r))
	}
	if got := parseDataReport([]byte{3, 'a', 'b', 'c', 0, 0}); string(got) != "abc" {
		t.Fatalf("payload = %q", got)
	}
	for _, bad := range [][]byte{nil, {0}, {0x41, 1}, {5, 'a'}} {
		if got := parseDataReport(bad); got != nil {
			t.Errorf("parseDataReport(%v) = %v; want nil", bad, got)
		}
	}
}

func TestPort_InitSequence(t *testing.T) {
	p, dev := newTestPort(t)
	if err := p.Init(9600); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := p.SetParity(hal.ParityMark); err != nil {
		t.Fatal(err)
	}
	if err := p.SetDataSize(hal.WordSize7); err != nil {
		t.Fatal(err)
	}
	if err := p.SetStopBits(hal.StopBits2); err != nil {
		t.Fatal(err)
	}
	if err := p.SetFlowControl(hal.FlowActiveHigh, 0); !errors.Is(err, hal.ErrUnsupported) {
		t.Fatalf("active-high flow: err = %v", err)
	}

	f := dev.sentFeatures()
	want := [][]byte{
		{reportUARTEnable, 1},
		lineConfig{Baud: 9600, DataBits: 3}.marshal(),
		{reportPurge, purgeBoth},
		lineConfig{Baud: 9600, Parity: 3, DataBits: 3}.marshal(),
		lineConfig{Baud: 9600, Parity: 3, DataBits: 2}.marshal(),
		lineConfig{Baud: 9600, Parity: 3, DataBits: 2, StopBits: 1}.marshal(),
	}
	if diff := cmp.Diff(want, f); diff != "" {
		t.Fatalf("feature reports (-want +got):\n%s", diff)
	}

	if err := p.Shutdown(); err != nil {
		t.Fatal(err)
	}
	f = dev.sentFeatures()
	if last := f[len(f)-1]; !bytes.Equal(last, []byte{reportUARTEnable, 0}) {
		t.Fatalf("last feature = %v; want uart disable", last)
	}
}

func TestPort_StatusFromChip(t *testing.T) {
	p, dev := newTestPort(t)
	if err := p.Init(115200); err != nil {
		t.Fatal(err)
	}
	if !p.Status().Has(hal.StatusTxEmpty) {
		t.Fatal("idle chip reported busy")
	}
	dev.mu.Lock()
	dev.txFIFO, dev.errFlags = 12, statusOverrun
	dev.mu.Unlock()
	s := p.Status()
	if s.Has(hal.StatusTxEmpty) || !s.Has(hal.StatusOverrun) {
		t.Fatalf("status = %#x", s)
	}
}

func TestPort_DriverRoundTrip(t *testing.T) {
	p, dev := newTestPort(t)
	u, err := uartx.Init(uartx.Config{
		DeviceID: 2,
		BaudRate: 115200,
		AsyncRx:  true,
		Port:     p,
		IRQ:      sim.NewController(),
		Table:    uartx.NewTable(uartx.MaxDevices),
	})
	if err != nil {
		t.Fatalf("uartx.Init: %v", err)
	}
	defer u.Remove()

	dev.in <- []byte{3, 0x41, 0x42, 0x43}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	buf := make([]byte, 3)
	if _, err := u.ReadFullContext(ctx, buf); err != nil || string(buf) != "ABC" {
		t.Fatalf("ReadFullContext = %q, %v", buf, err)
	}

	msg := bytes.Repeat([]byte("x"), 100)
	if n, err := u.Write(msg); err != nil || n != len(msg) {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if got := dev.sentData(); !bytes.Equal(got, msg) {
		t.Fatalf("sent %d bytes; want %d", len(got), len(msg))
	}
	dev.mu.Lock()
	reports := len(dev.writes)
	dev.mu.Unlock()
	if reports != 2 {
		t.Fatalf("reports = %d; want 2", reports)
	}
}
