package uartx

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jangala-dev/uartx-async/hal"
	"github.com/jangala-dev/uartx-async/hal/sim"
)

const testIRQ hal.IRQ = 14

var errHW = errors.New("hardware fault")

type testRig struct {
	port  *sim.Port
	ctrl  *sim.Controller
	table *Table
	cfg   Config
}

func newRig(async bool) *testRig {
	r := &testRig{
		port:  sim.NewPort(testIRQ, 4),
		ctrl:  sim.NewController(),
		table: NewTable(MaxDevices),
	}
	r.cfg = Config{
		DeviceID: 0,
		BaudRate: 115200,
		WordSize: WordSize8,
		StopBits: StopBits1,
		AsyncRx:  async,
		Port:     r.port,
		IRQ:      r.ctrl,
		Table:    r.table,
	}
	return r
}

// newTestUART returns an initialized UART on simulated hardware.
func newTestUART(t *testing.T, async bool) (*UART, *testRig) {
	t.Helper()
	r := newRig(async)
	u, err := Init(r.cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = u.Remove() })
	return u, r
}

func TestInit_AsyncScenario(t *testing.T) {
	u, r := newTestUART(t, true)

	if got := u.Lifecycle(); got != AsyncArmed {
		t.Fatalf("lifecycle = %v; want %v", got, AsyncArmed)
	}
	if !r.port.Pending() {
		t.Fatal("no receive armed after Init")
	}

	for _, b := range []byte{0x41, 0x42, 0x43} {
		r.port.Receive([]byte{b})
	}

	buf := make([]byte, 3)
	n, err := u.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 3 || string(buf) != "ABC" {
		t.Fatalf("got n=%d data=%q; want 3, \"ABC\"", n, buf)
	}
}

func TestInit_ProgramsHardwareInOrder(t *testing.T) {
	r := newRig(false)
	r.cfg.Parity = ParityEven
	r.cfg.WordSize = WordSize7
	r.cfg.StopBits = StopBits2
	r.cfg.FlowControl = FlowActiveLow
	r.cfg.Voltage = hal.Voltage3V3

	u, err := Init(r.cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer u.Remove()

	want := []sim.Step{sim.StepInit, sim.StepPins, sim.StepDataSize, sim.StepParity, sim.StepStopBits, sim.StepFlow}
	if diff := cmp.Diff(want, r.port.Order()); diff != "" {
		t.Errorf("hardware step order (-want +got):\n%s", diff)
	}

	wantLine := sim.LineConfig{
		Baud:          115200,
		Voltage:       hal.Voltage3V3,
		DataSize:      WordSize7,
		Parity:        ParityEven,
		StopBits:      StopBits2,
		Flow:          FlowActiveLow,
		FlowThreshold: DefaultFlowThreshold,
	}
	if diff := cmp.Diff(wantLine, r.port.Line()); diff != "" {
		t.Errorf("line config (-want +got):\n%s", diff)
	}
	if u.Lifecycle() != Configured {
		t.Errorf("lifecycle = %v; want %v", u.Lifecycle(), Configured)
	}
	if u.Buffer != nil {
		t.Error("ring allocated without AsyncRx")
	}
}

func TestInit_Defaults(t *testing.T) {
	r := newRig(false)
	r.cfg.BaudRate = 0
	r.cfg.WordSize = 0
	r.cfg.StopBits = 0

	u, err := Init(r.cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer u.Remove()

	line := r.port.Line()
	if line.Baud != DefaultBaudRate || line.DataSize != WordSize8 || line.StopBits != StopBits1 {
		t.Fatalf("defaults not applied: %+v", line)
	}
}

func TestInit_RejectsUnrecognizedEnums(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"parity", func(c *Config) { c.Parity = Parity(9) }},
		{"word size", func(c *Config) { c.WordSize = WordSize(9) }},
		{"word size low", func(c *Config) { c.WordSize = WordSize(4) }},
		{"stop bits", func(c *Config) { c.StopBits = StopBits(3) }},
		{"flow control", func(c *Config) { c.FlowControl = FlowControl(7) }},
		{"device id", func(c *Config) { c.DeviceID = MaxDevices }},
		{"nil port", func(c *Config) { c.Port = nil }},
		{"async without irq", func(c *Config) { c.IRQ = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(true)
			tt.mod(&r.cfg)

			u, err := Init(r.cfg)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("err = %v; want ErrInvalidArgument", err)
			}
			if u != nil {
				t.Fatal("handle returned on error")
			}
			if r.table.InUse(0) {
				t.Error("table record left claimed")
			}
			if steps := r.port.Order(); len(steps) != 0 {
				t.Errorf("hardware touched: %v", steps)
			}
		})
	}
}

func TestInit_ConfigurationFailureRollsBack(t *testing.T) {
	tests := []struct {
		step          sim.Step
		wantShutdowns int
	}{
		{sim.StepInit, 0},
		{sim.StepPins, 1},
		{sim.StepDataSize, 1},
		{sim.StepParity, 1},
		{sim.StepStopBits, 1},
		{sim.StepFlow, 1},
	}
	for _, tt := range tests {
		t.Run(tt.step.String(), func(t *testing.T) {
			r := newRig(true)
			r.port.Fail(tt.step, 0, errHW)

			_, err := Init(r.cfg)
			if !errors.Is(err, ErrConfigurationFailed) {
				t.Fatalf("err = %v; want ErrConfigurationFailed", err)
			}
			if !errors.Is(err, errHW) {
				t.Errorf("hardware cause not wrapped: %v", err)
			}
			if got := r.port.Shutdowns(); got != tt.wantShutdowns {
				t.Errorf("shutdowns = %d; want %d", got, tt.wantShutdowns)
			}
			if r.table.InUse(0) {
				t.Error("table record left claimed")
			}
			if r.ctrl.Registered(testIRQ, hal.EventRxComplete) {
				t.Error("bridge registered after failed configure")
			}
		})
	}
}

func TestInit_AsyncSetupRollsBack(t *testing.T) {
	tests := []struct {
		name    string
		inject  func(r *testRig)
		wantErr error
	}{
		{"register", func(r *testRig) { r.ctrl.FailRegister(errHW) }, ErrConfigurationFailed},
		{"enable", func(r *testRig) { r.ctrl.FailEnable(errHW) }, ErrConfigurationFailed},
		{"first arm", func(r *testRig) { r.port.Fail(sim.StepArm, 0, errHW) }, ErrIO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(true)
			tt.inject(r)

			_, err := Init(r.cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v; want %v", err, tt.wantErr)
			}
			if r.ctrl.Registered(testIRQ, hal.EventRxComplete) {
				t.Error("bridge still registered")
			}
			if r.ctrl.Enabled(testIRQ) {
				t.Error("irq still enabled")
			}
			if r.port.Enabled() {
				t.Error("port not shut down")
			}
			if r.table.InUse(0) {
				t.Error("table record left claimed")
			}
		})
	}
}

func TestInit_TableClaims(t *testing.T) {
	r := newRig(false)
	u, err := Init(r.cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	second := r.cfg
	second.Port = sim.NewPort(testIRQ+1, 4)
	if _, err := Init(second); !errors.Is(err, ErrBusy) {
		t.Fatalf("duplicate device: err = %v; want ErrBusy", err)
	}

	if err := r.table.Close(); !errors.Is(err, ErrBusy) {
		t.Fatalf("Close with open device: err = %v; want ErrBusy", err)
	}
	if err := u.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := r.table.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := Init(r.cfg); !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("Init after Close: err = %v; want ErrOutOfMemory", err)
	}
}

func TestInit_DeviceBeyondTable(t *testing.T) {
	r := newRig(false)
	r.cfg.Table = NewTable(1)
	r.cfg.DeviceID = 2
	if _, err := Init(r.cfg); !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("err = %v; want ErrOutOfMemory", err)
	}
}

func TestRemove_ReleasesEverything(t *testing.T) {
	r := newRig(true)
	u, err := Init(r.cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	if err := u.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if u.Lifecycle() != Removed {
		t.Errorf("lifecycle = %v; want %v", u.Lifecycle(), Removed)
	}
	if r.port.Enabled() || r.port.Pending() {
		t.Error("port still running after Remove")
	}
	if r.ctrl.Registered(testIRQ, hal.EventRxComplete) || r.ctrl.Enabled(testIRQ) {
		t.Error("irq left registered or enabled")
	}
	if r.table.InUse(0) {
		t.Error("table record still claimed")
	}

	if err := u.Remove(); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("second Remove: err = %v; want ErrInvalidArgument", err)
	}
	if _, err := u.Read(make([]byte, 1)); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Read after Remove: err = %v; want ErrInvalidArgument", err)
	}
	if err := u.ReadNonblocking(make([]byte, 1)); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ReadNonblocking after Remove: err = %v; want ErrInvalidArgument", err)
	}

	// The record can be claimed again.
	u2, err := Init(r.cfg)
	if err != nil {
		t.Fatalf("re-Init: %v", err)
	}
	u2.Remove()
}

func TestRemove_RefusesPendingTransmit(t *testing.T) {
	r := newRig(false)
	u, err := Init(r.cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	if err := u.WriteNonblocking([]byte("bye")); err != nil {
		t.Fatalf("WriteNonblocking: %v", err)
	}
	if err := u.Remove(); !errors.Is(err, ErrBusy) {
		t.Fatalf("Remove with TX pending: err = %v; want ErrBusy", err)
	}
	if u.Lifecycle() != Configured {
		t.Fatalf("lifecycle = %v after refused Remove", u.Lifecycle())
	}

	r.port.Service()
	if err := u.Remove(); err != nil {
		t.Fatalf("Remove after completion: %v", err)
	}
}

func TestRemove_ShutdownError(t *testing.T) {
	r := newRig(false)
	u, err := Init(r.cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	r.port.Fail(sim.StepShutdown, 0, errHW)
	if err := u.Remove(); !errors.Is(err, ErrIO) {
		t.Fatalf("err = %v; want ErrIO", err)
	}
	if r.table.InUse(0) {
		t.Error("record kept after failed shutdown")
	}
}

func TestErrors_Unsupported(t *testing.T) {
	u, _ := newTestUART(t, false)
	if err := u.Errors(); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("Errors() = %v; want ErrUnsupported", err)
	}
}

func TestLifecycle_String(t *testing.T) {
	tests := []struct {
		l    Lifecycle
		want string
	}{
		{Uninitialized, "uninitialized"},
		{Configured, "configured"},
		{AsyncArmed, "async-armed"},
		{ShuttingDown, "shutting-down"},
		{Removed, "removed"},
		{Lifecycle(42), "lifecycle(42)"},
	}
	for _, tt := range tests {
		if got := tt.l.String(); got != tt.want {
			t.Errorf("%d.String() = %q; want %q", tt.l, got, tt.want)
		}
	}
}
