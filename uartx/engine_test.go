package uartx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jangala-dev/uartx-async/hal"
	"github.com/jangala-dev/uartx-async/hal/sim"
)

func TestReadNonblocking_CompletesIntoCallerBuffer(t *testing.T) {
	u, r := newTestUART(t, false)

	buf := make([]byte, 4)
	if err := u.ReadNonblocking(buf); err != nil {
		t.Fatalf("ReadNonblocking: %v", err)
	}
	if st := u.TransferStatus().State; st != StateReceivePending {
		t.Fatalf("state = %v; want %v", st, StateReceivePending)
	}

	r.port.Receive([]byte("ab"))
	if st := u.TransferStatus().State; st != StateReceivePending {
		t.Fatalf("completed early with 2 of 4 bytes: state %v", st)
	}
	r.port.Receive([]byte("cd"))

	select {
	case <-u.Done():
	case <-time.After(time.Second):
		t.Fatal("no completion notification")
	}
	rec := u.TransferStatus()
	if rec.State != StateIdle || rec.RxCount != 4 || rec.Err != nil {
		t.Fatalf("record after completion = %+v", rec)
	}
	if string(buf) != "abcd" {
		t.Fatalf("buf = %q; want \"abcd\"", buf)
	}
}

func TestReadNonblocking_BusyLeavesArmedTransactionAlone(t *testing.T) {
	u, r := newTestUART(t, false)

	first := make([]byte, 2)
	second := make([]byte, 3)
	if err := u.ReadNonblocking(first); err != nil {
		t.Fatalf("first ReadNonblocking: %v", err)
	}
	if err := u.ReadNonblocking(second); !errors.Is(err, ErrBusy) {
		t.Fatalf("second ReadNonblocking: err = %v; want ErrBusy", err)
	}

	rec := u.TransferStatus()
	if rec.State != StateReceivePending {
		t.Fatalf("state = %v after rejected request", rec.State)
	}
	// The rejected request is still visible in the buffer fields.
	if rec.RxLen != len(second) {
		t.Errorf("RxLen = %d; want %d", rec.RxLen, len(second))
	}

	r.port.Receive([]byte("xy"))
	if string(first) != "xy" {
		t.Fatalf("first = %q; want \"xy\"", first)
	}
	if string(second) != "\x00\x00\x00" {
		t.Fatalf("rejected buffer was written: %q", second)
	}
	if err := u.WaitTransfer(context.Background()); err != nil {
		t.Fatalf("WaitTransfer: %v", err)
	}
}

func TestWriteNonblocking_TransmitsOnCompletion(t *testing.T) {
	u, r := newTestUART(t, false)

	if err := u.WriteNonblocking([]byte("ping")); err != nil {
		t.Fatalf("WriteNonblocking: %v", err)
	}
	if st := u.TransferStatus().State; st != StateTransmitPending {
		t.Fatalf("state = %v; want %v", st, StateTransmitPending)
	}
	if len(r.port.Wire()) != 0 {
		t.Fatal("bytes on the wire before the interrupt ran")
	}

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		done <- u.WaitTransfer(ctx)
	}()

	r.port.Service()
	if err := <-done; err != nil {
		t.Fatalf("WaitTransfer: %v", err)
	}
	if got := string(r.port.Wire()); got != "ping" {
		t.Fatalf("wire = %q; want \"ping\"", got)
	}
	if rec := u.TransferStatus(); rec.TxCount != 4 {
		t.Fatalf("TxCount = %d; want 4", rec.TxCount)
	}
}

func TestNonblocking_InvalidArguments(t *testing.T) {
	u, _ := newTestUART(t, false)
	var nilUART *UART

	tests := []struct {
		name string
		call func() error
	}{
		{"read empty", func() error { return u.ReadNonblocking(nil) }},
		{"write empty", func() error { return u.WriteNonblocking([]byte{}) }},
		{"read nil handle", func() error { return nilUART.ReadNonblocking(make([]byte, 1)) }},
		{"write nil handle", func() error { return nilUART.WriteNonblocking([]byte{1}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("err = %v; want ErrInvalidArgument", err)
			}
		})
	}
}

func TestNonblocking_BusyInAsyncMode(t *testing.T) {
	u, _ := newTestUART(t, true)

	if err := u.ReadNonblocking(make([]byte, 1)); !errors.Is(err, ErrBusy) {
		t.Errorf("ReadNonblocking: err = %v; want ErrBusy", err)
	}
	if err := u.WriteNonblocking([]byte("x")); !errors.Is(err, ErrBusy) {
		t.Errorf("WriteNonblocking: err = %v; want ErrBusy", err)
	}
	if st := u.TransferStatus().State; st != StateReceivePending {
		t.Errorf("background receive disturbed: state %v", st)
	}
}

func TestNonblocking_HardwareErrors(t *testing.T) {
	u, r := newTestUART(t, false)

	r.port.Fail(sim.StepArm, 0, errHW)
	if err := u.WriteNonblocking([]byte("x")); !errors.Is(err, ErrIO) || !errors.Is(err, errHW) {
		t.Fatalf("arm failure: err = %v; want ErrIO wrapping the hardware error", err)
	}
	if st := u.TransferStatus().State; st != StateIdle {
		t.Fatalf("state = %v after failed arm", st)
	}
	r.port.Fail(sim.StepArm, 0, nil)

	if err := u.WriteNonblocking([]byte("x")); err != nil {
		t.Fatalf("WriteNonblocking: %v", err)
	}
	r.port.Abort(errHW)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := u.WaitTransfer(ctx); !errors.Is(err, ErrIO) {
		t.Fatalf("WaitTransfer: err = %v; want ErrIO", err)
	}
}

func TestWaitTransfer_ContextAndRemove(t *testing.T) {
	u, _ := newTestUART(t, true)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := u.WaitTransfer(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v; want DeadlineExceeded", err)
	}

	done := make(chan error, 1)
	go func() { done <- u.WaitTransfer(context.Background()) }()
	time.Sleep(10 * time.Millisecond)
	if err := u.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v; want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitTransfer did not return after Remove")
	}
}

// capturePort records the callback of the last armed transaction so a test
// can deliver a completion late.
type capturePort struct {
	*sim.Port
	cb func(*hal.Transaction, error)
}

func (p *capturePort) TransactionAsync(t *hal.Transaction) error {
	p.cb = t.Callback
	return p.Port.TransactionAsync(t)
}

func TestTransferDone_StaleCompletionAfterReinit(t *testing.T) {
	r := newRig(false)
	old := &capturePort{Port: r.port}
	r.cfg.Port = old
	u1, err := Init(r.cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := u1.ReadNonblocking(make([]byte, 2)); err != nil {
		t.Fatalf("ReadNonblocking: %v", err)
	}
	stale := old.cb
	if stale == nil {
		t.Fatal("no transaction armed")
	}
	if err := u1.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	r.cfg.Port = sim.NewPort(testIRQ, 4)
	u2, err := Init(r.cfg)
	if err != nil {
		t.Fatalf("re-Init: %v", err)
	}
	t.Cleanup(func() { _ = u2.Remove() })
	if err := u2.ReadNonblocking(make([]byte, 4)); err != nil {
		t.Fatalf("ReadNonblocking: %v", err)
	}

	stale(&hal.Transaction{RxCount: 2}, nil)

	rec := u2.TransferStatus()
	if rec.State != StateReceivePending || rec.RxLen != 4 || rec.RxCount != 0 {
		t.Fatalf("record = %v len %d count %d; want %v len 4 count 0",
			rec.State, rec.RxLen, rec.RxCount, StateReceivePending)
	}
	select {
	case <-u2.Done():
		t.Fatal("stale completion signalled the new handle")
	default:
	}
}
