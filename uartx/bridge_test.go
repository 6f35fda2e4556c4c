package uartx

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + 3)
	}
	return b
}

func TestBridge_PreservesArrivalOrder(t *testing.T) {
	u, r := newTestUART(t, true)
	want := pattern(200)

	r.port.Receive(want[:1])
	r.port.Receive(want[1:50])
	r.port.Receive(want[50:])

	if got := u.Buffered(); got != len(want) {
		t.Fatalf("Buffered = %d; want %d", got, len(want))
	}
	got := make([]byte, bufferSize)
	n, err := u.Read(got)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := cmp.Diff(want, got[:n]); diff != "" {
		t.Fatalf("received bytes (-want +got):\n%s", diff)
	}
}

func TestBridge_DropsWhenRingFull(t *testing.T) {
	u, r := newTestUART(t, true)
	in := pattern(bufferSize + 44)

	r.port.Receive(in)
	if got := u.Buffered(); got != bufferSize {
		t.Fatalf("Buffered = %d; want %d", got, bufferSize)
	}
	if !r.port.Pending() {
		t.Fatal("receive not re-armed after overflow")
	}

	got := make([]byte, bufferSize)
	n, _ := u.Read(got)
	if diff := cmp.Diff(in[:bufferSize], got[:n]); diff != "" {
		t.Fatalf("kept bytes (-want +got):\n%s", diff)
	}

	r.port.Receive([]byte("z"))
	if b, err := u.ReadByte(); err != nil || b != 'z' {
		t.Fatalf("ReadByte after overflow = %q, %v", b, err)
	}
}

func TestBridge_ReArmsAfterLineError(t *testing.T) {
	u, r := newTestUART(t, true)

	if !r.port.Abort(errHW) {
		t.Fatal("no receive was armed")
	}
	if u.Buffered() != 0 {
		t.Fatalf("failed receive queued %d bytes", u.Buffered())
	}
	if !r.port.Pending() {
		t.Fatal("receive not re-armed after error")
	}

	r.port.Receive([]byte("k"))
	if b, err := u.ReadByte(); err != nil || b != 'k' {
		t.Fatalf("ReadByte = %q, %v", b, err)
	}
}

func TestBridge_SignalsReadable(t *testing.T) {
	u, r := newTestUART(t, true)

	r.port.Receive([]byte("a"))
	select {
	case <-u.Readable():
	case <-time.After(time.Second):
		t.Fatal("no readable notification")
	}
}

func TestBridge_StopsAfterRemove(t *testing.T) {
	r := newRig(true)
	u, err := Init(r.cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := u.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	// A late completion must neither queue nor re-arm.
	rxCompleteHandler(u)
	if r.port.Pending() {
		t.Fatal("bridge re-armed a removed device")
	}
	if r.ctrl.Dispatched() != 0 {
		t.Fatalf("dispatched %d events", r.ctrl.Dispatched())
	}

	// Foreign contexts are ignored.
	rxCompleteHandler("not a uart")
}

func TestBridge_StreamWithConcurrentReader(t *testing.T) {
	u, r := newTestUART(t, true)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go r.port.Run(ctx, 100*time.Microsecond)

	const chunk = 64
	want := pattern(chunk * 32)
	ack := make(chan struct{})
	go func() {
		for off := 0; off < len(want); off += chunk {
			r.port.Feed(want[off : off+chunk])
			select {
			case <-ack:
			case <-ctx.Done():
				return
			}
		}
	}()

	got := make([]byte, len(want))
	for off := 0; off < len(want); off += chunk {
		n, err := u.ReadFullContext(ctx, got[off:off+chunk])
		if err != nil {
			t.Fatalf("ReadFullContext at %d: read %d: %v", off, n, err)
		}
		ack <- struct{}{}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("stream (-want +got):\n%s", diff)
	}
}
