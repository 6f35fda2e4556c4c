//go:build rp2040 || rp2350

// Command uartx_selftest runs the driver against UART1 on an RP2040/RP2350
// with TX looped back to RX (Pico: GP4 -> GP5). Results go to the USB
// console; the LED blinks three times on success.
package main

import (
	"bytes"
	"context"
	"crypto/sha1"
	"errors"
	"time"

	"machine"

	"github.com/jangala-dev/uartx-async/hal/rp2"
	"github.com/jangala-dev/uartx-async/uartx"
)

const (
	baud       = 115200
	lineEnding = "\r\n"
)

var (
	port  = rp2.UART1
	txPin = machine.Pin(4)
	rxPin = machine.Pin(5)
)

func open(rate uint32, async bool) (*uartx.UART, error) {
	port.TX, port.RX = txPin, rxPin
	return uartx.Init(uartx.Config{
		DeviceID: 1,
		BaudRate: rate,
		AsyncRx:  async,
		Port:     port,
		IRQ:      rp2.Interrupts,
	})
}

func drain(u *uartx.UART) {
	var tmp [64]byte
	for u.TryRead(tmp[:]) > 0 {
	}
}

func ledBlink(times int, on time.Duration) {
	for i := 0; i < times; i++ {
		machine.LED.High()
		time.Sleep(on)
		machine.LED.Low()
		time.Sleep(on)
	}
}

func main() {
	// Give the monitor time to attach.
	time.Sleep(3 * time.Second)
	machine.LED.Configure(machine.PinConfig{Mode: machine.PinOutput})

	println("uartx self-test starting")

	u, err := open(baud, true)
	if err != nil {
		println("Init failed:", err.Error())
		for {
			ledBlink(1, 500*time.Millisecond)
		}
	}

	pass, fail := 0, 0
	run := func(name string, f func() string) {
		println("")
		println("[Test]", name)
		if msg := f(); msg == "" {
			println("  PASS")
			pass++
		} else {
			println("  FAIL:", msg)
			fail++
		}
	}

	run("sanity: short loopback (Write + ReadFullContext)", func() string {
		drain(u)
		msg := []byte("hello, uartx" + lineEnding)
		if _, err := u.Write(msg); err != nil {
			return "write failed: " + err.Error()
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		got := make([]byte, len(msg))
		if _, err := u.ReadFullContext(ctx, got); err != nil {
			return "timeout"
		}
		if !bytes.Equal(got, msg) {
			return "mismatch"
		}
		return ""
	})

	run("notify: Readable channel", func() string {
		drain(u)
		_ = u.WriteByte('A')
		select {
		case <-u.Readable():
		case <-time.After(time.Second):
			return "no notification"
		}
		b, err := u.ReadByte()
		if err != nil || b != 'A' {
			return "wrong byte"
		}
		return ""
	})

	run("empty: Read reports would-block", func() string {
		drain(u)
		var b [4]byte
		if _, err := u.Read(b[:]); !errors.Is(err, uartx.ErrWouldBlock) {
			return "expected ErrWouldBlock"
		}
		return ""
	})

	run("timeout: no data within 200ms", func() string {
		drain(u)
		var b [1]byte
		_, err := u.ReadWithTimeout(b[:], 200*time.Millisecond)
		if !errors.Is(err, context.DeadlineExceeded) {
			return "expected deadline"
		}
		return ""
	})

	run("engine: WriteNonblocking while receive armed is busy", func() string {
		if err := u.WriteNonblocking([]byte("x")); !errors.Is(err, uartx.ErrBusy) {
			return "expected ErrBusy"
		}
		if st := u.TransferStatus().State; st != uartx.StateReceivePending {
			return "record left " + st.String()
		}
		return ""
	})

	run("binary: 4 KiB integrity (SHA-1)", func() string {
		drain(u)
		const n = 4096
		src := make([]byte, n)
		for i := range src {
			src[i] = byte(i*7 + 3)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		got := make([]byte, n)
		done := make(chan error, 1)
		go func() {
			_, err := u.ReadFullContext(ctx, got)
			done <- err
		}()
		for off := 0; off < n; off += 64 {
			if _, err := u.Write(src[off : off+64]); err != nil {
				return "write failed"
			}
			// The ring holds 256 bytes; let the reader keep up.
			for u.Buffered() > 128 {
				time.Sleep(time.Millisecond)
			}
		}
		if err := <-done; err != nil {
			return "read: " + err.Error()
		}
		if sha1.Sum(got) != sha1.Sum(src) {
			return "digest mismatch"
		}
		return ""
	})

	run("lifecycle: Remove and re-Init at 460800", func() string {
		if err := u.Remove(); err != nil {
			return "remove: " + err.Error()
		}
		if u.Lifecycle() != uartx.Removed {
			return "not removed"
		}
		nu, err := open(460800, true)
		if err != nil {
			return "re-init: " + err.Error()
		}
		u = nu
		msg := []byte("fast" + lineEnding)
		_, _ = u.Write(msg)
		got := make([]byte, len(msg))
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if _, err := u.ReadFullContext(ctx, got); err != nil || !bytes.Equal(got, msg) {
			return "echo at new baud failed"
		}
		return ""
	})

	run("direct: non-async Read and WriteNonblocking", func() string {
		if err := u.Remove(); err != nil {
			return "remove: " + err.Error()
		}
		nu, err := open(baud, false)
		if err != nil {
			return "init: " + err.Error()
		}
		u = nu
		if err := u.WriteNonblocking([]byte("ok")); err != nil {
			return "WriteNonblocking: " + err.Error()
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := u.WaitTransfer(ctx); err != nil {
			return "WaitTransfer: " + err.Error()
		}
		var b [2]byte
		if _, err := u.Read(b[:]); err != nil || string(b[:]) != "ok" {
			return "direct read failed"
		}
		return ""
	})

	_ = u.Remove()

	println("")
	println("Summary")
	println("  passed =", pass)
	println("  failed =", fail)
	if fail == 0 {
		ledBlink(3, 120*time.Millisecond)
		return
	}
	for {
		ledBlink(1, 600*time.Millisecond)
		time.Sleep(800 * time.Millisecond)
	}
}
