package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/jangala-dev/uartx-async/hal"
	"github.com/jangala-dev/uartx-async/hal/sim"
	"github.com/jangala-dev/uartx-async/internal/logging"
	"github.com/jangala-dev/uartx-async/uartx"
)

type LoopbackCmd struct {
	Bytes   int           `optional help:"Payload bytes per direction." default:"65536"`
	Chunk   int           `optional help:"Payload bytes per frame (1-255)." default:"192"`
	Depth   int           `optional help:"Simulated hardware FIFO depth." default:"16"`
	OneWay  bool          `optional name:"one-way" help:"Run each direction separately instead of full duplex."`
	Timeout time.Duration `optional help:"Time limit per test." default:"10s"`
}

type loopbackConfig struct {
	Bytes   int
	Chunk   int
	Depth   int
	OneWay  bool
	Timeout time.Duration
}

type loopbackResult struct {
	Name    string
	Bytes   int
	Elapsed time.Duration
	Err     error
}

func (l *LoopbackCmd) Run(c *Context) error {
	results, err := runLoopback(c.ctx, loopbackConfig{
		Bytes:   l.Bytes,
		Chunk:   l.Chunk,
		Depth:   l.Depth,
		OneWay:  l.OneWay,
		Timeout: l.Timeout,
	})
	if err != nil {
		return err
	}

	pass := color.New(color.FgGreen).SprintFunc()
	fail := color.New(color.FgRed).SprintFunc()
	failed := 0
	for _, r := range results {
		if r.Err == nil {
			rate := float64(r.Bytes) / max(r.Elapsed.Seconds(), 1e-6)
			fmt.Printf("[%s] %s: %d bytes in %v (%.0f B/s)\n", pass("PASS"), r.Name, r.Bytes, r.Elapsed.Round(time.Millisecond), rate)
			continue
		}
		failed++
		fmt.Printf("[%s] %s: %v\n", fail("FAIL"), r.Name, r.Err)
		var mm *mismatchError
		if errors.As(r.Err, &mm) {
			fmt.Print(hexdump(mm.Offset, mm.Data, mm.Mark))
		}
	}
	fmt.Printf("\nSummary\n  passed = %d\n  failed = %d\n", len(results)-failed, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d tests failed", failed, len(results))
	}
	return nil
}

// runLoopback cross-wires two simulated ports, brings both up with
// background receive and streams framed patterns across them.
func runLoopback(ctx context.Context, cfg loopbackConfig) ([]loopbackResult, error) {
	if cfg.Chunk < 1 || cfg.Chunk > maxPayload {
		return nil, fmt.Errorf("chunk must be 1-%d bytes", maxPayload)
	}
	if cfg.Bytes < 0 {
		return nil, errors.New("byte count must not be negative")
	}

	ctrl := sim.NewController()
	table := uartx.NewTable(2)
	p0 := sim.NewPort(hal.IRQ(20), cfg.Depth)
	p1 := sim.NewPort(hal.IRQ(21), cfg.Depth)
	sim.Connect(p0, p1)

	open := func(id uartx.DeviceID, p *sim.Port) (*uartx.UART, error) {
		return uartx.Init(uartx.Config{DeviceID: id, AsyncRx: true, Port: p, IRQ: ctrl, Table: table})
	}
	u0, err := open(0, p0)
	if err != nil {
		return nil, err
	}
	defer u0.Remove()
	u1, err := open(1, p1)
	if err != nil {
		return nil, err
	}
	defer u1.Remove()

	if cfg.OneWay {
		return []loopbackResult{
			runStreams(ctx, "U0 -> U1", cfg, stream{u0, u1, patternA}),
			runStreams(ctx, "U1 -> U0", cfg, stream{u1, u0, patternB}),
		}, nil
	}
	return []loopbackResult{
		runStreams(ctx, "full duplex", cfg, stream{u0, u1, patternA}, stream{u1, u0, patternB}),
	}, nil
}

type stream struct {
	tx, rx *uartx.UART
	gen    func(int) byte
}

func runStreams(ctx context.Context, name string, cfg loopbackConfig, streams ...stream) loopbackResult {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range streams {
		g.Go(func() error { return receiveStream(gctx, s.rx, s.gen, cfg.Bytes) })
		g.Go(func() error { return sendStream(gctx, s.tx, s.rx, s.gen, cfg) })
	}
	err := g.Wait()
	res := loopbackResult{Name: name, Bytes: cfg.Bytes * len(streams), Elapsed: time.Since(start), Err: err}
	logging.Debug(logging.ComponentCLI, "loopback done", "test", name, "elapsed", res.Elapsed, "err", err)
	return res
}

// sendStream writes a preamble then the pattern as frames. Writes are paced
// so that the peer's receive ring is never overrun.
func sendStream(ctx context.Context, tx, peer *uartx.UART, gen func(int) byte, cfg loopbackConfig) error {
	if err := pacedWrite(ctx, tx, peer, []byte{preambleByte}); err != nil {
		return fmt.Errorf("preamble: %w", err)
	}
	payload := make([]byte, cfg.Chunk)
	buf := make([]byte, 0, frameHeader+maxPayload+frameTrailer)
	var seq uint16
	for off := 0; off < cfg.Bytes; seq++ {
		n := min(cfg.Chunk, cfg.Bytes-off)
		for i := range n {
			payload[i] = gen(off + i)
		}
		buf = appendFrame(buf[:0], seq, payload[:n])
		if err := pacedWrite(ctx, tx, peer, buf); err != nil {
			return fmt.Errorf("frame %d: %w", seq, err)
		}
		off += n
	}
	return nil
}

func pacedWrite(ctx context.Context, tx, peer *uartx.UART, b []byte) error {
	room := peer.Buffer.Size()
	for len(b) > 0 {
		n := min(len(b), room/2)
		for peer.Buffered()+n > room {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(50 * time.Microsecond):
			}
		}
		if _, err := tx.Write(b[:n]); err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

// receiveStream skips the preamble and verifies n payload bytes of frames.
func receiveStream(ctx context.Context, rx *uartx.UART, gen func(int) byte, n int) error {
	var pre [1]byte
	if _, err := rx.ReadFullContext(ctx, pre[:]); err != nil {
		return fmt.Errorf("preamble: %w", err)
	}
	if pre[0] != preambleByte {
		return fmt.Errorf("preamble: got %#02x want %#02x", pre[0], preambleByte)
	}

	buf := make([]byte, frameHeader+maxPayload+frameTrailer)
	var want uint16
	for off := 0; off < n; want++ {
		if _, err := rx.ReadFullContext(ctx, buf[:frameHeader]); err != nil {
			return fmt.Errorf("frame %d header after %d bytes: %w", want, off, err)
		}
		size := frameSize(buf)
		if _, err := rx.ReadFullContext(ctx, buf[frameHeader:size]); err != nil {
			return fmt.Errorf("frame %d body after %d bytes: %w", want, off, err)
		}
		seq, payload, err := parseFrame(buf[:size])
		if err != nil {
			return fmt.Errorf("frame %d: %w", want, err)
		}
		if seq != want {
			return fmt.Errorf("frame sequence: got %d want %d", seq, want)
		}
		if err := checkPattern(payload, off, gen); err != nil {
			return fmt.Errorf("frame %d: %w", want, err)
		}
		off += len(payload)
	}
	return nil
}
