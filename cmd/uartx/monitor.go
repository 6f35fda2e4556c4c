package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/inancgumus/screen"

	"github.com/jangala-dev/uartx-async/uartx"
)

type MonitorCmd struct {
	Stats    bool          `optional help:"Show a refreshing status screen instead of a hexdump."`
	Interval time.Duration `optional help:"Status refresh interval." default:"500ms"`
	Duration time.Duration `optional help:"Stop after this long; 0 runs until interrupted."`
}

func (m *MonitorCmd) Run(c *Context) error {
	u, err := openUART(true)
	if err != nil {
		return err
	}
	defer u.Remove()

	ctx := c.ctx
	if m.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Duration)
		defer cancel()
	}

	mon := &monitor{u: u, start: time.Now()}
	if m.Stats {
		go mon.drain(ctx, nil)
		err = mon.statusLoop(ctx, m.Interval)
	} else {
		err = mon.drain(ctx, func(off int, b []byte) { fmt.Print(hexdump(off, b, nil)) })
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type monitor struct {
	u     *uartx.UART
	start time.Time
	total atomic.Int64
	reads atomic.Int64
}

// drain reads from the ring until ctx ends, handing each chunk to show.
func (m *monitor) drain(ctx context.Context, show func(off int, b []byte)) error {
	buf := make([]byte, 256)
	for {
		n, err := m.u.ReadContext(ctx, buf)
		if err != nil {
			return err
		}
		off := m.total.Add(int64(n)) - int64(n)
		m.reads.Add(1)
		if show != nil {
			show(int(off), buf[:n])
		}
	}
}

func (m *monitor) statusLoop(ctx context.Context, every time.Duration) error {
	tick := time.NewTicker(every)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
		screen.Clear()
		screen.MoveTopLeft()
		fmt.Print(m.status())
	}
}

func (m *monitor) status() string {
	elapsed := time.Since(m.start).Seconds()
	total := m.total.Load()
	rec := m.u.TransferStatus()
	s := fmt.Sprintf("%v  %d baud  %v\n\n", m.u.ID(), m.u.Baud(), m.u.Lifecycle())
	s += fmt.Sprintf("received   %d bytes in %d reads (%.0f B/s)\n", total, m.reads.Load(), float64(total)/max(elapsed, 1e-3))
	s += fmt.Sprintf("buffered   %d/%d\n", m.u.Buffered(), m.u.Buffer.Size())
	s += fmt.Sprintf("record     %v rx %d/%d tx %d/%d\n", rec.State, rec.RxCount, rec.RxLen, rec.TxCount, rec.TxLen)
	if rec.Err != nil {
		s += fmt.Sprintf("last error %v\n", rec.Err)
	}
	if uartx.DebugEnabled {
		s += fmt.Sprintf("\n%+v\n", m.u.DebugStats())
	}
	return s
}
