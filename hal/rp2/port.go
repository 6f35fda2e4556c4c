//go:build rp2040 || rp2350

package rp2

import (
	"device/rp"
	"machine"
	"runtime"
	"runtime/interrupt"

	"github.com/jangala-dev/uartx-async/hal"
)

// FIFODepth is the PL011 transmit and receive FIFO depth.
const FIFODepth = 32

const (
	rxErrorBits = rp.UART0_UARTDR_OE | rp.UART0_UARTDR_BE | rp.UART0_UARTDR_PE | rp.UART0_UARTDR_FE
	rxIRQBits   = rp.UART0_UARTIMSC_RXIM | rp.UART0_UARTIMSC_RTIM
	wlenMask    = 0x3 << rp.UART0_UARTLCR_H_WLEN_Pos
	rxLevelPos  = 3
	rxLevelMask = 0x7 << rxLevelPos
)

// Port is one PL011 instance driven as a hal.Port.
//
// Invariants:
//   - UARTDR is touched by the ISR while a transaction is armed; foreground
//     code only seeds the TX FIFO with interrupts masked.
//   - RX interrupts are unmasked only while a receive is armed, so bytes wait
//     in the hardware FIFO between transactions.
type Port struct {
	Bus *rp.UART0_Type

	// Pins are muxed by ConfigurePins (TX/RX) and SetFlowControl (RTS/CTS).
	// machine.NoPin leaves a signal unrouted.
	TX, RX, RTS, CTS machine.Pin

	irq       int
	Interrupt interrupt.Interrupt

	pending *hal.Transaction
	overrun bool
}

// Init resets the peripheral and enables it at baud with 8N1 framing and
// FIFOs on. All UART interrupt sources start masked.
func (p *Port) Init(baud uint32) error {
	if baud == 0 {
		return hal.ErrUnsupported
	}
	p.reset()

	p.Bus.UARTCR.ClearBits(rp.UART0_UARTCR_UARTEN | rp.UART0_UARTCR_RXE | rp.UART0_UARTCR_TXE)
	p.setBaud(baud)
	p.Bus.UARTLCR_H.Set(3<<rp.UART0_UARTLCR_H_WLEN_Pos | rp.UART0_UARTLCR_H_FEN)

	p.Bus.UARTIMSC.Set(0)
	p.Bus.UARTICR.Set(0x7FF)
	for !p.Bus.UARTFR.HasBits(rp.UART0_UARTFR_RXFE) {
		_ = p.Bus.UARTDR.Get()
	}
	p.Bus.UARTRSR.Set(0)
	// IFLS=0: RX and TX trigger at 1/8 for the lowest latency.
	p.Bus.UARTIFLS.Set(0)

	p.Bus.UARTCR.Set(rp.UART0_UARTCR_UARTEN | rp.UART0_UARTCR_RXE | rp.UART0_UARTCR_TXE)

	p.pending = nil
	p.overrun = false
	p.Interrupt.SetPriority(0x80)
	p.Interrupt.Enable()
	return nil
}

// setBaud programs the integer and fractional divisors and performs the
// LCR_H write required to latch them.
func (p *Port) setBaud(br uint32) {
	div := 8 * machine.CPUFrequency() / br

	ibrd := div >> 7
	var fbrd uint32
	switch {
	case ibrd == 0:
		ibrd, fbrd = 1, 0
	case ibrd >= 65535:
		ibrd, fbrd = 65535, 0
	default:
		fbrd = ((div & 0x7f) + 1) / 2
	}

	p.Bus.UARTIBRD.Set(ibrd)
	p.Bus.UARTFBRD.Set(fbrd)
	p.Bus.UARTLCR_H.Set(p.Bus.UARTLCR_H.Get())
}

// ConfigurePins routes TX and RX to the UART. The RP2040 pads run at the
// bank voltage, so only the default and 3.3V levels are accepted.
func (p *Port) ConfigurePins(v hal.VoltageLevel) error {
	if v == hal.Voltage1V8 {
		return hal.ErrUnsupported
	}
	if p.TX != machine.NoPin {
		p.TX.Configure(machine.PinConfig{Mode: machine.PinUART})
	}
	if p.RX != machine.NoPin {
		p.RX.Configure(machine.PinConfig{Mode: machine.PinUART})
	}
	return nil
}

func (p *Port) SetDataSize(bits hal.WordSize) error {
	if !bits.Valid() {
		return hal.ErrUnsupported
	}
	p.updateLCRH(wlenMask, uint32(bits-hal.WordSize5)<<rp.UART0_UARTLCR_H_WLEN_Pos)
	return nil
}

func (p *Port) SetParity(par hal.Parity) error {
	const (
		pen = rp.UART0_UARTLCR_H_PEN
		eps = rp.UART0_UARTLCR_H_EPS
		sps = rp.UART0_UARTLCR_H_SPS
	)
	var v uint32
	switch par {
	case hal.ParityNone:
	case hal.ParityOdd:
		v = pen
	case hal.ParityEven:
		v = pen | eps
	case hal.ParityMark:
		v = pen | sps
	case hal.ParitySpace:
		v = pen | eps | sps
	default:
		return hal.ErrUnsupported
	}
	p.updateLCRH(pen|eps|sps, v)
	return nil
}

func (p *Port) SetStopBits(s hal.StopBits) error {
	var v uint32
	switch s {
	case hal.StopBits1:
	case hal.StopBits2:
		v = rp.UART0_UARTLCR_H_STP2
	default:
		return hal.ErrUnsupported
	}
	p.updateLCRH(rp.UART0_UARTLCR_H_STP2, v)
	return nil
}

// SetFlowControl enables the PL011's active-low RTS/CTS. RTS deasserts when
// the RX FIFO reaches the watermark nearest at or above threshold.
func (p *Port) SetFlowControl(f hal.FlowControl, threshold int) error {
	const bits = rp.UART0_UARTCR_RTSEN | rp.UART0_UARTCR_CTSEN
	switch f {
	case hal.FlowDisabled:
		p.Bus.UARTCR.ClearBits(bits)
		return nil
	case hal.FlowActiveLow:
	default:
		return hal.ErrUnsupported
	}
	if p.RTS == machine.NoPin || p.CTS == machine.NoPin {
		return hal.ErrUnsupported
	}
	p.RTS.Configure(machine.PinConfig{Mode: machine.PinUART})
	p.CTS.Configure(machine.PinConfig{Mode: machine.PinUART})

	ifls := p.Bus.UARTIFLS.Get() &^ rxLevelMask
	p.Bus.UARTIFLS.Set(ifls | rxWatermark(threshold)<<rxLevelPos)
	p.Bus.UARTCR.SetBits(bits)
	return nil
}

// rxWatermark maps a byte threshold to the IFLS RX level select (1/8 .. 7/8).
func rxWatermark(threshold int) uint32 {
	levels := [...]int{4, 8, 16, 24, 28}
	for i, l := range levels {
		if threshold <= l {
			return uint32(i)
		}
	}
	return uint32(len(levels) - 1)
}

// updateLCRH rewrites the masked LCR_H bits with the UART disabled, as the
// PL011 requires.
func (p *Port) updateLCRH(mask, val uint32) {
	for p.Bus.UARTFR.HasBits(rp.UART0_UARTFR_BUSY) {
		runtime.Gosched()
	}
	cr := p.Bus.UARTCR.Get()
	p.Bus.UARTCR.ClearBits(rp.UART0_UARTCR_UARTEN)
	p.Bus.UARTLCR_H.Set(p.Bus.UARTLCR_H.Get()&^mask | val)
	p.Bus.UARTCR.Set(cr)
}

// Shutdown masks the UART interrupts, disables the peripheral and abandons
// any armed transaction.
func (p *Port) Shutdown() error {
	state := interrupt.Disable()
	p.Bus.UARTIMSC.Set(0)
	p.Bus.UARTICR.Set(0x7FF)
	p.pending = nil
	interrupt.Restore(state)

	p.Interrupt.Disable()
	p.Bus.UARTCR.Set(0)
	return nil
}

func (p *Port) enabled() bool { return p.Bus.UARTCR.HasBits(rp.UART0_UARTCR_UARTEN) }

// TransactionAsync arms t. A receive unmasks the RX sources; a transmit
// seeds the TX FIFO and unmasks TXIM so that draining raises the interrupt.
func (p *Port) TransactionAsync(t *hal.Transaction) error {
	state := interrupt.Disable()
	defer interrupt.Restore(state)

	if !p.enabled() {
		return hal.ErrClosed
	}
	if p.pending != nil {
		return hal.ErrBusy
	}
	t.RxCount, t.TxCount = 0, 0
	p.pending = t

	if t.Rx != nil {
		p.Bus.UARTIMSC.SetBits(rxIRQBits)
		return nil
	}
	p.fillTx(t)
	p.Bus.UARTIMSC.SetBits(rp.UART0_UARTIMSC_TXIM)
	return nil
}

func (p *Port) fillTx(t *hal.Transaction) {
	for t.TxCount < len(t.Tx) && !p.Bus.UARTFR.HasBits(rp.UART0_UARTFR_TXFF) {
		p.Bus.UARTDR.Set(uint32(t.Tx[t.TxCount]))
		t.TxCount++
	}
}

// Write pushes up to FIFODepth bytes into the TX FIFO, waiting for room.
func (p *Port) Write(b []byte) (int, error) {
	if !p.enabled() {
		return 0, hal.ErrClosed
	}
	if len(b) > FIFODepth {
		b = b[:FIFODepth]
	}
	for _, c := range b {
		for p.Bus.UARTFR.HasBits(rp.UART0_UARTFR_TXFF) {
			runtime.Gosched()
		}
		p.Bus.UARTDR.Set(uint32(c))
	}
	return len(b), nil
}

// Read polls the RX FIFO until len(b) good bytes have arrived. Bytes with
// line errors are dropped.
func (p *Port) Read(b []byte) error {
	for i := 0; i < len(b); {
		if !p.enabled() {
			return hal.ErrClosed
		}
		if p.Bus.UARTFR.HasBits(rp.UART0_UARTFR_RXFE) {
			runtime.Gosched()
			continue
		}
		r := p.Bus.UARTDR.Get()
		if r&rxErrorBits != 0 {
			p.overrun = p.overrun || r&rp.UART0_UARTDR_OE != 0
			continue
		}
		b[i] = byte(r)
		i++
	}
	return nil
}

func (p *Port) Status() hal.StatusFlags {
	fr := p.Bus.UARTFR.Get()
	var s hal.StatusFlags
	if fr&rp.UART0_UARTFR_TXFE != 0 {
		s |= hal.StatusTxEmpty
	}
	if fr&rp.UART0_UARTFR_TXFF != 0 {
		s |= hal.StatusTxFull
	}
	if fr&rp.UART0_UARTFR_RXFE != 0 {
		s |= hal.StatusRxEmpty
	}
	if fr&rp.UART0_UARTFR_RXFF != 0 {
		s |= hal.StatusRxFull
	}

	state := interrupt.Disable()
	if t := p.pending; t != nil {
		if t.Rx != nil {
			s |= hal.StatusRxBusy
		} else {
			s |= hal.StatusTxBusy
		}
	}
	if p.overrun {
		s |= hal.StatusOverrun
		p.overrun = false
	}
	interrupt.Restore(state)
	return s
}

func (p *Port) FIFODepth() int { return FIFODepth }

func (p *Port) IRQ() hal.IRQ { return hal.IRQ(p.irq) }

// handleInterrupt moves bytes between the FIFOs and the armed transaction
// and completes it once satisfied. Errored RX bytes are dropped; reading DR
// clears their per-byte flags.
func (p *Port) handleInterrupt(interrupt.Interrupt) {
	mis := p.Bus.UARTMIS.Get()
	t := p.pending

	if mis&(rp.UART0_UARTMIS_RXMIS|rp.UART0_UARTMIS_RTMIS) != 0 {
		// A completion callback may arm the next receive; keep feeding it
		// from the FIFO before returning.
		for t != nil && t.Rx != nil {
			for t.RxCount < len(t.Rx) && !p.Bus.UARTFR.HasBits(rp.UART0_UARTFR_RXFE) {
				r := p.Bus.UARTDR.Get()
				if r&rxErrorBits != 0 {
					p.overrun = p.overrun || r&rp.UART0_UARTDR_OE != 0
					continue
				}
				t.Rx[t.RxCount] = byte(r)
				t.RxCount++
			}
			if t.RxCount < len(t.Rx) {
				break
			}
			p.Bus.UARTIMSC.ClearBits(rxIRQBits)
			p.pending = nil
			if t.Callback != nil {
				t.Callback(t, nil)
			}
			t = p.pending
		}
		p.Bus.UARTICR.Set(rp.UART0_UARTICR_RXIC | rp.UART0_UARTICR_RTIC)
		p.Bus.UARTRSR.Set(0)
		if t == nil || t.Rx == nil {
			p.Bus.UARTIMSC.ClearBits(rxIRQBits)
		}
	}

	if mis&rp.UART0_UARTMIS_TXMIS != 0 {
		sending := t != nil && t.Rx == nil
		if sending {
			p.fillTx(t)
		}
		p.Bus.UARTICR.Set(rp.UART0_UARTICR_TXIC)

		if !sending || t.TxCount == len(t.Tx) {
			p.Bus.UARTIMSC.ClearBits(rp.UART0_UARTIMSC_TXIM)
		}
		if sending && t.TxCount == len(t.Tx) {
			p.pending = nil
			if t.Callback != nil {
				t.Callback(t, nil)
			}
		}
	}
}

// reset asserts and releases the peripheral reset for the selected PL011.
func (p *Port) reset() {
	var mask uint32
	switch p.Bus {
	case rp.UART0:
		mask = rp.RESETS_RESET_UART0
	case rp.UART1:
		mask = rp.RESETS_RESET_UART1
	}
	rp.RESETS.RESET.SetBits(mask)
	rp.RESETS.RESET.ClearBits(mask)
	for !rp.RESETS.RESET_DONE.HasBits(mask) {
	}
}
