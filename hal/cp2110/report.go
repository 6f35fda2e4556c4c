package cp2110

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/jangala-dev/uartx-async/hal"
)

// HID report IDs.
const (
	reportDataMax    = 0x3F // interrupt reports 0x01..0x3F carry that many data bytes
	reportUARTEnable = 0x41
	reportUARTStatus = 0x42
	reportPurge      = 0x43
	reportUARTConfig = 0x50
)

// Purge selectors for reportPurge.
const (
	purgeTx   = 0x01
	purgeRx   = 0x02
	purgeBoth = purgeTx | purgeRx
)

// Error status bits of reportUARTStatus.
const (
	statusParityError = 0x01
	statusOverrun     = 0x02
)

var errShortReport = errors.New("short report")

// lineConfig mirrors the UART config feature report.
type lineConfig struct {
	Baud     uint32
	Parity   uint8 // 0 none, 1 odd, 2 even, 3 mark, 4 space
	Flow     uint8 // 0 none, 1 RTS/CTS
	DataBits uint8 // 0..3 for 5..8 bits
	StopBits uint8 // 0 short, 1 long
}

func defaultLineConfig(baud uint32) lineConfig {
	return lineConfig{Baud: baud, DataBits: 3}
}

func (c lineConfig) marshal() []byte {
	b := make([]byte, 9)
	b[0] = reportUARTConfig
	binary.BigEndian.PutUint32(b[1:5], c.Baud)
	b[5] = c.Parity
	b[6] = c.Flow
	b[7] = c.DataBits
	b[8] = c.StopBits
	return b
}

func parseLineConfig(b []byte) (lineConfig, error) {
	if len(b) < 9 || b[0] != reportUARTConfig {
		return lineConfig{}, fmt.Errorf("uart config: %w", errShortReport)
	}
	return lineConfig{
		Baud:     binary.BigEndian.Uint32(b[1:5]),
		Parity:   b[5],
		Flow:     b[6],
		DataBits: b[7],
		StopBits: b[8],
	}, nil
}

func encodeParity(p hal.Parity) (uint8, error) {
	switch p {
	case hal.ParityNone:
		return 0, nil
	case hal.ParityOdd:
		return 1, nil
	case hal.ParityEven:
		return 2, nil
	case hal.ParityMark:
		return 3, nil
	case hal.ParitySpace:
		return 4, nil
	}
	return 0, hal.ErrUnsupported
}

func encodeDataBits(w hal.WordSize) (uint8, error) {
	if !w.Valid() {
		return 0, hal.ErrUnsupported
	}
	return uint8(w - hal.WordSize5), nil
}

func encodeStopBits(s hal.StopBits) (uint8, error) {
	switch s {
	case hal.StopBits1:
		return 0, nil
	case hal.StopBits2:
		return 1, nil
	}
	return 0, hal.ErrUnsupported
}

// uartStatus mirrors the UART status feature report.
type uartStatus struct {
	TxFIFO uint16
	RxFIFO uint16
	Errors uint8
	Break  uint8
}

func parseUARTStatus(b []byte) (uartStatus, error) {
	if len(b) < 7 || b[0] != reportUARTStatus {
		return uartStatus{}, fmt.Errorf("uart status: %w", errShortReport)
	}
	return uartStatus{
		TxFIFO: binary.BigEndian.Uint16(b[1:3]),
		RxFIFO: binary.BigEndian.Uint16(b[3:5]),
		Errors: b[5],
		Break:  b[6],
	}, nil
}

// dataReport frames up to reportDataMax bytes of p as one interrupt report.
func dataReport(p []byte) []byte {
	if len(p) > reportDataMax {
		p = p[:reportDataMax]
	}
	r := make([]byte, 1+len(p))
	r[0] = byte(len(p))
	copy(r[1:], p)
	return r
}

// parseDataReport returns the payload of an interrupt report, or nil for
// reports that carry no UART data.
func parseDataReport(r []byte) []byte {
	if len(r) == 0 {
		return nil
	}
	n := int(r[0])
	if n == 0 || n > reportDataMax || len(r) < 1+n {
		return nil
	}
	return r[1 : 1+n]
}
