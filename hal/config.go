package hal

import "strconv"

// Parity defines the parity setting used for UART communication.
type Parity uint8

const (
	// ParityNone disables parity generation and checking.
	ParityNone Parity = iota
	// ParityMark forces the parity bit to 1.
	ParityMark
	// ParitySpace forces the parity bit to 0.
	ParitySpace
	// ParityOdd sets odd parity (total number of 1 bits is odd).
	ParityOdd
	// ParityEven sets even parity (total number of 1 bits is even).
	ParityEven
)

// Valid reports whether p is a recognized parity.
func (p Parity) Valid() bool { return p <= ParityEven }

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "none"
	case ParityMark:
		return "mark"
	case ParitySpace:
		return "space"
	case ParityOdd:
		return "odd"
	case ParityEven:
		return "even"
	default:
		return "parity(" + strconv.Itoa(int(p)) + ")"
	}
}

// WordSize is the number of data bits per character.
type WordSize uint8

// Recognized word sizes.
const (
	WordSize5 WordSize = 5
	WordSize6 WordSize = 6
	WordSize7 WordSize = 7
	WordSize8 WordSize = 8
)

// Valid reports whether w is 5, 6, 7 or 8.
func (w WordSize) Valid() bool { return w >= WordSize5 && w <= WordSize8 }

// StopBits is the number of stop bits per character.
type StopBits uint8

// Recognized stop bit settings.
const (
	StopBits1 StopBits = 1
	StopBits2 StopBits = 2
)

// Valid reports whether s is 1 or 2.
func (s StopBits) Valid() bool { return s == StopBits1 || s == StopBits2 }

// FlowControl selects RTS/CTS hardware flow control.
type FlowControl uint8

const (
	// FlowDisabled turns off hardware flow control.
	FlowDisabled FlowControl = iota
	// FlowActiveLow enables RTS/CTS with active-low signalling.
	FlowActiveLow
	// FlowActiveHigh enables RTS/CTS with active-high signalling.
	FlowActiveHigh
)

// Valid reports whether f is a recognized flow control mode.
func (f FlowControl) Valid() bool { return f <= FlowActiveHigh }

func (f FlowControl) String() string {
	switch f {
	case FlowDisabled:
		return "disabled"
	case FlowActiveLow:
		return "active-low"
	case FlowActiveHigh:
		return "active-high"
	default:
		return "flow(" + strconv.Itoa(int(f)) + ")"
	}
}

// VoltageLevel is the I/O voltage selected for the UART pins.
type VoltageLevel uint8

// Pin voltage options. Backends without selectable I/O rails ignore it.
const (
	VoltageDefault VoltageLevel = iota
	Voltage1V8
	Voltage3V3
)
