// uartx/export.go

package uartx

import "github.com/jangala-dev/uartx-async/hal"

type (
	Parity      = hal.Parity
	WordSize    = hal.WordSize
	StopBits    = hal.StopBits
	FlowControl = hal.FlowControl
)

const (
	ParityNone  = hal.ParityNone
	ParityMark  = hal.ParityMark
	ParitySpace = hal.ParitySpace
	ParityOdd   = hal.ParityOdd
	ParityEven  = hal.ParityEven

	WordSize5 = hal.WordSize5
	WordSize6 = hal.WordSize6
	WordSize7 = hal.WordSize7
	WordSize8 = hal.WordSize8

	StopBits1 = hal.StopBits1
	StopBits2 = hal.StopBits2

	FlowDisabled   = hal.FlowDisabled
	FlowActiveLow  = hal.FlowActiveLow
	FlowActiveHigh = hal.FlowActiveHigh
)
