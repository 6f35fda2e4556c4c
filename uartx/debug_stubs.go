//go:build !uartxdebug

package uartx

type Stats struct{}

// DebugEnabled reports whether the counters are compiled in.
const DebugEnabled = false

func (u *UART) DebugReset()       {}
func (u *UART) DebugStats() Stats { return Stats{} }
