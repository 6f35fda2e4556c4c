//go:build !uartxdebug

package uartx

func (u *UART) dbgArm(bool)       {}
func (u *UART) dbgOnByte(bool)    {}
func (u *UART) dbgNotify(bool)    {}
func (u *UART) dbgWriteChunk(int) {}
func (u *UART) dbgReadWait()      {}
func (u *UART) dbgSpuriousWake()  {}
func (u *UART) dbgTimeout()       {}
