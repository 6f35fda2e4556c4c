// Command uartx exercises the uartx driver from a host: it lists serial and
// CP2110 devices, monitors and sends on a real port, and runs a framed
// integrity test between two simulated ports.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"

	"github.com/jangala-dev/uartx-async/internal/logging"
)

type Context struct {
	ctx context.Context
}

var CLI struct {
	TTY      string `optional name:"tty" help:"Serial device path, e.g. /dev/ttyUSB0."`
	HID      bool   `optional name:"hid" help:"Use the first CP2110 matching --vid/--pid/--serial."`
	RawPath  string `optional name:"hidraw" help:"CP2110 hidraw node (required with puregohid builds)."`
	VID      int    `optional type:"hex" help:"The USB Vendor ID." default:"10c4"`
	PID      int    `optional type:"hex" help:"The USB Product ID." default:"ea80"`
	Serial   string `optional help:"The USB Serial."`
	IRQ      int    `optional type:"int" help:"Interrupt line used for completion dispatch." default:"1"`
	Baud     uint32 `optional help:"Data rate in bits per second." default:"115200"`
	Parity   string `optional help:"Parity: none, odd, even, mark or space." default:"none"`
	DataBits int    `optional help:"Data bits per character (5-8)." default:"8"`
	StopBits int    `optional help:"Stop bits (1 or 2)." default:"1"`
	RTSCTS   bool   `optional name:"rtscts" help:"Enable active-low RTS/CTS flow control."`

	LogLevel string `optional help:"Log level: debug, info, warn or error." default:"warn"`
	JSON     bool   `optional help:"Log as JSON."`

	List     ListCmd     `cmd help:"List serial ports and CP2110 bridges."`
	Monitor  MonitorCmd  `cmd help:"Print bytes received on a port."`
	Send     SendCmd     `cmd help:"Write a hex payload to a port."`
	Loopback LoopbackCmd `cmd help:"Run a framed integrity test between two simulated ports."`
}

func main() {
	k, err := kong.New(&CLI,
		kong.Description("Asynchronous UART driver tool."),
		kong.NamedMapper("int", intMapper{}),
		kong.NamedMapper("hex", intMapper{base: 16}))
	if err != nil {
		fmt.Println(err)
		return
	}

	kctx, err := k.Parse(os.Args[1:])
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(CLI.LogLevel)); err != nil {
		fmt.Println("bad log level:", err)
		os.Exit(2)
	}
	logging.SetLevel(lvl)
	if CLI.JSON {
		logging.SetOutput(os.Stderr, logging.FormatJSON)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = kctx.Run(&Context{ctx: ctx})
	kctx.FatalIfErrorf(err)
}
