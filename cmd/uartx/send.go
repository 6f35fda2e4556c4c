package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"
)

type SendCmd struct {
	Data        string        `arg name:"data" help:"Hex string to write to the port."`
	NonBlocking bool          `optional name:"nonblocking" help:"Use one asynchronous transmit instead of blocking writes."`
	Timeout     time.Duration `optional help:"Time to wait for an asynchronous transmit." default:"2s"`
}

func (s *SendCmd) Run(c *Context) error {
	buf, err := hex.DecodeString(s.Data)
	if err != nil {
		return err
	}
	u, err := openUART(false)
	if err != nil {
		return err
	}
	defer u.Remove()

	if !s.NonBlocking {
		n, err := u.Write(buf)
		fmt.Printf("wrote %d/%d bytes\n", n, len(buf))
		if err != nil {
			return err
		}
		return u.Flush()
	}

	if err := u.WriteNonblocking(buf); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.ctx, s.Timeout)
	defer cancel()
	if err := u.WaitTransfer(ctx); err != nil {
		return err
	}
	rec := u.TransferStatus()
	fmt.Printf("sent %d/%d bytes\n", rec.TxCount, rec.TxLen)
	return rec.Err
}
