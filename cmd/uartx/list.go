package main

import (
	"fmt"

	"github.com/jangala-dev/uartx-async/hal/ttyport"
)

type ListCmd struct {
	NoHID bool `optional name:"no-hid" help:"Skip HID enumeration."`
}

func (l *ListCmd) Run(c *Context) error {
	ports, err := ttyport.List()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found.")
	}
	for _, p := range ports {
		if p.USB {
			fmt.Printf("%s: ID %s:%s %s serial=%s\n", p.Name, p.VID, p.PID, p.Product, p.Serial)
		} else {
			fmt.Println(p.Name)
		}
	}
	if l.NoHID {
		return nil
	}
	return listHID()
}
