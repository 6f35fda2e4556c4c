package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// hexdump formats data 16 bytes per row starting at offset. Bytes whose
// mark is set are printed in red.
func hexdump(offset int, data []byte, mark []bool) string {
	var sb strings.Builder
	red := color.New(color.FgRed)

	for len(data) > 0 {
		l := min(len(data), 16)
		work := data[:l]
		data = data[l:]
		var workMark []bool
		if mark != nil {
			workMark = mark[:l]
			mark = mark[l:]
		}

		var workHex, workASCII strings.Builder
		for i := 0; i < 16; i++ {
			if i >= len(work) {
				workHex.WriteString("   ")
				workASCII.WriteByte(' ')
			} else {
				m := work[i]
				delta := workMark != nil && workMark[i]
				ch := m
				if ch < 32 || ch > 126 {
					ch = '.'
				}
				if delta {
					workHex.WriteString(red.Sprintf("%02x ", m))
					workASCII.WriteString(red.Sprintf("%c", ch))
				} else {
					fmt.Fprintf(&workHex, "%02x ", m)
					workASCII.WriteByte(ch)
				}
			}
			if i%8 == 7 {
				workHex.WriteByte(' ')
			}
		}

		fmt.Fprintf(&sb, "%08x  %s|%s|\n", offset, workHex.String(), workASCII.String())
		offset += l
	}
	return sb.String()
}
