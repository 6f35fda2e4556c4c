package main

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sigurn/crc16"
)

// Frame layout: seq(2, BE) | len(1) | payload(len) | crc16 XMODEM(2, BE)
// over seq, len and payload.
const (
	frameHeader  = 3
	frameTrailer = 2
	maxPayload   = 255

	preambleByte = 0x55
)

var crcTable = crc16.MakeTable(crc16.CRC16_XMODEM)

var (
	errFrameShort = errors.New("frame too short")
	errFrameCRC   = errors.New("frame checksum mismatch")
)

func patternA(i int) byte { return byte((i*31 + 0x55) & 0xFF) }
func patternB(i int) byte { return byte((i*17 + 0xA6) & 0xFF) }

// appendFrame appends the frame carrying payload to dst.
func appendFrame(dst []byte, seq uint16, payload []byte) []byte {
	start := len(dst)
	dst = binary.BigEndian.AppendUint16(dst, seq)
	dst = append(dst, byte(len(payload)))
	dst = append(dst, payload...)
	return binary.BigEndian.AppendUint16(dst, crc16.Checksum(dst[start:], crcTable))
}

// frameSize returns the total size of a frame given its header.
func frameSize(hdr []byte) int { return frameHeader + int(hdr[2]) + frameTrailer }

// parseFrame checks b and returns its sequence number and payload. The
// payload aliases b.
func parseFrame(b []byte) (uint16, []byte, error) {
	if len(b) < frameHeader+frameTrailer || len(b) != frameSize(b) {
		return 0, nil, errFrameShort
	}
	body := b[:len(b)-frameTrailer]
	want := binary.BigEndian.Uint16(b[len(body):])
	if got := crc16.Checksum(body, crcTable); got != want {
		return 0, nil, fmt.Errorf("%w: got %04x want %04x", errFrameCRC, got, want)
	}
	return binary.BigEndian.Uint16(b), body[frameHeader:], nil
}

// mismatchError reports payload bytes that differ from the expected pattern.
type mismatchError struct {
	Offset int
	Data   []byte
	Mark   []bool
}

func (e *mismatchError) Error() string {
	bad := 0
	for _, m := range e.Mark {
		if m {
			bad++
		}
	}
	return fmt.Sprintf("%d bytes differ in the %d-byte block at offset %d", bad, len(e.Data), e.Offset)
}

// checkPattern compares payload against gen starting at stream offset off.
func checkPattern(payload []byte, off int, gen func(int) byte) error {
	var mark []bool
	for i, b := range payload {
		if b == gen(off+i) {
			continue
		}
		if mark == nil {
			mark = make([]bool, len(payload))
		}
		mark[i] = true
	}
	if mark == nil {
		return nil
	}
	return &mismatchError{Offset: off, Data: append([]byte(nil), payload...), Mark: mark}
}
