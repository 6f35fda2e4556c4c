// Package rp2 drives the RP2040/RP2350 PL011 UARTs as hal ports.
//
// It only builds under TinyGo for the rp2040 and rp2350 targets.
package rp2
