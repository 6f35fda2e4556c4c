//go:build !tinygo

package uartx

import "sync"

// slotLock guards a table slot. On hosts the completion path runs on an
// ordinary goroutine, so a mutex suffices.
type slotLock struct{ sync.Mutex }
