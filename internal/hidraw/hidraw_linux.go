//go:build linux

package hidraw

import (
	"errors"
	"os"
	"runtime"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// HIDIOCSFEATURE(len) and HIDIOCGFEATURE(len) with the length field zeroed.
const (
	ioctlSetFeature = 0xC0004806
	ioctlGetFeature = 0xC0004807

	maxReport = 1024
)

// Device is an open /dev/hidrawN node.
type Device struct {
	f *os.File
}

// Open opens a hidraw node for reading and writing.
func Open(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &Device{f: f}, nil
}

// Write sends an output report; b[0] is the report ID.
func (d *Device) Write(b []byte) (int, error) {
	return unix.Write(int(d.f.Fd()), b)
}

// ReadWithTimeout reads one input report. It returns (0, nil) if none
// arrived within timeout.
func (d *Device) ReadWithTimeout(b []byte, timeout time.Duration) (int, error) {
	fd := int(d.f.Fd())
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, int(timeout/time.Millisecond))
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, os.NewSyscallError("poll", err)
		}
		if n == 0 {
			return 0, nil
		}
		break
	}
	if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		return 0, os.ErrClosed
	}
	n, err := unix.Read(fd, b)
	if err != nil {
		return 0, os.NewSyscallError("read", err)
	}
	return n, nil
}

// SendFeatureReport sends a feature report; b[0] is the report ID.
func (d *Device) SendFeatureReport(b []byte) (int, error) {
	var tmp [maxReport]byte
	if len(b) > len(tmp) {
		return 0, ErrTooLong
	}
	copy(tmp[:], b)
	if err := d.ioctl(ioctlSetFeature, len(b), &tmp); err != nil {
		return 0, os.NewSyscallError("HIDIOCSFEATURE", err)
	}
	return len(b), nil
}

// GetFeatureReport reads the feature report whose ID is in b[0].
func (d *Device) GetFeatureReport(b []byte) (int, error) {
	var tmp [maxReport]byte
	if len(b) > len(tmp) {
		return 0, ErrTooLong
	}
	copy(tmp[:], b)
	if err := d.ioctl(ioctlGetFeature, len(b), &tmp); err != nil {
		return 0, os.NewSyscallError("HIDIOCGFEATURE", err)
	}
	copy(b, tmp[:])
	return len(b), nil
}

func (d *Device) ioctl(req uint32, size int, buf *[maxReport]byte) error {
	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		d.f.Fd(),
		uintptr(req|uint32(size)<<16),
		uintptr(unsafe.Pointer(buf)),
	)
	runtime.KeepAlive(buf)
	if errno != 0 {
		return errno
	}
	return nil
}

// Close closes the node.
func (d *Device) Close() error {
	return d.f.Close()
}
