//go:build linux

package hidraw

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "hidraw99"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v; want ErrNotExist", err)
	}
}

func TestFeatureReport_TooLong(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "hid")
	if err != nil {
		t.Fatal(err)
	}
	d := &Device{f: f}
	defer d.Close()

	big := make([]byte, maxReport+1)
	if _, err := d.SendFeatureReport(big); !errors.Is(err, ErrTooLong) {
		t.Errorf("SendFeatureReport: err = %v", err)
	}
	if _, err := d.GetFeatureReport(big); !errors.Is(err, ErrTooLong) {
		t.Errorf("GetFeatureReport: err = %v", err)
	}
	// A regular file is not a hidraw node.
	if _, err := d.SendFeatureReport([]byte{0x41, 1}); err == nil {
		t.Error("ioctl on a regular file succeeded")
	}
}
