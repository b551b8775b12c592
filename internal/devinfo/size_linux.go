//go:build linux

package devinfo

import (
	"os"

	"golang.org/x/sys/unix"
)

// blockDeviceSize asks the kernel for the device capacity in bytes.
func blockDeviceSize(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	size, err := unix.IoctlGetInt(int(f.Fd()), unix.BLKGETSIZE64)
	if err != nil {
		return 0, err
	}
	return int64(size), nil
}
