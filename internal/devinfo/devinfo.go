// Package devinfo builds the block-device descriptor the wipe engine
// consumes. The engine itself never inspects devices: size and mount state
// come from here, handed over explicitly by the caller.
package devinfo

import (
	"bufio"
	"io/fs"
	"os"
	"strings"

	cerr "github.com/cockroachdb/errors"
)

// Device describes one block device extent.
type Device struct {
	Path       string
	Size       int64
	Mounted    bool
	MountPoint string
}

// Describe stats the device node, reads its capacity from the kernel and
// scans the mount table.
func Describe(path string) (*Device, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, cerr.Wrapf(err, "device %s", path)
	}
	if info.Mode()&fs.ModeDevice == 0 {
		return nil, cerr.Newf("not a block device: %s", path)
	}

	size, err := blockDeviceSize(path)
	if err != nil {
		return nil, cerr.Wrapf(err, "reading capacity of %s", path)
	}

	dev := &Device{Path: path, Size: size}
	dev.MountPoint, dev.Mounted, err = mountPoint(path, "/proc/self/mounts")
	if err != nil {
		return nil, cerr.Wrapf(err, "reading mount table for %s", path)
	}
	return dev, nil
}

func mountPoint(device, mountsPath string) (string, bool, error) {
	f, err := os.Open(mountsPath)
	if err != nil {
		return "", false, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		if sourceMatches(fields[0], device) {
			return fields[1], true, nil
		}
	}
	return "", false, sc.Err()
}

// sourceMatches accepts the device node itself and its partitions (sda1,
// nvme0n1p2), but not a longer sibling name like sdab next to sda.
func sourceMatches(src, device string) bool {
	if src == device {
		return true
	}
	rest, ok := strings.CutPrefix(src, device)
	if !ok || rest == "" {
		return false
	}
	if rest[0] == 'p' {
		rest = rest[1:]
	}
	if rest == "" {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
