//go:build !linux

package devinfo

import (
	cerr "github.com/cockroachdb/errors"
)

func blockDeviceSize(path string) (int64, error) {
	return 0, cerr.Newf("block device capacity lookup not supported on this platform: %s", path)
}
