package wipe

import (
	"os"
	"path/filepath"
	"testing"

	cerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAuthorizeDeniesSystemPaths(t *testing.T) {
	g := NewSafetyGuard(nil, zap.NewNop())

	for _, p := range []string{"/", "/etc", "/boot", "/usr"} {
		for _, kind := range []TargetKind{KindFile, KindDirEntry, KindDevice} {
			err := g.Authorize(WipeTarget{Path: p, Kind: kind})
			require.Error(t, err, "path %s kind %s", p, kind)
			assert.True(t, cerr.Is(err, ErrSafetyDenied))
		}
	}
}

func TestAuthorizeDeniesConfiguredPaths(t *testing.T) {
	dir := t.TempDir()
	precious := filepath.Join(dir, "precious.txt")
	writeFile(t, precious, []byte("keep"))

	g := NewSafetyGuard([]string{precious}, zap.NewNop())
	err := g.Authorize(WipeTarget{Path: precious, Kind: KindFile})
	require.Error(t, err)
	assert.True(t, cerr.Is(err, ErrSafetyDenied))
}

func TestAuthorizeAllowsOrdinaryFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "victim.txt")
	writeFile(t, path, []byte("bye"))

	g := NewSafetyGuard(nil, zap.NewNop())
	require.NoError(t, g.Authorize(WipeTarget{Path: path, Kind: KindFile, Length: 3}))
}

func TestAuthorizeDeniesMountedDevice(t *testing.T) {
	mounts := filepath.Join(t.TempDir(), "mounts")
	require.NoError(t, os.WriteFile(mounts, []byte(
		"/dev/sdz1 /mnt/data ext4 rw,relatime 0 0\n"+
			"proc /proc proc rw 0 0\n"), 0o644))

	g := NewSafetyGuard(nil, zap.NewNop())
	g.mountsPath = mounts

	err := g.Authorize(WipeTarget{Path: "/dev/sdz1", Kind: KindDevice})
	require.Error(t, err)
	assert.True(t, cerr.Is(err, ErrSafetyDenied))
	assert.Contains(t, err.Error(), "mounted")
}

func TestDeviceMountIgnoresSiblingDevices(t *testing.T) {
	mounts := filepath.Join(t.TempDir(), "mounts")
	require.NoError(t, os.WriteFile(mounts, []byte(
		"/dev/sdab1 /mnt/archive ext4 rw,relatime 0 0\n"), 0o644))

	g := NewSafetyGuard(nil, zap.NewNop())
	g.mountsPath = mounts

	// sda is not the disk hosting sdab1.
	_, mounted, err := g.deviceMount("/dev/sda")
	require.NoError(t, err)
	assert.False(t, mounted)

	mp, mounted, err := g.deviceMount("/dev/sdab")
	require.NoError(t, err)
	assert.True(t, mounted)
	assert.Equal(t, "/mnt/archive", mp)
}

func TestDevicePathMatches(t *testing.T) {
	cases := []struct {
		src, device string
		want        bool
	}{
		{"/dev/sda", "/dev/sda", true},
		{"/dev/sda1", "/dev/sda", true},
		{"/dev/sdab", "/dev/sda", false},
		{"/dev/sdab1", "/dev/sda", false},
		{"/dev/sdb1", "/dev/sda", false},
		{"/dev/nvme0n1p2", "/dev/nvme0n1", true},
		{"/dev/nvme0n1p2", "/dev/nvme0n", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, devicePathMatches(c.src, c.device), "%s against %s", c.src, c.device)
	}
}

func TestAuthorizeDeniesMissingPath(t *testing.T) {
	g := NewSafetyGuard(nil, zap.NewNop())
	err := g.Authorize(WipeTarget{Path: filepath.Join(t.TempDir(), "nope"), Kind: KindFile})
	require.Error(t, err)
	assert.True(t, cerr.Is(err, ErrSafetyDenied))
}
