package wipe

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// ErrSafetyDenied marks a target the guard refused to touch. The unit
// aborts; siblings continue unless abort-all-on-denial is configured.
var ErrSafetyDenied = cerr.New("safety check denied target")

// systemPaths are always protected regardless of configuration.
var systemPaths = []string{
	"/",
	"/bin", "/boot", "/dev", "/etc", "/home", "/lib", "/lib64",
	"/proc", "/root", "/run", "/sbin", "/sys", "/usr", "/var",
}

// SafetyGuard validates a target against exclusion rules immediately before
// its first pass. It runs per unit, not per invocation: directory expansion
// can surface paths that were not visible when the run started.
type SafetyGuard struct {
	protected  []string
	mountsPath string
	log        *zap.Logger
}

func NewSafetyGuard(protectedPaths []string, log *zap.Logger) *SafetyGuard {
	g := &SafetyGuard{
		mountsPath: "/proc/self/mounts",
		log:        log,
	}
	g.protected = append(g.protected, systemPaths...)
	for _, p := range protectedPaths {
		g.protected = append(g.protected, filepath.Clean(p))
	}
	return g
}

// Authorize returns nil when the target may be destroyed, or an error
// wrapping ErrSafetyDenied with the refusal reason.
func (g *SafetyGuard) Authorize(t WipeTarget) error {
	abs, err := filepath.Abs(filepath.Clean(t.Path))
	if err != nil {
		return cerr.Wrapf(ErrSafetyDenied, "unresolvable path %q", t.Path)
	}

	for _, p := range g.protected {
		if abs == p {
			g.log.Warn("denied protected path", zap.String("path", abs))
			return cerr.Wrapf(ErrSafetyDenied, "protected system path %s", abs)
		}
	}

	if t.Kind == KindDevice {
		mp, mounted, err := g.deviceMount(abs)
		if err != nil {
			return cerr.Wrapf(ErrSafetyDenied, "cannot determine mount state of %s: %v", abs, err)
		}
		if mounted {
			g.log.Warn("denied mounted device", zap.String("device", abs), zap.String("mountpoint", mp))
			return cerr.Wrapf(ErrSafetyDenied, "device %s is mounted at %s", abs, mp)
		}
	}

	if err := unix.Access(abs, unix.W_OK); err != nil {
		return cerr.Wrapf(ErrSafetyDenied, "no destructive-write permission on %s: %v", abs, err)
	}

	return nil
}

// deviceMount scans the mount table for the device. A device hosting any
// mounted filesystem, the running system above all, must never be wiped
// in place.
func (g *SafetyGuard) deviceMount(device string) (string, bool, error) {
	f, err := os.Open(g.mountsPath)
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
		if devicePathMatches(fields[0], device) {
			return fields[1], true, nil
		}
	}
	return "", false, sc.Err()
}

// devicePathMatches reports whether a mount-table source is the device node
// itself or one of its partitions (sda1, nvme0n1p2). A node whose name
// merely extends the device's (sdab next to sda) is a different disk.
func devicePathMatches(src, device string) bool {
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
