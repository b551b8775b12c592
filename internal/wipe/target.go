package wipe

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Resolver expands a raw user target into the ordered set of erasure units.
type Resolver struct {
	log *zap.Logger
}

func NewResolver(log *zap.Logger) *Resolver {
	return &Resolver{log: log}
}

// ResolveDevice wraps a device descriptor as a single unit spanning the
// full reported extent.
func (r *Resolver) ResolveDevice(dev DeviceExtent) []WipeTarget {
	return []WipeTarget{{Path: dev.Path, Kind: KindDevice, Length: dev.Size}}
}

// Resolve maps a path to erasure units. A regular file yields one unit. A
// directory yields one unit per contained regular file (depth-first),
// followed by dir-entry units deepest first, the requested root last.
// Symlinks inside the tree are never followed: a link escaping the root
// would otherwise pull outside data into the erasure scope.
func (r *Resolver) Resolve(raw string) ([]WipeTarget, error) {
	abs, err := filepath.Abs(filepath.Clean(raw))
	if err != nil {
		return nil, cerr.Wrapf(err, "resolving %q", raw)
	}

	info, err := os.Lstat(abs)
	if err != nil {
		return nil, cerr.Wrapf(err, "target does not exist: %s", abs)
	}

	switch {
	case info.Mode().IsRegular():
		return []WipeTarget{{Path: abs, Kind: KindFile, Length: info.Size()}}, nil
	case info.IsDir():
		return r.resolveDir(abs)
	case info.Mode()&fs.ModeSymlink != 0:
		return nil, cerr.Newf("target is a symlink, refusing to follow: %s", abs)
	default:
		return nil, cerr.Newf("target is neither a regular file nor a directory: %s", abs)
	}
}

func (r *Resolver) resolveDir(root string) ([]WipeTarget, error) {
	var files []WipeTarget
	var dirs []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return cerr.Wrapf(err, "walking %s", path)
		}
		switch {
		case d.IsDir():
			dirs = append(dirs, path)
		case d.Type()&fs.ModeSymlink != 0:
			// The link entry itself is removed with its parent directory;
			// the link destination stays outside the erasure scope.
			r.log.Debug("skipping symlink", zap.String("path", path))
		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				return cerr.Wrapf(err, "stat %s", path)
			}
			files = append(files, WipeTarget{Path: path, Kind: KindFile, Length: info.Size()})
		default:
			r.log.Debug("skipping irregular entry", zap.String("path", path), zap.String("mode", d.Type().String()))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Deepest directories first so each one is empty by the time its
	// removal unit runs; the requested root goes last.
	sort.Slice(dirs, func(i, j int) bool {
		di := strings.Count(dirs[i], string(os.PathSeparator))
		dj := strings.Count(dirs[j], string(os.PathSeparator))
		if di != dj {
			return di > dj
		}
		return dirs[i] < dirs[j]
	})

	units := files
	for _, d := range dirs {
		units = append(units, WipeTarget{Path: d, Kind: KindDirEntry, Length: 0})
	}
	return units, nil
}
