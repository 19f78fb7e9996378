// Package fsys is the filesystem side of a walk: enumerating a directory
// with the entry types the kernel already knows, a stat fallback for entries
// it does not, and probing which filesystem a path lives on.
package fsys

import (
	"io/fs"

	"github.com/unkn0wn-root/treewalk"
)

// OS is the host filesystem.
type OS struct{}

var _ treewalk.FS = OS{}

// ReadDir lists the immediate children of path, excluding "." and "..".
// Entry kinds come from the directory stream; filesystems that do not fill
// in d_type yield KindUnknown.
func (OS) ReadDir(path string) ([]treewalk.DirEntry, error) {
	return readDir(path)
}

// Lstat reports whether path is a directory, without following symlinks.
func (OS) Lstat(path string) (bool, error) {
	mode, err := lstatMode(path)
	if err != nil {
		return false, err
	}
	return mode.IsDir(), nil
}

func kindFromMode(m fs.FileMode) treewalk.Kind {
	switch {
	case m.IsDir():
		return treewalk.KindDirectory
	case m.IsRegular():
		return treewalk.KindRegular
	case m&fs.ModeSymlink != 0:
		return treewalk.KindSymlink
	default:
		return treewalk.KindOther
	}
}
