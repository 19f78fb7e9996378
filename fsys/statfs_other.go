//go:build !linux

package fsys

import (
	"github.com/pkg/errors"
)

var errNoStatfs = errors.New("filesystem type probing is only supported on linux")

// FSType returns the type of the filesystem holding path.
func FSType(path string) (Magic, error) {
	return 0, errors.Wrapf(errNoStatfs, "statfs %s", path)
}
