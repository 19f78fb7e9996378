//go:build linux

package fsys

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// FSType returns the type of the filesystem holding path.
func FSType(path string) (Magic, error) {
	var st unix.Statfs_t
	err := ignoringEINTR(func() error { return unix.Statfs(path, &st) })
	if err != nil {
		return 0, errors.Wrapf(err, "statfs %s", path)
	}
	// f_type is 32 bits wide on some architectures and sign-extends
	return Magic(uint64(st.Type) & 0xffffffff), nil
}
