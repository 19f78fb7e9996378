//go:build linux

package fsys

import (
	"bytes"
	"encoding/binary"
	"os"

	"golang.org/x/sys/unix"

	"github.com/unkn0wn-root/treewalk"
)

// struct linux_dirent64 layout; identical on every Linux architecture.
const (
	direntInoOff    = 0
	direntReclenOff = 16
	direntTypeOff   = 18
	direntNameOff   = 19
)

const direntBufSize = 32 << 10

func readDir(path string) ([]treewalk.DirEntry, error) {
	var fd int
	err := ignoringEINTR(func() error {
		var oerr error
		fd, oerr = unix.Open(path, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
		return oerr
	})
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	defer unix.Close(fd)

	buf := make([]byte, direntBufSize)
	var out []treewalk.DirEntry
	for {
		var n int
		err := ignoringEINTR(func() error {
			var gerr error
			n, gerr = unix.Getdents(fd, buf)
			return gerr
		})
		if err != nil {
			return nil, &os.PathError{Op: "getdents", Path: path, Err: err}
		}
		if n <= 0 {
			return out, nil
		}
		out = parseDirents(buf[:n], out)
	}
}

// parseDirents appends the entries packed in buf to out, skipping "."
// "..", and slots with a zero inode.
func parseDirents(buf []byte, out []treewalk.DirEntry) []treewalk.DirEntry {
	for len(buf) > direntNameOff {
		reclen := int(binary.NativeEndian.Uint16(buf[direntReclenOff:]))
		if reclen <= direntNameOff || reclen > len(buf) {
			break
		}
		rec := buf[:reclen]
		buf = buf[reclen:]

		if binary.NativeEndian.Uint64(rec[direntInoOff:]) == 0 {
			continue
		}
		name := rec[direntNameOff:]
		if i := bytes.IndexByte(name, 0); i >= 0 {
			name = name[:i]
		}
		if len(name) == 0 || string(name) == "." || string(name) == ".." {
			continue
		}
		out = append(out, treewalk.DirEntry{Name: string(name), Kind: kindFromDType(rec[direntTypeOff])})
	}
	return out
}

func kindFromDType(t uint8) treewalk.Kind {
	switch t {
	case unix.DT_DIR:
		return treewalk.KindDirectory
	case unix.DT_REG:
		return treewalk.KindRegular
	case unix.DT_LNK:
		return treewalk.KindSymlink
	case unix.DT_UNKNOWN:
		return treewalk.KindUnknown
	default:
		return treewalk.KindOther
	}
}
