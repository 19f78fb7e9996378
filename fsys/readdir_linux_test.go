//go:build linux

package fsys

import (
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sys/unix"

	"github.com/unkn0wn-root/treewalk"
)

// dirent packs one linux_dirent64 record, padded to 8 bytes.
func dirent(ino uint64, typ uint8, name string) []byte {
	reclen := (direntNameOff + len(name) + 1 + 7) &^ 7
	b := make([]byte, reclen)
	binary.NativeEndian.PutUint64(b[direntInoOff:], ino)
	binary.NativeEndian.PutUint64(b[8:], uint64(reclen))
	binary.NativeEndian.PutUint16(b[direntReclenOff:], uint16(reclen))
	b[direntTypeOff] = typ
	copy(b[direntNameOff:], name)
	return b
}

func TestParseDirents(t *testing.T) {
	var buf []byte
	buf = append(buf, dirent(1, unix.DT_DIR, ".")...)
	buf = append(buf, dirent(2, unix.DT_DIR, "..")...)
	buf = append(buf, dirent(3, unix.DT_DIR, "sub")...)
	buf = append(buf, dirent(0, unix.DT_REG, "deleted")...)
	buf = append(buf, dirent(4, unix.DT_REG, "a-much-longer-file-name.txt")...)
	buf = append(buf, dirent(5, unix.DT_LNK, "l")...)
	buf = append(buf, dirent(6, unix.DT_UNKNOWN, "u")...)
	buf = append(buf, dirent(7, unix.DT_FIFO, "p")...)

	got := parseDirents(buf, nil)
	want := []treewalk.DirEntry{
		{Name: "sub", Kind: treewalk.KindDirectory},
		{Name: "a-much-longer-file-name.txt", Kind: treewalk.KindRegular},
		{Name: "l", Kind: treewalk.KindSymlink},
		{Name: "u", Kind: treewalk.KindUnknown},
		{Name: "p", Kind: treewalk.KindOther},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("entries (-want +got):\n%s", diff)
	}
}

func TestParseDirentsTruncated(t *testing.T) {
	rec := dirent(9, unix.DT_REG, "file")
	got := parseDirents(rec[:len(rec)-1], nil)
	if len(got) != 0 {
		t.Fatalf("parsed a truncated record: %v", got)
	}
}

func TestParseDirentsAppends(t *testing.T) {
	prev := []treewalk.DirEntry{{Name: "x"}}
	got := parseDirents(dirent(1, unix.DT_REG, "y"), prev)
	if len(got) != 2 || got[1].Name != "y" {
		t.Fatalf("got %v", got)
	}
}

func TestFSTypeProc(t *testing.T) {
	m, err := FSType("/proc")
	if err != nil {
		t.Skipf("no /proc: %v", err)
	}
	if m != MagicProc {
		t.Fatalf("/proc is %s", m)
	}
}

func TestFSTypeMissing(t *testing.T) {
	if _, err := FSType("/definitely/not/here"); err == nil {
		t.Fatalf("expected error")
	}
}
