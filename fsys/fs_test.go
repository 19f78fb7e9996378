package fsys

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/unkn0wn-root/treewalk"
)

func TestOSReadDirAndLstat(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "file"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("sub", filepath.Join(dir, "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	ents, err := OS{}.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	sort.Slice(ents, func(i, j int) bool { return ents[i].Name < ents[j].Name })

	var names []string
	for _, e := range ents {
		names = append(names, e.Name)
	}
	if diff := cmp.Diff([]string{"file", "link", "sub"}, names); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}

	want := map[string]treewalk.Kind{
		"file": treewalk.KindRegular,
		"link": treewalk.KindSymlink,
		"sub":  treewalk.KindDirectory,
	}
	for _, e := range ents {
		// filesystems without d_type report unknown; that is allowed
		if e.Kind != treewalk.KindUnknown && e.Kind != want[e.Name] {
			t.Fatalf("%s: kind %s want %s", e.Name, e.Kind, want[e.Name])
		}
	}

	for name, isDir := range map[string]bool{"sub": true, "file": false, "link": false} {
		got, err := OS{}.Lstat(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("lstat %s: %v", name, err)
		}
		if got != isDir {
			t.Fatalf("lstat %s: isDir=%v", name, got)
		}
	}
}

func TestOSReadDirEmpty(t *testing.T) {
	ents, err := OS{}.ReadDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(ents) != 0 {
		t.Fatalf("entries %v", ents)
	}
}

func TestOSErrorsAreNotExist(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	if _, err := (OS{}).ReadDir(missing); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("readdir: %v", err)
	}
	if _, err := (OS{}).Lstat(missing); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("lstat: %v", err)
	}
	var pe *fs.PathError
	if _, err := (OS{}).ReadDir(missing); !errors.As(err, &pe) || pe.Path != missing {
		t.Fatalf("want PathError for %s, got %v", missing, err)
	}
}

func TestOSReadDirOnFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(p, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := (OS{}).ReadDir(p); err == nil {
		t.Fatalf("expected error listing a regular file")
	}
}

func TestKindFromMode(t *testing.T) {
	cases := map[fs.FileMode]treewalk.Kind{
		fs.ModeDir:       treewalk.KindDirectory,
		0:                treewalk.KindRegular,
		fs.ModeSymlink:   treewalk.KindSymlink,
		fs.ModeNamedPipe: treewalk.KindOther,
	}
	for m, want := range cases {
		if got := kindFromMode(m); got != want {
			t.Fatalf("%v: got %s want %s", m, got, want)
		}
	}
}

func TestMagicNames(t *testing.T) {
	if MagicLustre.String() != "lustre" || !MagicLustre.Parallel() {
		t.Fatalf("lustre: %s parallel=%v", MagicLustre, MagicLustre.Parallel())
	}
	if MagicExt4.Parallel() {
		t.Fatalf("ext4 reported parallel")
	}
	if got := Magic(0x1234).String(); got != "0x1234" {
		t.Fatalf("unknown magic: %s", got)
	}
}
