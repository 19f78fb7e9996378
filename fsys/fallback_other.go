//go:build !unix

package fsys

import (
	"io/fs"
	"os"

	"github.com/unkn0wn-root/treewalk"
)

func readDir(path string) ([]treewalk.DirEntry, error) {
	ents, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	out := make([]treewalk.DirEntry, 0, len(ents))
	for _, e := range ents {
		out = append(out, treewalk.DirEntry{Name: e.Name(), Kind: kindFromMode(e.Type())})
	}
	return out, nil
}

func lstatMode(path string) (fs.FileMode, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return 0, err
	}
	return fi.Mode().Type(), nil
}
