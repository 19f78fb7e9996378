//go:build unix && !linux

package fsys

import (
	"os"

	"github.com/unkn0wn-root/treewalk"
)

func readDir(path string) ([]treewalk.DirEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ents, err := f.ReadDir(-1)
	if err != nil {
		return nil, err
	}
	out := make([]treewalk.DirEntry, 0, len(ents))
	for _, e := range ents {
		out = append(out, treewalk.DirEntry{Name: e.Name(), Kind: kindFromMode(e.Type())})
	}
	return out, nil
}
