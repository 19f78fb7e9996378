// Package tally has result accumulators for walks whose hooks only need to
// count and sample what they visit.
package tally

import (
	"github.com/cespare/xxhash/v2"

	"github.com/unkn0wn-root/treewalk"
)

// Counts is a rank's summary. Fingerprint is the wrapping sum of the xxhash
// of every visited path, so it does not depend on which rank visited what
// or in which order, and a path visited twice changes it.
type Counts struct {
	Dirs        uint64         `cbor:"d"`
	Files       uint64         `cbor:"f"`
	Errors      uint64         `cbor:"e"`
	Fingerprint uint64         `cbor:"fp"`
	Stats       treewalk.Stats `cbor:"st"`
}

func (c *Counts) AddDir(path string) {
	c.Dirs++
	c.Fingerprint += xxhash.Sum64String(path)
}

func (c *Counts) AddFile(path string) {
	c.Files++
	c.Fingerprint += xxhash.Sum64String(path)
}

// Merge folds o into c.
func (c *Counts) Merge(o Counts) {
	c.Dirs += o.Dirs
	c.Files += o.Files
	c.Errors += o.Errors
	c.Fingerprint += o.Fingerprint
	c.Stats.Add(o.Stats)
}

// Total merges every rank's counts.
func Total(all []Counts) Counts {
	var t Counts
	for _, c := range all {
		t.Merge(c)
	}
	return t
}

// Fingerprint is the Counts fingerprint of an explicit path set.
func Fingerprint(paths []string) uint64 {
	var sum uint64
	for _, p := range paths {
		sum += xxhash.Sum64String(p)
	}
	return sum
}

// CountHooks wires a Counts accumulator into a walker. Errors are taken
// from the walker's own stats at the end of the run.
func CountHooks() treewalk.Hooks[Counts] {
	return treewalk.Hooks[Counts]{
		OnDirectory: func(path string, c *Counts) { c.AddDir(path) },
		OnFile:      func(path string, c *Counts) { c.AddFile(path) },
		OnFinish: func(c *Counts, st treewalk.Stats) {
			c.Errors = st.Errors
			c.Stats = st
		},
	}
}
