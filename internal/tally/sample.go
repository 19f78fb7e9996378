package tally

import "github.com/unkn0wn-root/treewalk"

// Sample keeps counts plus the first Limit paths a rank visited.
type Sample struct {
	Counts Counts   `cbor:"c"`
	Limit  int      `cbor:"l"`
	Paths  []string `cbor:"p,omitempty"`
}

func (s *Sample) add(path string) {
	if len(s.Paths) < s.Limit {
		s.Paths = append(s.Paths, path)
	}
}

// SampleHooks wires a Sample accumulator into a walker.
func SampleHooks() treewalk.Hooks[Sample] {
	count := CountHooks()
	return treewalk.Hooks[Sample]{
		OnDirectory: func(path string, s *Sample) {
			s.Counts.AddDir(path)
			s.add(path)
		},
		OnFile: func(path string, s *Sample) {
			s.Counts.AddFile(path)
			s.add(path)
		},
		OnFinish: func(s *Sample, st treewalk.Stats) {
			count.OnFinish(&s.Counts, st)
		},
	}
}
