package tally

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/unkn0wn-root/treewalk"
)

func TestFingerprintOrderIndependent(t *testing.T) {
	a := Fingerprint([]string{"/a", "/a/b", "/c"})
	b := Fingerprint([]string{"/c", "/a", "/a/b"})
	if a != b {
		t.Fatalf("order changed the fingerprint")
	}
	if dup := Fingerprint([]string{"/a", "/a/b", "/c", "/c"}); dup == a {
		t.Fatalf("a duplicate visit did not change the fingerprint")
	}
}

func TestTotalMergesRanks(t *testing.T) {
	var r0, r1 Counts
	r0.AddDir("/r")
	r0.AddFile("/r/x")
	r1.AddDir("/r/d")
	r1.Stats = treewalk.Stats{ItemsReceived: 2, RequestsSent: 3}
	r0.Stats = treewalk.Stats{ItemsGiven: 2}

	got := Total([]Counts{r0, r1})
	want := Counts{
		Dirs:        2,
		Files:       1,
		Fingerprint: Fingerprint([]string{"/r", "/r/x", "/r/d"}),
		Stats:       treewalk.Stats{ItemsReceived: 2, ItemsGiven: 2, RequestsSent: 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("total (-want +got):\n%s", diff)
	}
}

func TestSampleLimit(t *testing.T) {
	h := SampleHooks()
	s := Sample{Limit: 2}
	h.OnDirectory("/a", &s)
	h.OnFile("/a/1", &s)
	h.OnFile("/a/2", &s)
	h.OnFinish(&s, treewalk.Stats{Errors: 4})

	if diff := cmp.Diff([]string{"/a", "/a/1"}, s.Paths); diff != "" {
		t.Fatalf("paths (-want +got):\n%s", diff)
	}
	if s.Counts.Dirs != 1 || s.Counts.Files != 2 || s.Counts.Errors != 4 {
		t.Fatalf("counts %+v", s.Counts)
	}
}

func TestCountHooksOverMesh(t *testing.T) {
	fs := memTree{
		"/r":   {{Name: "a", Kind: treewalk.KindDirectory}, {Name: "b", Kind: treewalk.KindRegular}},
		"/r/a": {{Name: "c", Kind: treewalk.KindRegular}},
	}
	const ranks = 2
	mesh := treewalk.NewMesh(ranks)
	defer mesh.Close()

	done := make(chan []Counts, 1)
	errs := make(chan error, ranks)
	for r := 0; r < ranks; r++ {
		w := treewalk.New(treewalk.Default(), mesh.Endpoint(r), fs, CountHooks())
		go func() {
			res, err := w.Execute(context.Background(), "/r")
			errs <- err
			if w.Rank() == 0 {
				done <- res
			}
		}()
	}
	for r := 0; r < ranks; r++ {
		if err := <-errs; err != nil {
			t.Fatal(err)
		}
	}
	total := Total(<-done)
	if total.Dirs != 2 || total.Files != 2 {
		t.Fatalf("total %+v", total)
	}
	if total.Fingerprint != Fingerprint([]string{"/r", "/r/a", "/r/b", "/r/a/c"}) {
		t.Fatalf("fingerprint mismatch")
	}
}

// memTree maps directories to their entries; anything else is a file.
type memTree map[string][]treewalk.DirEntry

func (m memTree) ReadDir(p string) ([]treewalk.DirEntry, error) { return m[p], nil }

func (m memTree) Lstat(p string) (bool, error) {
	_, ok := m[p]
	return ok, nil
}
