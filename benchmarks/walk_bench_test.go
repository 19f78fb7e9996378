package main_test

import (
	"context"
	"fmt"
	"io"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/treewalk"
	"github.com/unkn0wn-root/treewalk/internal/tally"
)

// synthFS is a generated tree: every directory at depth < depth has fanout
// subdirectories and files regular files.
type synthFS struct {
	fanout, files, depth int
	delay                time.Duration
}

func (s synthFS) level(p string) int {
	n := 0
	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			n++
		}
	}
	return n - 1
}

func (s synthFS) ReadDir(p string) ([]treewalk.DirEntry, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	out := make([]treewalk.DirEntry, 0, s.fanout+s.files)
	if s.level(p) < s.depth {
		for i := 0; i < s.fanout; i++ {
			out = append(out, treewalk.DirEntry{Name: fmt.Sprintf("d%d", i), Kind: treewalk.KindDirectory})
		}
	}
	for i := 0; i < s.files; i++ {
		out = append(out, treewalk.DirEntry{Name: fmt.Sprintf("f%d", i), Kind: treewalk.KindRegular})
	}
	return out, nil
}

func (s synthFS) Lstat(p string) (bool, error) {
	return path.Base(p)[0] == 'd', nil
}

func walk(b *testing.B, ranks int, fs treewalk.FS) tally.Counts {
	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg := treewalk.Default()
	cfg.Logger = log

	mesh := treewalk.NewMesh(ranks)
	defer mesh.Close()

	var (
		wg  sync.WaitGroup
		out []tally.Counts
	)
	for r := 0; r < ranks; r++ {
		w := treewalk.New(cfg, mesh.Endpoint(r), fs, tally.CountHooks())
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := w.Execute(context.Background(), "/t")
			if err != nil {
				b.Error(err)
				return
			}
			if w.Rank() == 0 {
				out = res
			}
		}()
	}
	wg.Wait()
	return tally.Total(out)
}

func benchRanks(b *testing.B, fs synthFS) {
	for _, ranks := range []int{1, 2, 4, 8} {
		b.Run(fmt.Sprintf("ranks=%d", ranks), func(b *testing.B) {
			var nodes uint64
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				t := walk(b, ranks, fs)
				nodes = t.Dirs + t.Files
			}
			b.ReportMetric(float64(nodes), "nodes/op")
		})
	}
}

func BenchmarkWalkWide(b *testing.B) {
	benchRanks(b, synthFS{fanout: 20, files: 50, depth: 2})
}

func BenchmarkWalkDeep(b *testing.B) {
	benchRanks(b, synthFS{fanout: 2, files: 3, depth: 10})
}

func BenchmarkWalkSlowFS(b *testing.B) {
	benchRanks(b, synthFS{fanout: 6, files: 10, depth: 3, delay: 200 * time.Microsecond})
}
