package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

func main() {
	fmt.Println("=== treewalk Benchmark Suite ===")
	fmt.Println("Running in-process walks over synthetic trees")
	fmt.Println()

	benchmarks := []struct {
		name        string
		pattern     string
		description string
		benchtime   string
	}{
		{
			name:        "Rank Scaling - Wide Tree",
			pattern:     "BenchmarkWalkWide",
			description: "Shallow tree with large directories, 1 to 8 ranks",
			benchtime:   "3s",
		},
		{
			name:        "Rank Scaling - Deep Tree",
			pattern:     "BenchmarkWalkDeep",
			description: "Narrow, deep tree where stealing has little to split",
			benchtime:   "3s",
		},
		{
			name:        "Slow Filesystem",
			pattern:     "BenchmarkWalkSlowFS",
			description: "Listing latency dominates, as on a parallel filesystem",
			benchtime:   "2s",
		},
	}

	totalStart := time.Now()

	for i, bench := range benchmarks {
		fmt.Printf("[%d/%d] %s\n", i+1, len(benchmarks), bench.name)
		fmt.Printf("Description: %s\n", bench.description)
		fmt.Printf("Running: go test -bench=%s -benchmem -benchtime=%s\n", bench.pattern, bench.benchtime)
		fmt.Println(strings.Repeat("-", 80))

		start := time.Now()

		cmd := exec.Command("go", "test", "-run=^$", "-bench="+bench.pattern, "-benchmem", "-benchtime="+bench.benchtime, ".")
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			fmt.Printf(" - Benchmark failed: %v\n", err)
		} else {
			fmt.Printf(" + Benchmark completed in %v\n", time.Since(start))
		}
		fmt.Println()
	}

	fmt.Printf("All benchmarks completed in %v\n", time.Since(totalStart))
}
