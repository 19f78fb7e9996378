package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/unkn0wn-root/treewalk/internal/tally"
)

// report prints one row per rank plus totals, then any sampled paths.
func report(w io.Writer, results []tally.Sample) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"rank", "dirs", "files", "errors", "stolen", "given", "requests", "empty replies"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	all := make([]tally.Counts, 0, len(results))
	for rank, r := range results {
		c := r.Counts
		all = append(all, c)
		table.Append([]string{
			strconv.Itoa(rank),
			u(c.Dirs), u(c.Files), u(c.Errors),
			u(c.Stats.ItemsReceived), u(c.Stats.ItemsGiven),
			u(c.Stats.RequestsSent), u(c.Stats.RepliesEmpty),
		})
	}
	t := tally.Total(all)
	table.SetFooter([]string{
		"total",
		u(t.Dirs), u(t.Files), u(t.Errors),
		u(t.Stats.ItemsReceived), u(t.Stats.ItemsGiven),
		u(t.Stats.RequestsSent), u(t.Stats.RepliesEmpty),
	})
	table.Render()
	fmt.Fprintf(w, "fingerprint %016x\n", t.Fingerprint)

	for rank, r := range results {
		for _, p := range r.Paths {
			fmt.Fprintf(w, "%d\t%s\n", rank, p)
		}
	}
}

func u(v uint64) string { return strconv.FormatUint(v, 10) }
