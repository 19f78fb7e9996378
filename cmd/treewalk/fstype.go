package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/treewalk/fsys"
)

var fstypeCmd = &cobra.Command{
	Use:   "fstype PATH...",
	Short: "Print the filesystem type of each path",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, p := range args {
			m, err := fsys.FSType(p)
			if err != nil {
				return err
			}
			parallel := ""
			if m.Parallel() {
				parallel = " (parallel)"
			}
			fmt.Fprintf(out, "%s\t%s%s\n", p, m, parallel)
		}
		return nil
	},
}
