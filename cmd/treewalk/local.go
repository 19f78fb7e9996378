package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/treewalk"
	"github.com/unkn0wn-root/treewalk/fsys"
	"github.com/unkn0wn-root/treewalk/internal/tally"
)

var localCmd = &cobra.Command{
	Use:   "local ROOT",
	Short: "Walk ROOT with several ranks inside this process",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLocal(cmd.Context(), args[0], viper.GetInt("ranks"), viper.GetInt("sample"))
	},
}

func init() {
	localCmd.Flags().IntP("ranks", "n", 4, "number of ranks")
}

func runLocal(ctx context.Context, root string, ranks, sample int) error {
	if ranks < 1 {
		ranks = 1
	}
	probeRoot(root)

	mesh := treewalk.NewMesh(ranks)
	defer mesh.Close()

	cfg := walkerConfig()
	g, gctx := errgroup.WithContext(ctx)

	var results []tally.Sample
	start := time.Now()
	for r := 0; r < ranks; r++ {
		w := treewalk.New(cfg, mesh.Endpoint(r), fsys.OS{}, tally.SampleHooks())
		w.Results.Limit = sample
		g.Go(func() error {
			res, err := w.Execute(gctx, root)
			if err != nil {
				return err
			}
			if w.Rank() == 0 {
				results = res
			}
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	var err error
	select {
	case err = <-done:
	case <-gctx.Done():
		// a failed rank leaves the others unable to finish; do not wait
		if cause := context.Cause(gctx); !errors.Is(cause, context.Canceled) {
			return cause
		}
		err = <-done
	}
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{"ranks": ranks, "elapsed": time.Since(start)}).Info("walk complete")
	report(os.Stdout, results)
	return nil
}

func probeRoot(root string) {
	m, err := fsys.FSType(root)
	if err != nil {
		logrus.Debugf("cannot probe filesystem type: %v", err)
		return
	}
	entry := logrus.WithFields(logrus.Fields{"root": root, "fstype": m.String()})
	if m.Parallel() {
		entry.Info("root is on a parallel filesystem")
		return
	}
	entry.Debug("root filesystem")
}
