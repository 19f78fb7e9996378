package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/unkn0wn-root/treewalk"
	"github.com/unkn0wn-root/treewalk/cluster"
	"github.com/unkn0wn-root/treewalk/fsys"
	"github.com/unkn0wn-root/treewalk/internal/tally"
)

var nodeCmd = &cobra.Command{
	Use:   "node ROOT",
	Short: "Run one rank of a walk spread over several processes",
	Long: `node runs one rank. Start one process per address in --peers, each with
its own --rank; rank 0's ROOT seeds the walk and rank 0 prints the summary.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNode(cmd.Context(), args[0])
	},
}

func init() {
	f := nodeCmd.Flags()
	def := cluster.Default()
	f.Int("rank", 0, "this process's rank")
	f.String("peers", "", "comma-separated host:port of every rank, in rank order")
	f.String("bind", "", "listen address (default: this rank's entry in --peers)")
	f.String("auth", "", "shared token every peer must present")
	f.Int("max-frame", def.Sec.MaxFrameSize, "max frame bytes")
	f.Duration("read-timeout", def.Sec.ReadTimeout, "read timeout for handshakes and frame bodies")
	f.Duration("write-timeout", def.Sec.WriteTimeout, "write timeout per frame")
	f.Duration("dial-timeout", def.DialTimeout, "timeout of a single dial attempt")
	f.Duration("connect-timeout", time.Minute, "how long to keep dialing peers at startup")
	f.Duration("gather-timeout", def.GatherTimeout, "how long rank 0 waits for results after its walk ends")
	f.Int("send-queue", def.SendQueue, "outbound frames queued per peer")
}

func runNode(ctx context.Context, root string) error {
	cfg := cluster.Default()
	cfg.Rank = viper.GetInt("rank")
	cfg.Peers = splitCSV(viper.GetString("peers"))
	cfg.BindAddr = viper.GetString("bind")
	cfg.Sec.AuthToken = viper.GetString("auth")
	cfg.Sec.MaxFrameSize = viper.GetInt("max-frame")
	cfg.Sec.ReadTimeout = viper.GetDuration("read-timeout")
	cfg.Sec.WriteTimeout = viper.GetDuration("write-timeout")
	cfg.DialTimeout = viper.GetDuration("dial-timeout")
	cfg.GatherTimeout = viper.GetDuration("gather-timeout")
	cfg.SendQueue = viper.GetInt("send-queue")
	cfg.Logger = logrus.StandardLogger()

	node, err := cluster.Listen(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := node.Close(); err != nil {
			logrus.Debugf("close: %v", err)
		}
	}()

	cctx, cancel := context.WithTimeout(ctx, viper.GetDuration("connect-timeout"))
	err = node.Connect(cctx)
	cancel()
	if err != nil {
		return errors.Wrap(err, "connect")
	}

	log := logrus.WithFields(logrus.Fields{"rank": cfg.Rank, "ranks": node.Size(), "addr": node.Addr().String()})
	log.Info("fleet connected")
	if cfg.Rank == 0 {
		probeRoot(root)
	}

	w := treewalk.New(walkerConfig(), node, fsys.OS{}, tally.SampleHooks())
	w.Results.Limit = viper.GetInt("sample")

	start := time.Now()
	results, err := w.Execute(ctx, root)
	if err != nil {
		return err
	}
	log.WithField("elapsed", time.Since(start)).Info("rank done")

	if cfg.Rank == 0 {
		report(os.Stdout, results)
	}
	return nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
