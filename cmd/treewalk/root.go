package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/unkn0wn-root/treewalk"
)

type rootOpts struct {
	cfgFile  string
	debug    bool
	hideTime bool
}

var rootOpt rootOpts

var rootCmd = &cobra.Command{
	Use:   "treewalk",
	Short: "Walk a directory tree with many cooperating ranks",
	Long: `treewalk spreads the traversal of one large directory tree over a fixed
set of ranks. Idle ranks steal work from random peers and a token circulating
around the ranks detects when the whole walk is done.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootOpt.cfgFile, "config", "", "config file (yaml, toml or json)")
	pf.BoolVarP(&rootOpt.debug, "debug", "d", false, "turn on debug logging")
	pf.BoolVar(&rootOpt.hideTime, "hide-time", false, "hide the log time")
	pf.Uint64("seed", 0, "random seed for steal targets and split points (0 = random)")
	pf.Duration("idle-backoff", treewalk.Default().IdleBackoff, "pause of an idle rank between polls")
	pf.Int("sample", 0, "print up to this many visited paths per rank")

	rootCmd.AddCommand(localCmd, nodeCmd, fstypeCmd)
}

// initConfig sets up logging, then layers the config file and TREEWALK_*
// environment variables under the command line flags.
func initConfig(cmd *cobra.Command, _ []string) error {
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:    true,
		DisableTimestamp: rootOpt.hideTime,
		TimestampFormat:  "2006-01-02 15:04:05",
	})
	logrus.SetLevel(logrus.InfoLevel)
	if rootOpt.debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	viper.SetEnvPrefix("TREEWALK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if rootOpt.cfgFile != "" {
		viper.SetConfigFile(rootOpt.cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "read config %s", rootOpt.cfgFile)
		}
		logrus.Debugf("using config file %s", viper.ConfigFileUsed())
	}
	return viper.BindPFlags(cmd.Flags())
}

func walkerConfig() treewalk.Config {
	cfg := treewalk.Default()
	cfg.Seed = viper.GetUint64("seed")
	cfg.IdleBackoff = viper.GetDuration("idle-backoff")
	cfg.Logger = logrus.StandardLogger()
	return cfg
}
