package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/poselab/poselab/internal/config"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:          "poselab",
	Short:        "Pose dataset inspection and conversion",
	SilenceUsage: true, // don't print usage on operational errors
	Long: `poselab reads and writes pose label datasets across formats: the
native .plp project container, JSON, DeepLabCut CSV imports, AlphaTracker
JSON imports, ndx pose containers and nix tracking exports.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logrus.SetLevel(logrus.WarnLevel)
		if cfg, err := config.Load(); err == nil && cfg.LogLevel != "" {
			if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
				logrus.SetLevel(lvl)
			}
		}
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute is called by main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
