// Package cli implements the settlementd command set, grounded on
// LeJamon-goXRPLd's internal/cli (a persistent --conf flag, cobra.OnInitialize
// for config loading, one subcommand per run mode) adapted from an XRPL node's
// server/compare/replay commands to settlementd's serve/worker/sweep trio.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oxzoid/settlementcore/internal/config"
	"github.com/oxzoid/settlementcore/internal/logging"
)

var (
	configFile string
	cfg        *config.Config
	log        *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "settlementd",
	Short: "P2P crypto/fiat settlement core",
	Long: `settlementd runs the order lifecycle engine that settles peer-to-peer
crypto<->fiat trades: escrow lock/release/refund, dispute resolution, the
notification outbox, and the expiry sweeper.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path")
}

func initConfig() {
	loaded, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config load failed:", err)
		os.Exit(1)
	}
	cfg = loaded
	log = logging.New(&logging.Config{Level: cfg.LogLevel, Prefix: "settlementd"})
	logging.SetDefault(log)
}
