package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oxzoid/settlementcore/internal/sweeper"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run only the order expiry sweeper",
	Run:   runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

// runSweep is the standalone expiry-sweeper mode, for deployments that run
// it as its own scheduled job instead of inside the serve process.
func runSweep(cmd *cobra.Command, args []string) {
	d, err := buildDeps()
	if err != nil {
		log.Fatal("failed to build dependencies", "err", err)
	}
	defer d.DB.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sw := sweeper.New(d.DB, d.Lifecycle, cfg.ExpirySweepInterval())
	log.Info("settlementd sweeping expired orders", "interval", cfg.ExpirySweepInterval())
	if err := sw.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("sweeper failed", "err", err)
	}
}
