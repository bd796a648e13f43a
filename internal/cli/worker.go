package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oxzoid/settlementcore/internal/notify"
	"github.com/oxzoid/settlementcore/internal/outbox"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run only the notification outbox drain loop",
	Run:   runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

// runWorker is the standalone outbox drain mode, for deployments that scale
// the outbox worker independently of the HTTP API.
func runWorker(cmd *cobra.Command, args []string) {
	d, err := buildDeps()
	if err != nil {
		log.Fatal("failed to build dependencies", "err", err)
	}
	defer d.DB.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sink := notify.Multi{Sinks: []outbox.Sink{notify.NewLogSink()}}
	ob := outbox.New(d.DB, sink, cfg.OutboxMaxAttempts, cfg.OutboxPollInterval())
	log.Info("settlementd worker draining outbox", "interval", cfg.OutboxPollInterval())
	if err := ob.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("outbox worker failed", "err", err)
	}
}
