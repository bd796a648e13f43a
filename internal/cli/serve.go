package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oxzoid/settlementcore/internal/api"
	"github.com/oxzoid/settlementcore/internal/notify"
	"github.com/oxzoid/settlementcore/internal/outbox"
	"github.com/oxzoid/settlementcore/internal/sweeper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server, outbox worker, and expiry sweeper together",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.Run = runServe
}

// runServe is the all-in-one process mode: HTTP API, websocket hub, outbox
// drain loop, and expiry sweeper share one process and one DB pool, the way
// the teacher's cmd/server/main.go starts its schedulers alongside the HTTP
// server rather than as separate binaries.
func runServe(cmd *cobra.Command, args []string) {
	d, err := buildDeps()
	if err != nil {
		log.Fatal("failed to build dependencies", "err", err)
	}
	defer d.DB.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	hub := notify.NewHub()
	go hub.Run(ctx)

	sink := notify.Multi{Sinks: []outbox.Sink{notify.NewLogSink(), hub}}
	ob := outbox.New(d.DB, sink, cfg.OutboxMaxAttempts, cfg.OutboxPollInterval())
	go func() {
		if err := ob.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("outbox worker stopped", "err", err)
		}
	}()

	sw := sweeper.New(d.DB, d.Lifecycle, cfg.ExpirySweepInterval())
	go func() {
		if err := sw.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("sweeper stopped", "err", err)
		}
	}()

	srv := api.New(d.DB, d.Store, d.Lifecycle, d.Dispute, hub, cfg.SystemActorSecret, cfg.RequestTimeout())
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("settlementd serving", "addr", cfg.HTTPAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("http server failed", "err", err)
	}
}
