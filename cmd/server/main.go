package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/alertledger/internal/api"
	"github.com/dgallion1/alertledger/internal/archive"
	"github.com/dgallion1/alertledger/internal/config"
	"github.com/dgallion1/alertledger/internal/kvstore"
	"github.com/dgallion1/alertledger/internal/ledger"
	"github.com/dgallion1/alertledger/internal/pipeline"
)

func main() {
	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize clients.
	kv := kvstore.NewClient(cfg.KVURL, cfg.KVAPIKey)
	lc := ledger.NewClient(cfg.LedgerURL, cfg.LedgerToken, cfg.LedgerBudgetID, cfg.LedgerTimeout)
	lc.AutoApprove = cfg.LedgerAutoApprove

	var arc archive.Archiver = archive.Nop{}
	if cfg.ArchiveBucket != "" {
		gcs, err := archive.NewGCS(ctx, cfg.ArchiveBucket)
		if err != nil {
			log.Error("failed to create archive client", "bucket", cfg.ArchiveBucket, "error", err)
			os.Exit(1)
		}
		arc = gcs
		log.Info("archiving raw documents", "bucket", cfg.ArchiveBucket)
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, pipeline.Deps{
		Accounts:    kv,
		Documents:   kv,
		Occurrences: kv,
		Ledger:      lc,
		Archive:     arc,
		DedupTTL:    cfg.DedupTTL,
	}, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, lc.Stats, kv, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()

		lc.Close()
		kv.Close()
		if err := arc.Close(); err != nil {
			log.Warn("archive close failed", "error", err)
		}
	}()

	log.Info("starting alertledger", "port", cfg.Port, "workers", cfg.WorkerCount)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
