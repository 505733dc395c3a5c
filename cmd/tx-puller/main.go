// Command tx-puller runs the worker pool that claims unprocessed digests
// from the store, fetches their bodies from the chain node, classifies them
// against a membership filter, and persists the ones of interest.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"laminar/internal/config"
	"laminar/internal/filter"
	"laminar/internal/puller"
	"laminar/internal/rpcclient"
	"laminar/internal/status"
	"laminar/internal/store"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.LoadPullerConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Warn("interrupt received, shutting down")
		cancel()
	}()

	rpc := rpcclient.New(cfg.SuiNodeURL)
	defer rpc.Close()

	db, err := store.Connect(ctx, cfg.WriterConnConf)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	f := filter.New(config.FilterExpectedInsertions, config.FilterFalsePositiveRate)

	cell := status.NewCell(0, false)
	statusServer := status.NewServer(cfg.HTTPAddr, cell, f)
	if err := statusServer.Start(); err != nil {
		log.Fatalf("failed to start status server: %v", err)
	}
	defer statusServer.Shutdown(context.Background())

	worker := puller.New(rpc, db, f, cfg.BatchSize)

	slog.Info("tx-puller running", "batch_size", cfg.BatchSize)

	if err := run(ctx, worker); err != nil {
		slog.Error("puller exited", "error", err)
		os.Exit(1)
	}

	slog.Info("tx-puller stopped")
}

func run(ctx context.Context, worker *puller.Worker) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		claimed, err := worker.RunOnce(ctx)
		if err != nil {
			return err
		}

		if claimed == 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(config.SleepOnEmptyClaim):
			}
		}
	}
}
