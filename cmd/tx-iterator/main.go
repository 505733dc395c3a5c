// Command tx-iterator runs one replica of the digest log: the leader writes
// digests fetched from the chain node in order, while support replicas
// cross-validate the leader's work and self-promote if it stalls.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"laminar/internal/config"
	"laminar/internal/leader"
	"laminar/internal/model"
	"laminar/internal/rpcclient"
	"laminar/internal/status"
	"laminar/internal/store"
	"laminar/internal/support"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.LoadIteratorConfig()
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

	statusAddr := cfg.HTTPAddr
	startSeqnum, err := resolveStartSeqnum(ctx, cfg, rpc)
	if err != nil {
		log.Fatalf("cannot resolve starting seqnum: %v", err)
	}

	if cfg.IsSupport() {
		if err := runSupport(ctx, cfg, rpc, startSeqnum, statusAddr); err != nil {
			slog.Error("support replica exited", "error", err)
			os.Exit(1)
		}
	} else {
		if err := runLeader(ctx, cfg, rpc, startSeqnum, statusAddr); err != nil {
			slog.Error("leader exited", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("tx-iterator stopped")
}

// resolveStartSeqnum implements the INITIAL_SEQ_NUM bootstrap rule (§6): use
// the configured value if present, otherwise start from the chain node's
// current tip.
func resolveStartSeqnum(ctx context.Context, cfg *config.IteratorConfig, rpc *rpcclient.Client) (model.SeqNum, error) {
	if cfg.HasInitialSeqNum {
		return model.SeqNum(cfg.InitialSeqNum), nil
	}
	latest, err := rpc.LatestDigest(ctx)
	if err != nil {
		return 0, err
	}
	return latest.Seqnum + 1, nil
}

func runLeader(ctx context.Context, cfg *config.IteratorConfig, rpc *rpcclient.Client, startSeqnum model.SeqNum, statusAddr string) error {
	db, err := store.Connect(ctx, cfg.WriterConnConf)
	if err != nil {
		return err
	}
	defer db.Close()

	cell := status.NewCell(startSeqnum, true)

	statusServer := status.NewServer(statusAddr, cell, nil)
	if err := statusServer.Start(); err != nil {
		return err
	}
	defer statusServer.Shutdown(context.Background())

	reconnect := func(ctx context.Context) (leader.Store, error) {
		return store.Connect(ctx, cfg.WriterConnConf)
	}

	return leader.Run(ctx, rpc, db, reconnect, cell, config.FetchDigestsBatch)
}

func runSupport(ctx context.Context, cfg *config.IteratorConfig, rpc *rpcclient.Client, startSeqnum model.SeqNum, statusAddr string) error {
	db, err := store.Connect(ctx, cfg.SupportConnConf)
	if err != nil {
		return err
	}
	defer db.Close()

	cell := status.NewCell(startSeqnum, false)

	statusServer := status.NewServer(statusAddr, cell, nil)
	if err := statusServer.Start(); err != nil {
		return err
	}
	defer statusServer.Shutdown(context.Background())

	engine, err := support.Bootstrap(ctx, rpc, db, cell, config.FetchDigestsBatch, cfg.InvestigateAfter)
	if err != nil {
		return err
	}

	reconnectSupport := func(ctx context.Context) (support.Store, error) {
		return store.Connect(ctx, cfg.SupportConnConf)
	}
	reconnectLeader := func(ctx context.Context) (leader.Store, error) {
		return store.Connect(ctx, cfg.WriterConnConf)
	}

	return support.Run(ctx, engine, reconnectSupport, reconnectLeader)
}
