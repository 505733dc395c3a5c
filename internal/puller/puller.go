// Package puller implements the puller worker: a loop that claims unprocessed
// digests from the store, fetches and classifies their bodies, and persists
// the ones of interest, one store transaction per iteration.
package puller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"laminar/internal/codec"
	"laminar/internal/filter"
	"laminar/internal/metrics"
	"laminar/internal/model"
	"laminar/internal/store"
)

// RPC is the subset of the RPC adapter the puller needs.
type RPC interface {
	FetchBody(ctx context.Context, digest model.Digest) (model.TxResponse, error)
}

// Store opens the per-iteration transaction.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Worker runs the claim-fetch-classify-commit cycle against batch-sized
// claims.
type Worker struct {
	rpc    RPC
	db     Store
	filter *filter.Filter
	batch  int
}

// New builds a puller worker.
func New(rpc RPC, db Store, filt *filter.Filter, batch int) *Worker {
	return &Worker{rpc: rpc, db: db, filter: filt, batch: batch}
}

// RunOnce executes a single §4.6 iteration: claim, fetch, classify, persist,
// commit. Returns the number of digests claimed, so the caller can back off
// when the queue runs dry.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	tx, err := w.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("puller: begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	claims, err := store.ClaimUnprocessed(ctx, tx, w.batch)
	if err != nil {
		return 0, fmt.Errorf("puller: claim_unprocessed: %w", err)
	}
	if len(claims) == 0 {
		return 0, nil
	}

	bodies := w.fetchBodies(ctx, claims)

	var idsToMarkProcessed []int64
	var txsToInsert []model.TxBody
	for i, claim := range claims {
		body, ok := bodies[i]
		if !ok {
			// fetch_body failed: drop silently, the row stays claimable.
			continue
		}

		idsToMarkProcessed = append(idsToMarkProcessed, claim.ID)

		if !w.filter.IsOfInterest(body) {
			continue
		}

		version, data, err := codec.Encode(body)
		if err != nil {
			return 0, fmt.Errorf("puller: encode body for digest %s: %w", claim.Digest, err)
		}
		txsToInsert = append(txsToInsert, model.TxBody{
			Order:   claim.ID,
			Digest:  claim.Digest,
			Version: version,
			Data:    data,
		})
	}

	var insertErr, markErr error
	var g errgroup.Group
	g.Go(func() error {
		insertErr = store.InsertBodies(ctx, tx, txsToInsert)
		return nil
	})
	g.Go(func() error {
		markErr = store.MarkProcessed(ctx, tx, idsToMarkProcessed)
		return nil
	})
	_ = g.Wait()

	if insertErr != nil {
		return 0, fmt.Errorf("puller: insert_bodies: %w", insertErr)
	}
	if markErr != nil {
		return 0, fmt.Errorf("puller: mark_processed: %w", markErr)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("puller: commit: %w", err)
	}

	metrics.DigestsProcessed.Add(float64(len(idsToMarkProcessed)))
	metrics.BodiesPersisted.WithLabelValues("true").Add(float64(len(txsToInsert)))
	metrics.BodiesPersisted.WithLabelValues("false").Add(float64(len(idsToMarkProcessed) - len(txsToInsert)))

	slog.Debug("puller iteration complete",
		"claimed", len(claims), "processed", len(idsToMarkProcessed), "persisted", len(txsToInsert))

	return len(claims), nil
}

// fetchBodies fans out fetch_body concurrently over claims, returning a
// sparse map from claim index to its body: indices whose fetch failed are
// simply absent, per §4.6 step 2.
func (w *Worker) fetchBodies(ctx context.Context, claims []model.DigestEntry) map[int]model.TxResponse {
	results := make([]model.TxResponse, len(claims))
	ok := make([]bool, len(claims))

	var g errgroup.Group
	for i, claim := range claims {
		i, claim := i, claim
		g.Go(func() error {
			body, err := w.rpc.FetchBody(ctx, claim.Digest)
			if err != nil {
				slog.Warn("puller: fetch_body failed, leaving digest claimable", "digest", claim.Digest, "error", err)
				return nil
			}
			results[i] = body
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()

	bodies := make(map[int]model.TxResponse, len(claims))
	for i := range claims {
		if ok[i] {
			bodies[i] = results[i]
		}
	}
	return bodies
}
