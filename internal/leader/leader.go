// Package leader implements the writer side of the digest log: it polls the
// chain node for new digests and persists them in the order the node
// returned them, while the previous batch's insert overlaps with the next
// batch's fetch.
package leader

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"laminar/internal/metrics"
	"laminar/internal/model"
	"laminar/internal/status"
	"laminar/internal/store"
)

// RPC is the subset of the RPC adapter the leader loop needs.
type RPC interface {
	FetchDigests(ctx context.Context, fromSeqnum model.SeqNum, batch int) (model.SeqNum, []model.SeqnumDigest, error)
}

// Store is the subset of the digest store the leader loop needs. When an
// insert fails, a Reconnector rebuilds the connection from scratch.
type Store interface {
	Pool() store.Querier
}

// Reconnector rebuilds a leader-capable store connection, used to recover
// from a failed insert per §4.3 step 2.
type Reconnector func(ctx context.Context) (Store, error)

// Run executes the leader loop. It returns only on an unrecoverable error:
// an RPC failure after retries, or two consecutive insert failures.
func Run(ctx context.Context, rpc RPC, db Store, reconnect Reconnector, cell *status.Cell, batch int) error {
	fetchFromSeqnum := cell.NextFetchFromSeqnum()

	// Prime the loop: the first fetch happens synchronously since there is
	// no previous batch to overlap it with.
	highest, digests, err := rpc.FetchDigests(ctx, fetchFromSeqnum, batch)
	if err != nil {
		return fmt.Errorf("leader: initial fetch_digests from seq# %d: %w", fetchFromSeqnum, err)
	}
	fetchFromSeqnum = highest + 1

	for {
		if len(digests) == 0 {
			return fmt.Errorf("leader: invariant violation: digests to insert is empty")
		}

		toInsert := digests
		var insertErr, rpcErr error
		var nextHighest model.SeqNum
		var nextDigests []model.SeqnumDigest

		var g errgroup.Group
		g.Go(func() error {
			insertErr = insertDigests(ctx, db.Pool(), toInsert)
			return nil
		})
		g.Go(func() error {
			nextHighest, nextDigests, rpcErr = rpc.FetchDigests(ctx, fetchFromSeqnum, batch)
			return nil
		})
		_ = g.Wait() // both goroutines always return nil; real failures are in insertErr/rpcErr

		if insertErr != nil {
			slog.Warn("leader: insert failed, reviving db connection", "error", insertErr)

			newDB, err := reconnect(ctx)
			if err != nil {
				return fmt.Errorf("leader: cannot revive db connection: %w", err)
			}
			db = newDB

			if err := insertDigests(ctx, db.Pool(), toInsert); err != nil {
				return fmt.Errorf("leader: retrying insert after reconnect failed: %w", err)
			}
		}

		if rpcErr != nil {
			return fmt.Errorf("leader: cannot fetch next batch of digests from seq# %d: %w", fetchFromSeqnum, rpcErr)
		}

		digests = nextDigests
		fetchFromSeqnum = nextHighest + 1

		cell.SetNextFetchFromSeqnum(fetchFromSeqnum)
		metrics.DigestsInserted.Add(float64(len(toInsert)))
	}
}

func insertDigests(ctx context.Context, q store.Querier, pairs []model.SeqnumDigest) error {
	digests := make([]model.Digest, len(pairs))
	for i, p := range pairs {
		digests[i] = p.Digest
	}
	return store.InsertDigests(ctx, q, digests)
}
