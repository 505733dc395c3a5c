// Package support implements the support replica's reconciliation engine:
// it observes the RPC digest stream and the store's digest stream starting
// from the same seqnum, reconciles per-digest discrepancies, ages unresolved
// ones, and promotes itself to leader if the current leader falls behind.
package support

import (
	"container/list"
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"laminar/internal/leader"
	"laminar/internal/metrics"
	"laminar/internal/model"
	"laminar/internal/status"
	"laminar/internal/store"
)

// RPC is the subset of the RPC adapter the support loop needs.
type RPC interface {
	FetchDigests(ctx context.Context, fromSeqnum model.SeqNum, batch int) (model.SeqNum, []model.SeqnumDigest, error)
	LatestDigest(ctx context.Context) (model.SeqnumDigest, error)
	DigestAt(ctx context.Context, seqnum model.SeqNum) (model.Digest, bool, error)
}

// Store is the subset of the store the support loop needs against its
// (read-only) support connection.
type Store interface {
	Pool() store.Querier
}

// pendingEntry is one FIFO entry: an RPC-first observation awaiting
// confirmation in the store.
type pendingEntry struct {
	observedAt time.Time
	digest     model.Digest
}

// maxPendingMultiplier bounds the reconciliation state's growth: if pending
// exceeds this multiple of the preload size, continued unresolved growth is
// treated as an invariant violation rather than risking unbounded memory.
const maxPendingMultiplier = 10

// Engine holds the reconciliation state across iterations of the support
// loop.
type Engine struct {
	rpc   RPC
	db    Store
	cell  *status.Cell
	batch int

	investigateAfter time.Duration
	maxPending       int

	latestDBDigest model.Digest
	dbOnly         map[model.Digest]struct{}
	rpcOnly        map[model.Digest]model.SeqNum
	pending        *list.List // of pendingEntry
}

// Reconnector rebuilds the support's read connection, used after a select
// failure.
type Reconnector func(ctx context.Context) (Store, error)

// promotion is the drain step's verdict.
type promotion struct {
	shouldPromote bool
	startFrom     model.SeqNum
}

// Bootstrap resolves the initial reconciliation state per §4.4's bootstrap
// procedure.
func Bootstrap(ctx context.Context, rpc RPC, db Store, cell *status.Cell, batch int, investigateAfter time.Duration) (*Engine, error) {
	fetchFromSeqnum := cell.NextFetchFromSeqnum()

	fetchFromDigest, ok, err := rpc.DigestAt(ctx, fetchFromSeqnum)
	if err != nil {
		return nil, fmt.Errorf("support bootstrap: digest_at(%d): %w", fetchFromSeqnum, err)
	}
	if !ok {
		latest, err := rpc.LatestDigest(ctx)
		if err != nil {
			return nil, fmt.Errorf("support bootstrap: latest_digest: %w", err)
		}
		fetchFromDigest = latest.Digest
	}

	dbOnlyDigests, err := store.SelectSince(ctx, db.Pool(), fetchFromDigest, store.Inclusive, batch*4)
	if err != nil {
		return nil, fmt.Errorf("support bootstrap: select_since(%s, Inclusive): %w", fetchFromDigest, err)
	}

	latestDBDigest := fetchFromDigest
	if len(dbOnlyDigests) > 0 {
		latestDBDigest = dbOnlyDigests[len(dbOnlyDigests)-1]
	}

	dbOnly := make(map[model.Digest]struct{}, batch*4)
	for _, d := range dbOnlyDigests {
		dbOnly[d] = struct{}{}
	}

	return &Engine{
		rpc:              rpc,
		db:               db,
		cell:             cell,
		batch:            batch,
		investigateAfter: investigateAfter,
		maxPending:       batch * 4 * maxPendingMultiplier,
		latestDBDigest:   latestDBDigest,
		dbOnly:           dbOnly,
		rpcOnly:          make(map[model.Digest]model.SeqNum, batch*4),
		pending:          list.New(),
	}, nil
}

// Run executes the support loop until promotion, then hands off to the
// leader loop, returning only when that loop terminates (or the engine
// hits an unrecoverable error before getting there).
func Run(ctx context.Context, e *Engine, reconnect Reconnector, leaderReconnect leader.Reconnector) error {
	fetchFromSeqnum := e.cell.NextFetchFromSeqnum()

	for {
		var selectErr, rpcErr error
		var newDB []model.Digest
		var highestRPCSeq model.SeqNum
		var newRPC []model.SeqnumDigest

		var g errgroup.Group
		g.Go(func() error {
			newDB, selectErr = store.SelectSince(ctx, e.db.Pool(), e.latestDBDigest, store.Exclusive, e.batch*4)
			return nil
		})
		g.Go(func() error {
			highestRPCSeq, newRPC, rpcErr = e.rpc.FetchDigests(ctx, fetchFromSeqnum, e.batch)
			return nil
		})
		_ = g.Wait()

		if selectErr != nil {
			slog.Warn("support: select_since failed, reviving db connection", "error", selectErr)
			newConn, err := reconnect(ctx)
			if err != nil {
				return fmt.Errorf("support: cannot revive db connection: %w", err)
			}
			e.db = newConn

			newDB, selectErr = store.SelectSince(ctx, e.db.Pool(), e.latestDBDigest, store.Exclusive, e.batch*4)
			if selectErr != nil {
				return fmt.Errorf("support: retrying select_since after reconnect failed: %w", selectErr)
			}
		}

		if rpcErr != nil {
			return fmt.Errorf("support: fetch_digests from seq# %d: %w", fetchFromSeqnum, rpcErr)
		}

		if len(newDB) > 0 {
			e.latestDBDigest = newDB[len(newDB)-1]
			for _, d := range newDB {
				e.dbOnly[d] = struct{}{}
			}
		}

		latestSeqnum := highestRPCSeq + 1
		for _, pair := range newRPC {
			if _, ok := e.dbOnly[pair.Digest]; ok {
				delete(e.dbOnly, pair.Digest)
			} else {
				e.pending.PushBack(pendingEntry{observedAt: nowFunc(), digest: pair.Digest})
				e.rpcOnly[pair.Digest] = pair.Seqnum
			}
		}

		if e.pending.Len() > e.maxPending {
			return fmt.Errorf("support: invariant violation: pending set exceeds cap of %d entries", e.maxPending)
		}
		metrics.PendingSetSize.Set(float64(e.pending.Len()))
		metrics.RPCOnlySetSize.Set(float64(len(e.rpcOnly)))
		metrics.DBOnlySetSize.Set(float64(len(e.dbOnly)))

		promo, err := e.drain(ctx)
		if err != nil {
			return fmt.Errorf("support: drain step: %w", err)
		}

		if promo.shouldPromote {
			metrics.Promotions.Inc()
			return e.promote(ctx, promo.startFrom, leaderReconnect)
		}

		// Fallback per §4.4 step 7: highest_rpc_seq + 1, i.e. latestSeqnum.
		oldestUnconfirmed := latestSeqnum
		if front := e.pending.Front(); front != nil {
			if seq, ok := e.rpcOnly[front.Value.(pendingEntry).digest]; ok {
				oldestUnconfirmed = seq
			}
		}
		fetchFromSeqnum = oldestUnconfirmed
		e.cell.SetNextFetchFromSeqnum(fetchFromSeqnum)
	}
}

// nowFunc is indirected so tests can control aging deterministically.
var nowFunc = time.Now

// drain implements the §4.5 drain step.
func (e *Engine) drain(ctx context.Context) (promotion, error) {
	for {
		front := e.pending.Front()
		if front == nil {
			return promotion{}, nil
		}
		entry := front.Value.(pendingEntry)

		seq, stillUnresolved := e.rpcOnly[entry.digest]
		if !stillUnresolved {
			e.pending.Remove(front)
			continue
		}

		if nowFunc().Sub(entry.observedAt) <= e.investigateAfter {
			return promotion{}, nil
		}

		has, err := store.HasDigest(ctx, e.db.Pool(), entry.digest)
		if err != nil {
			return promotion{}, fmt.Errorf("has_digest(%s): %w", entry.digest, err)
		}
		if has {
			e.pending.Remove(front)
			continue
		}

		return promotion{shouldPromote: true, startFrom: seq}, nil
	}
}

// promote executes the §4.5 promotion sequence and hands off to the leader
// loop.
func (e *Engine) promote(ctx context.Context, startFrom model.SeqNum, leaderReconnect leader.Reconnector) error {
	e.cell.SetNextFetchFromSeqnum(startFrom)
	e.cell.SetIsLeader(true)

	// db_only is no longer useful past this point.
	e.dbOnly = nil

	leaderDB, err := leaderReconnect(ctx)
	if err != nil {
		return fmt.Errorf("support promotion: cannot open leader-capable db connection: %w", err)
	}

	var toInsert []model.Digest
	var lastInsertedSeqnum model.SeqNum
	for el := e.pending.Front(); el != nil; el = el.Next() {
		entry := el.Value.(pendingEntry)
		if seq, ok := e.rpcOnly[entry.digest]; ok {
			toInsert = append(toInsert, entry.digest)
			lastInsertedSeqnum = seq
		}
	}

	if len(toInsert) > 0 {
		if err := store.InsertDigests(ctx, leaderDB.Pool(), toInsert); err != nil {
			return fmt.Errorf("support promotion: insert_digests: %w", err)
		}
		e.cell.SetNextFetchFromSeqnum(lastInsertedSeqnum + 1)
	}

	slog.Info("support promoted to leader", "start_from", startFrom, "inserted", len(toInsert))

	return leader.Run(ctx, e.rpc, leaderDB, leaderReconnect, e.cell, e.batch)
}
