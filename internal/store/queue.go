package store

import (
	"context"
	"fmt"
	"strings"

	"laminar/internal/model"
)

// ClaimUnprocessed reserves up to limit rows with status = Unprocessed,
// skipping rows already locked by concurrent claimers. Must be called on a
// Querier backed by an open transaction: the lock is released when that
// transaction ends, at which point an uncommitted status change (or none)
// makes the row re-eligible — this is what gives the queue at-least-once
// delivery.
func ClaimUnprocessed(ctx context.Context, tx Querier, limit int) ([]model.DigestEntry, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, digest
		FROM digests
		WHERE status = $1
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, model.StatusUnprocessed, limit)
	if err != nil {
		return nil, fmt.Errorf("cannot claim unprocessed digests: %w", err)
	}
	defer rows.Close()

	var claims []model.DigestEntry
	for rows.Next() {
		var id int64
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan claimed digest: %w", err)
		}
		digest, err := model.DigestFromSlice(raw)
		if err != nil {
			return nil, err
		}
		claims = append(claims, model.DigestEntry{ID: id, Digest: digest, Status: model.StatusUnprocessed})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating claimed digests: %w", err)
	}
	return claims, nil
}

// MarkProcessed sets status = Processed for every id. Placeholders are
// expanded to the cardinality of ids (an `IN (?)` with a slice binds only
// the first element on many drivers, including pgx) — see DESIGN NOTES.
func MarkProcessed(ctx context.Context, tx Querier, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("UPDATE digests SET status = $1 WHERE id IN (")
	args := make([]any, 0, len(ids)+1)
	args = append(args, model.StatusProcessed)
	for i, id := range ids {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "$%d", i+2)
		args = append(args, id)
	}
	sb.WriteString(")")

	if _, err := tx.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("cannot mark digests processed: %w", err)
	}
	return nil
}

// InsertBodies persists fetched, classified transaction bodies.
func InsertBodies(ctx context.Context, tx Querier, bodies []model.TxBody) error {
	if len(bodies) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO txs ("order", digest, version, data) VALUES `)
	args := make([]any, 0, len(bodies)*4)
	for i, b := range bodies {
		if i > 0 {
			sb.WriteByte(',')
		}
		base := i * 4
		fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d)", base+1, base+2, base+3, base+4)
		args = append(args, b.Order, b.Digest[:], b.Version, b.Data)
	}

	if _, err := tx.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("cannot insert txs: %w", err)
	}
	return nil
}
