package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"laminar/internal/model"
)

// Clusivity controls whether SelectSince includes the pivot digest's row.
type Clusivity int

const (
	Exclusive Clusivity = iota
	Inclusive
)

// InsertDigests idempotently batch-inserts digests in order: duplicate
// digest values are silently skipped, preserving the first insertion's id.
func InsertDigests(ctx context.Context, q Querier, digests []model.Digest) error {
	if len(digests) == 0 {
		return fmt.Errorf("attempted to insert 0 digests")
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO digests (digest) VALUES ")
	args := make([]any, len(digests))
	for i, d := range digests {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "($%d)", i+1)
		args[i] = d[:]
	}
	sb.WriteString(" ON CONFLICT (digest) DO NOTHING")

	if _, err := q.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("cannot insert digests: %w", err)
	}
	return nil
}

// HasDigest reports whether digest is present in the digest log.
func HasDigest(ctx context.Context, q Querier, digest model.Digest) (bool, error) {
	var id int64
	err := q.QueryRow(ctx, "SELECT id FROM digests WHERE digest = $1", digest[:]).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("cannot check digest presence: %w", err)
	}
	return true, nil
}

// SelectSince returns digests whose id is greater than (Exclusive) or
// greater-or-equal (Inclusive) the id of pivot, ordered by id ascending,
// capped at limit. If pivot is absent the result is empty.
func SelectSince(ctx context.Context, q Querier, pivot model.Digest, clusivity Clusivity, limit int) ([]model.Digest, error) {
	op := ">"
	if clusivity == Inclusive {
		op = ">="
	}

	query := fmt.Sprintf(`
		SELECT digest
		FROM digests
		WHERE id %s (SELECT id FROM digests WHERE digest = $1)
		ORDER BY id ASC
		LIMIT $2`, op)

	rows, err := q.Query(ctx, query, pivot[:], limit)
	if err != nil {
		return nil, fmt.Errorf("cannot select digests since %s: %w", pivot, err)
	}
	defer rows.Close()

	var out []model.Digest
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan digest: %w", err)
		}
		d, err := model.DigestFromSlice(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating digests: %w", err)
	}
	return out, nil
}
