// Package rpcclient wraps the chain node's JSON-RPC read API behind the
// narrow adapter contract the leader, support, and puller loops consume:
// range-fetch, latest digest, digest-at-seqnum, and full body fetch. Every
// call is wrapped in the fixed exponential back-off schedule from
// internal/retry; the adapter never returns empty digest batches.
package rpcclient

import (
	"context"
	"fmt"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"

	"laminar/internal/config"
	"laminar/internal/model"
	"laminar/internal/retry"
)

// Client talks to the chain node's JSON-RPC gateway.
type Client struct {
	rpc     *jrpc2.Client
	backoff retry.Strategy
}

// wireDigest mirrors the node's JSON encoding of a transaction digest plus
// its position in the chain.
type wireDigest struct {
	Seqnum uint64 `json:"seqnum"`
	Digest string `json:"digest"`
}

// New dials the chain node at url over HTTP JSON-RPC.
func New(url string) *Client {
	ch := jhttp.NewChannel(url, nil)
	return &Client{
		rpc:     jrpc2.NewClient(ch, nil),
		backoff: retry.NewStrategy(retry.RPCRetryConfig()),
	}
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	c.rpc.Close()
	return nil
}

// FetchDigests requests digests for the half-open range
// [fromSeqnum, fromSeqnum+batch). It never returns an empty list: when the
// node reports no digests in range yet, it idles and retries until at least
// one is available. The returned highest seqnum is that of the list's last
// digest, and callers may rely on the list being seqnum-ascending and dense
// over the requested range — a sparse or reordered response is a protocol
// violation and is reported as an error rather than silently accepted.
func (c *Client) FetchDigests(ctx context.Context, fromSeqnum model.SeqNum, batch int) (model.SeqNum, []model.SeqnumDigest, error) {
	untilSeqnum := uint64(fromSeqnum) + uint64(batch)

	for {
		var wire []wireDigest
		op := func() error {
			return c.rpc.CallResult(ctx, "sui_getTransactionsInRange", []any{
				uint64(fromSeqnum), untilSeqnum,
			}, &wire)
		}
		if err := c.backoff.Execute(ctx, op); err != nil {
			return 0, nil, fmt.Errorf("fetch_digests(%d,%d): %w", fromSeqnum, batch, err)
		}

		if len(wire) == 0 {
			select {
			case <-ctx.Done():
				return 0, nil, ctx.Err()
			case <-time.After(config.SleepOnNoNewTxs):
			}
			continue
		}

		pairs, err := toSeqnumDigests(fromSeqnum, uint64(batch), wire)
		if err != nil {
			return 0, nil, err
		}
		return pairs[len(pairs)-1].Seqnum, pairs, nil
	}
}

// toSeqnumDigests validates the dense-and-ascending protocol invariant and
// converts the wire shape into model.SeqnumDigest pairs.
func toSeqnumDigests(fromSeqnum model.SeqNum, batch uint64, wire []wireDigest) ([]model.SeqnumDigest, error) {
	pairs := make([]model.SeqnumDigest, 0, len(wire))
	want := uint64(fromSeqnum)
	for _, w := range wire {
		if w.Seqnum != want {
			return nil, fmt.Errorf("protocol violation: expected dense ascending seqnum %d, got %d", want, w.Seqnum)
		}
		if w.Seqnum >= uint64(fromSeqnum)+batch {
			return nil, fmt.Errorf("protocol violation: seqnum %d outside requested range [%d,%d)", w.Seqnum, fromSeqnum, uint64(fromSeqnum)+batch)
		}
		d, err := model.DigestFromHex(w.Digest)
		if err != nil {
			return nil, fmt.Errorf("invalid digest at seqnum %d: %w", w.Seqnum, err)
		}
		pairs = append(pairs, model.SeqnumDigest{Seqnum: model.SeqNum(w.Seqnum), Digest: d})
		want++
	}
	return pairs, nil
}

// LatestDigest returns the most recently observed transaction's digest and
// seqnum.
func (c *Client) LatestDigest(ctx context.Context) (model.SeqnumDigest, error) {
	var wire []wireDigest
	op := func() error {
		return c.rpc.CallResult(ctx, "sui_getRecentTransactions", []any{1}, &wire)
	}
	if err := c.backoff.Execute(ctx, op); err != nil {
		return model.SeqnumDigest{}, fmt.Errorf("latest_digest: %w", err)
	}
	if len(wire) == 0 {
		return model.SeqnumDigest{}, fmt.Errorf("latest_digest: node reports no transactions yet")
	}
	d, err := model.DigestFromHex(wire[0].Digest)
	if err != nil {
		return model.SeqnumDigest{}, fmt.Errorf("latest_digest: %w", err)
	}
	return model.SeqnumDigest{Seqnum: model.SeqNum(wire[0].Seqnum), Digest: d}, nil
}

// DigestAt returns the digest at the given seqnum, or ok=false if the node
// has no transaction there yet.
func (c *Client) DigestAt(ctx context.Context, seqnum model.SeqNum) (model.Digest, bool, error) {
	var wire []wireDigest
	op := func() error {
		return c.rpc.CallResult(ctx, "sui_getTransactionsInRange", []any{
			uint64(seqnum), uint64(seqnum) + 1,
		}, &wire)
	}
	if err := c.backoff.Execute(ctx, op); err != nil {
		return model.Digest{}, false, fmt.Errorf("digest_at(%d): %w", seqnum, err)
	}
	if len(wire) == 0 {
		return model.Digest{}, false, nil
	}
	d, err := model.DigestFromHex(wire[0].Digest)
	if err != nil {
		return model.Digest{}, false, fmt.Errorf("digest_at(%d): %w", seqnum, err)
	}
	return d, true, nil
}

// FetchBody fetches and decodes the full transaction response for digest.
func (c *Client) FetchBody(ctx context.Context, digest model.Digest) (model.TxResponse, error) {
	var body model.TxResponse
	op := func() error {
		return c.rpc.CallResult(ctx, "sui_getTransaction", []any{digest.String()}, &body)
	}
	if err := c.backoff.Execute(ctx, op); err != nil {
		return model.TxResponse{}, fmt.Errorf("fetch_body(%s): %w", digest, err)
	}
	return body, nil
}
