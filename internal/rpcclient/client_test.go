package rpcclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"laminar/internal/model"
)

type rpcRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	ID     json.RawMessage   `json:"id"`
}

// newFakeNode starts an httptest server that answers exactly one
// sui_getTransactionsInRange call per entry in responses, in order, encoding
// each as a JSON-RPC 2.0 response.
func newFakeNode(t *testing.T, responses [][]wireDigest) *httptest.Server {
	t.Helper()
	var call int
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if call >= len(responses) {
			t.Fatalf("unexpected extra call #%d", call)
		}
		result, err := json.Marshal(responses[call])
		if err != nil {
			t.Fatalf("marshal response: %v", err)
		}
		call++

		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%s}`, req.ID, result)
	}))
}

func TestFetchDigests_IdlesUntilNonEmpty(t *testing.T) {
	d1, _ := model.DigestFromHex(fmt.Sprintf("%064d", 1))
	d2, _ := model.DigestFromHex(fmt.Sprintf("%064d", 2))

	srv := newFakeNode(t, [][]wireDigest{
		{}, // empty range: adapter must idle and retry
		{
			{Seqnum: 10, Digest: d1.String()},
			{Seqnum: 11, Digest: d2.String()},
		},
	})
	defer srv.Close()

	c := New(srv.URL)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	highest, pairs, err := c.FetchDigests(ctx, 10, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if highest != 11 {
		t.Errorf("highest = %d, want 11", highest)
	}
	if len(pairs) != 2 || pairs[0].Seqnum != 10 || pairs[1].Seqnum != 11 {
		t.Errorf("unexpected pairs: %+v", pairs)
	}
}

func TestFetchDigests_RejectsNonDenseResponse(t *testing.T) {
	d1, _ := model.DigestFromHex(fmt.Sprintf("%064d", 1))

	srv := newFakeNode(t, [][]wireDigest{
		{{Seqnum: 20, Digest: d1.String()}}, // gap: requested from 10, got 20
	})
	defer srv.Close()

	c := New(srv.URL)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, _, err := c.FetchDigests(ctx, 10, 100); err == nil {
		t.Error("expected protocol-violation error on non-dense response")
	}
}
