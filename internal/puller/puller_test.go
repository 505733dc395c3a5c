package puller

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"

	"laminar/internal/filter"
	"laminar/internal/model"
)

type fakeRPC struct {
	bodies map[model.Digest]model.TxResponse
	fail   map[model.Digest]bool
}

func (f *fakeRPC) FetchBody(ctx context.Context, digest model.Digest) (model.TxResponse, error) {
	if f.fail[digest] {
		return model.TxResponse{}, errors.New("rpc error")
	}
	body, ok := f.bodies[digest]
	if !ok {
		return model.TxResponse{}, errors.New("no fake body configured")
	}
	return body, nil
}

func digestWithByte(b byte) model.Digest {
	var d model.Digest
	d[0] = b
	return d
}

func successBody(sender []byte) model.TxResponse {
	return model.TxResponse{Status: model.ExecutionSuccess, Sender: sender}
}

func TestRunOnce_EmptyQueueReturnsZeroWithoutCommitting(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, digest FROM digests").
		WillReturnRows(pgxmock.NewRows([]string{"id", "digest"}))
	mock.ExpectRollback()

	w := New(&fakeRPC{}, mock, filter.New(100, 0.01), 10)
	n, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("claimed = %d, want 0", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRunOnce_PersistsOnlyMatchingBodiesAndMarksAllProcessed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	d1 := digestWithByte(1) // of interest: sender matches filter
	d2 := digestWithByte(2) // fetched fine, not of interest
	d3 := digestWithByte(3) // fetch_body fails, dropped, not marked processed

	f := filter.New(100, 0.01)
	f.Add(d1[:])

	rpc := &fakeRPC{
		bodies: map[model.Digest]model.TxResponse{
			d1: successBody(d1[:]),
			d2: successBody([]byte("irrelevant-sender")),
		},
		fail: map[model.Digest]bool{d3: true},
	}

	// RunOnce issues the body insert and the status update concurrently, so
	// the two statements may reach the mock in either order.
	mock.MatchExpectationsInOrder(false)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, digest FROM digests").
		WillReturnRows(pgxmock.NewRows([]string{"id", "digest"}).
			AddRow(int64(1), d1[:]).
			AddRow(int64(2), d2[:]).
			AddRow(int64(3), d3[:]))
	mock.ExpectExec("INSERT INTO txs").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE digests SET status").WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectCommit()

	w := New(rpc, mock, f, 10)
	n, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("claimed = %d, want 3", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRunOnce_InsertFailureRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	d1 := digestWithByte(1)
	f := filter.New(100, 0.01)
	f.Add(d1[:])

	rpc := &fakeRPC{bodies: map[model.Digest]model.TxResponse{d1: successBody(d1[:])}}

	// The body insert and the status update run concurrently; see above.
	mock.MatchExpectationsInOrder(false)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, digest FROM digests").
		WillReturnRows(pgxmock.NewRows([]string{"id", "digest"}).AddRow(int64(1), d1[:]))
	mock.ExpectExec("INSERT INTO txs").WillReturnError(errors.New("insert failed"))
	mock.ExpectExec("UPDATE digests SET status").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectRollback()

	w := New(rpc, mock, f, 10)
	if _, err := w.RunOnce(context.Background()); err == nil {
		t.Fatal("expected an error from the failed insert")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
