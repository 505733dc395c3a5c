package store

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"

	"laminar/internal/model"
)

func mustDigest(t *testing.T, b byte) model.Digest {
	t.Helper()
	var d model.Digest
	for i := range d {
		d[i] = b
	}
	return d
}

func TestInsertDigests_EmptyBatchIsError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	if err := InsertDigests(context.Background(), mock, nil); err == nil {
		t.Error("expected error inserting an empty batch")
	}
}

func TestInsertDigests_ExpandsOnePlaceholderPerDigest(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	digests := []model.Digest{mustDigest(t, 1), mustDigest(t, 2), mustDigest(t, 3)}

	mock.ExpectExec("INSERT INTO digests \\(digest\\) VALUES \\(\\$1\\),\\(\\$2\\),\\(\\$3\\) ON CONFLICT \\(digest\\) DO NOTHING").
		WithArgs(digests[0][:], digests[1][:], digests[2][:]).
		WillReturnResult(pgxmock.NewResult("INSERT", 3))

	if err := InsertDigests(context.Background(), mock, digests); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestHasDigest(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	d := mustDigest(t, 9)

	mock.ExpectQuery("SELECT id FROM digests WHERE digest = \\$1").
		WithArgs(d[:]).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

	ok, err := HasDigest(context.Background(), mock, d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected digest to be reported present")
	}
}

func TestHasDigest_Absent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	d := mustDigest(t, 7)

	mock.ExpectQuery("SELECT id FROM digests WHERE digest = \\$1").
		WithArgs(d[:]).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	ok, err := HasDigest(context.Background(), mock, d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected digest to be reported absent")
	}
}

func TestMarkProcessed_NoOpOnEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	if err := MarkProcessed(context.Background(), mock, nil); err != nil {
		t.Errorf("expected nil error on empty id list, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expected no queries to run, got: %v", err)
	}
}

func TestMarkProcessed_ExpandsOnePlaceholderPerID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("UPDATE digests SET status = \\$1 WHERE id IN \\(\\$2,\\$3,\\$4\\)").
		WithArgs(model.StatusProcessed, int64(7), int64(8), int64(9)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	if err := MarkProcessed(context.Background(), mock, []int64{7, 8, 9}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
