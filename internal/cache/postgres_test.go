package cache

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubRow struct {
	placeIDs []string
	err      error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*[]string) = r.placeIDs
	return nil
}

type stubQuerier struct {
	row     stubRow
	execTag pgconn.CommandTag
	execErr error
	lastSQL string
}

func (q *stubQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	q.lastSQL = sql
	return q.row
}

func (q *stubQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.lastSQL = sql
	return q.execTag, q.execErr
}

func TestPostgresStoreGetMiss(t *testing.T) {
	store := &PostgresStore{pool: &stubQuerier{row: stubRow{err: pgx.ErrNoRows}}}

	got, err := store.Get(context.Background(), "nearby:1:2:1500:")
	if err != nil {
		t.Fatalf("expected miss to be nil error, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil ids on miss, got %v", got)
	}
}

func TestPostgresStoreGetHit(t *testing.T) {
	store := &PostgresStore{pool: &stubQuerier{row: stubRow{placeIDs: []string{"a", "b"}}}}

	got, err := store.Get(context.Background(), "nearby:1:2:1500:")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "a" {
		t.Fatalf("unexpected ids: %v", got)
	}
}

func TestPostgresStoreSweepCount(t *testing.T) {
	q := &stubQuerier{execTag: pgconn.NewCommandTag("DELETE 3")}
	store := &PostgresStore{pool: q}

	deleted, err := store.Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("expected 3 deleted, got %d", deleted)
	}
}

func TestPostgresStoreDeleteReportsExistence(t *testing.T) {
	store := &PostgresStore{pool: &stubQuerier{execTag: pgconn.NewCommandTag("DELETE 0")}}
	ok, err := store.Delete(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected missing entry to report false")
	}
}
