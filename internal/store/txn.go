package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"github.com/faithleysath/aigmbot/internal/engineerr"
)

// queryer is the subset of *sql.DB / *sql.Conn that Store's CRUD code
// needs; satisfied by both, so callers don't care whether they're
// inside a transaction.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

func withConn(ctx context.Context, q queryer) context.Context {
	return context.WithValue(ctx, txKey{}, q)
}

func connFromContext(ctx context.Context) (queryer, bool) {
	q, ok := ctx.Value(txKey{}).(queryer)
	return q, ok
}

// conn returns whatever connection/transaction is active on ctx, or the
// pool's single logical connection if none.
func (s *Store) conn(ctx context.Context) queryer {
	if q, ok := connFromContext(ctx); ok {
		return q
	}
	return s.db
}

var savepointSeq atomic.Uint64

// Transaction runs fn within a transaction scope. Nesting composes via
// named savepoints: the outermost call begins an immediate write
// transaction on the store's single logical connection (§4.1, §5 — one
// logical connection, writes serialize); each inner call opens and
// releases a savepoint unique to that invocation, and an error in an
// inner scope rolls back only that scope (§4.1 "nesting via named
// savepoints").
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, nested := connFromContext(ctx); nested {
		return s.runSavepoint(ctx, fn)
	}
	return s.runOuterTransaction(ctx, fn)
}

func (s *Store) runOuterTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return &engineerr.StorageIO{Op: "acquire_conn", Err: err}
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return &engineerr.StorageIO{Op: "begin_immediate", Err: err}
	}

	txCtx := withConn(ctx, conn)
	if err := fn(txCtx); err != nil {
		_, _ = conn.ExecContext(ctx, "ROLLBACK")
		return err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		_, _ = conn.ExecContext(ctx, "ROLLBACK")
		return &engineerr.StorageIO{Op: "commit", Err: err}
	}
	return nil
}

func (s *Store) runSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	q, _ := connFromContext(ctx)
	name := fmt.Sprintf("sp_%d", savepointSeq.Add(1))

	if _, err := q.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return &engineerr.StorageIO{Op: "savepoint", Err: err}
	}
	if err := fn(ctx); err != nil {
		_, _ = q.ExecContext(ctx, "ROLLBACK TO "+name)
		_, _ = q.ExecContext(ctx, "RELEASE "+name)
		return err
	}
	if _, err := q.ExecContext(ctx, "RELEASE "+name); err != nil {
		return &engineerr.StorageIO{Op: "release_savepoint", Err: err}
	}
	return nil
}
