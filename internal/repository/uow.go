package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bakate/aeroreserve/internal/domain"
)

// TransactionManager runs a function within a database transaction. Calls
// are re-entrant: a nested Transaction joins the transaction already open
// on the context instead of starting a new one, so the whole call tree
// commits or rolls back as a unit.
type TransactionManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type txContextKey struct{}

// txScope is what the context carries while a transaction is open: the
// transaction itself plus hooks to run once the outermost commit lands.
type txScope struct {
	tx    pgx.Tx
	hooks []func()
}

// querier is the query surface shared by pgxpool.Pool and pgx.Tx, letting
// repository methods run against whichever is ambient.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgxTransactionManager implements TransactionManager on a pgx pool
type PgxTransactionManager struct {
	pool *pgxpool.Pool
}

// NewPgxTransactionManager creates a new PgxTransactionManager
func NewPgxTransactionManager(pool *pgxpool.Pool) *PgxTransactionManager {
	return &PgxTransactionManager{pool: pool}
}

// Transaction runs fn inside a transaction, joining the ambient one if the
// context already carries it.
func (m *PgxTransactionManager) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := scopeFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return mapPgError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	scope := &txScope{tx: tx}
	if err := fn(context.WithValue(ctx, txContextKey{}, scope)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPgError("commit transaction", err)
	}

	scope.runHooks()
	return nil
}

var _ TransactionManager = (*PgxTransactionManager)(nil)

// OnCommit defers fn until the outermost transaction on ctx has
// committed; a joined scope's hooks never run when the outer commit
// fails. Without an ambient transaction fn runs immediately.
func OnCommit(ctx context.Context, fn func()) {
	if scope, ok := scopeFromContext(ctx); ok {
		scope.hooks = append(scope.hooks, fn)
		return
	}
	fn()
}

func (s *txScope) runHooks() {
	for _, hook := range s.hooks {
		hook()
	}
	s.hooks = nil
}

// scopeFromContext extracts the ambient transaction scope, if any
func scopeFromContext(ctx context.Context) (*txScope, bool) {
	scope, ok := ctx.Value(txContextKey{}).(*txScope)
	return scope, ok
}

// txFromContext extracts the ambient transaction, if any
func txFromContext(ctx context.Context) (pgx.Tx, bool) {
	if scope, ok := scopeFromContext(ctx); ok {
		return scope.tx, true
	}
	return nil, false
}

// queryerFrom returns the ambient transaction when one is open, otherwise
// the pool itself.
func queryerFrom(ctx context.Context, pool *pgxpool.Pool) querier {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return pool
}

// mapPgError classifies a driver error into the persistence taxonomy
func mapPgError(op string, err error) error {
	if err == nil {
		return nil
	}

	kind := domain.ErrPersistenceFailure

	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err):
		kind = domain.ErrPersistenceTimeout
	case errors.As(err, &pgErr):
		switch pgErr.Code {
		case "23505": // unique_violation
			kind = domain.ErrDuplicateEntity
		case "23503": // foreign_key_violation
			kind = domain.ErrReferenceNotFound
		case "23502", "23514": // not_null_violation, check_violation
			kind = domain.ErrDataIntegrity
		}
	}

	return &domain.PersistenceError{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// nullStringPtr converts string to *string, returning nil for empty strings
func nullStringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
