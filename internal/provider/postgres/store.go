package postgres

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dwsmith1983/oacload/internal/provider"
)

var _ provider.Store = (*Store)(nil)

// Store is a Postgres-backed capacity table.
type Store struct {
	pool   *pgxpool.Pool
	table  string
	ident  pgx.Identifier
	lockID int64
}

// New creates a new Postgres Store and verifies the connection. An empty
// table name selects DefaultTable.
func New(ctx context.Context, dsn, table string) (*Store, error) {
	if table == "" {
		table = DefaultTable
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, classify("connect", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, classify("ping", err)
	}
	return &Store{
		pool:   pool,
		table:  table,
		ident:  tableIdentifier(table),
		lockID: advisoryLockID(table),
	}, nil
}

// Table returns the target table name.
func (s *Store) Table() string { return s.table }

// Migrate creates the target table and its key index if absent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL(s.ident)); err != nil {
		return classify("migrate", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// advisoryLockID maps a table name onto the key space of
// pg_advisory_xact_lock so loaders of the same table serialise.
func advisoryLockID(table string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("oacload:" + table))
	return int64(h.Sum64())
}

// classify wraps err in a provider.StoreError based on its Postgres code.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *provider.StoreError
	if errors.As(err, &se) {
		return err
	}
	kind := provider.KindConnection
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "23"), strings.HasPrefix(pgErr.Code, "22"):
			kind = provider.KindConstraint
		case strings.HasPrefix(pgErr.Code, "42"):
			kind = provider.KindSchema
		}
	}
	return &provider.StoreError{Kind: kind, Op: op, Err: err}
}

func schemaError(op, format string, args ...interface{}) error {
	return &provider.StoreError{Kind: provider.KindSchema, Op: op, Err: fmt.Errorf(format, args...)}
}
