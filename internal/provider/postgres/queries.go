package postgres

import (
	"context"
	"fmt"

	"github.com/dwsmith1983/oacload/pkg/types"
)

// LoadSummary is the row count persisted for one key.
type LoadSummary struct {
	Date  string
	Cycle string
	Rows  int64
}

// Exists reports whether any row for key is already in the table.
func (s *Store) Exists(ctx context.Context, key types.DedupKey) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT EXISTS(SELECT 1 FROM %s WHERE "Date" = $1 AND "Cycle" = $2)`, s.ident.Sanitize()),
		key.GasDay(), string(key.Cycle)).Scan(&exists)
	if err != nil {
		return false, classify("exists", err)
	}
	return exists, nil
}

// HealthCheck pings the database and confirms the target table exists.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return classify("health", err)
	}
	var present bool
	err := s.pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, s.ident.Sanitize()).Scan(&present)
	if err != nil {
		return classify("health", err)
	}
	if !present {
		return schemaError("health", "table %s does not exist", s.table)
	}
	return nil
}

// CountRows returns the total number of rows in the table.
func (s *Store) CountRows(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, s.ident.Sanitize())).Scan(&n)
	if err != nil {
		return 0, classify("count", err)
	}
	return n, nil
}

// RecentLoads returns per-key row counts, most recent gas day first.
func (s *Store) RecentLoads(ctx context.Context, limit int) ([]LoadSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT "Date", "Cycle", count(*)
		FROM %s
		GROUP BY "Date", "Cycle"
		ORDER BY to_date("Date", 'MM/DD/YYYY') DESC, "Cycle"
		LIMIT $1
	`, s.ident.Sanitize()), limit)
	if err != nil {
		return nil, classify("recent", err)
	}
	defer rows.Close()

	var loads []LoadSummary
	for rows.Next() {
		var l LoadSummary
		if err := rows.Scan(&l.Date, &l.Cycle, &l.Rows); err != nil {
			return nil, classify("recent", err)
		}
		loads = append(loads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("recent", err)
	}
	return loads, nil
}
