package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dwsmith1983/oacload/internal/provider"
	"github.com/dwsmith1983/oacload/pkg/types"
)

// AppendBatch writes records in a single transaction. The transaction holds
// an advisory lock on the table and re-checks every key in the batch, so a
// key loaded by a concurrent run fails the whole batch instead of
// duplicating rows.
func (s *Store) AppendBatch(ctx context.Context, records []types.CapacityRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, classify("append", fmt.Errorf("begin tx: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, s.lockID); err != nil {
		return 0, classify("append", fmt.Errorf("advisory lock: %w", err))
	}

	existsSQL := fmt.Sprintf(
		`SELECT EXISTS(SELECT 1 FROM %s WHERE "Date" = $1 AND "Cycle" = $2)`, s.ident.Sanitize())
	for _, k := range batchKeys(records) {
		var exists bool
		if err := tx.QueryRow(ctx, existsSQL, k.date, k.cycle).Scan(&exists); err != nil {
			return 0, classify("append", err)
		}
		if exists {
			return 0, &provider.StoreError{
				Kind: provider.KindConstraint,
				Op:   "append",
				Err:  fmt.Errorf("key %s %s already loaded", k.date, k.cycle),
			}
		}
	}

	n, err := tx.CopyFrom(ctx, s.ident, columnNames(), pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
		return recordValues(records[i]), nil
	}))
	if err != nil {
		return 0, classify("append", fmt.Errorf("copy: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, classify("append", fmt.Errorf("commit: %w", err))
	}
	return int(n), nil
}

type recordKey struct {
	date  string
	cycle string
}

// batchKeys returns the distinct keys of records in first-seen order.
func batchKeys(records []types.CapacityRecord) []recordKey {
	seen := make(map[recordKey]bool)
	var keys []recordKey
	for _, r := range records {
		k := recordKey{date: r.ReportDate, cycle: r.Cycle}
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

// recordValues lays out r in the order of columns.
func recordValues(r types.CapacityRecord) []any {
	return []any{
		r.LocationCode,
		nullText(r.LocationZone),
		nullText(r.LocationName),
		nullText(string(r.PurposeDescriptor)),
		nullText(string(r.QTIType)),
		nullText(string(r.FlowIndicator)),
		r.DesignCapacity,
		r.OperatingCapacity,
		r.ScheduledQuantity,
		r.OperationallyAvailableCapacity,
		r.InterruptibleFlag,
		r.OverrunAuthorizedFlag,
		r.NominationExceedFlag,
		r.QuantityFullyAvailableFlag,
		nullText(r.QuantityReason),
		r.ReportDate,
		r.Cycle,
	}
}

func nullText(s string) any {
	if s == "" {
		return nil
	}
	return s
}
