package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/oacload/internal/provider"
	"github.com/dwsmith1983/oacload/internal/validate"
	"github.com/dwsmith1983/oacload/pkg/types"
)

func TestColumns_MatchReportSchema(t *testing.T) {
	names := columnNames()
	require.Len(t, names, validate.ColumnCount+2)
	assert.Equal(t, validate.Columns, names[:validate.ColumnCount])
	assert.Equal(t, []string{ColDate, ColCycle}, names[validate.ColumnCount:])
}

func TestSchemaDDL(t *testing.T) {
	ddl := schemaDDL(tableIdentifier("tw_data"))
	assert.Contains(t, ddl, `CREATE TABLE IF NOT EXISTS "tw_data"`)
	assert.Contains(t, ddl, `"Loc/QTI" TEXT`)
	assert.Contains(t, ddl, `"Auth Overrun Ind" BOOLEAN`)
	assert.Contains(t, ddl, `"OAC" BIGINT`)
	assert.Contains(t, ddl, `"Cycle" TEXT`)
	assert.Contains(t, ddl, `CREATE INDEX IF NOT EXISTS "tw_data_date_cycle_idx" ON "tw_data" ("Date", "Cycle")`)
}

func TestSchemaDDL_QualifiedTable(t *testing.T) {
	ddl := schemaDDL(tableIdentifier("capacity.tw_data"))
	assert.Contains(t, ddl, `CREATE TABLE IF NOT EXISTS "capacity"."tw_data"`)
	assert.Contains(t, ddl, `"tw_data_date_cycle_idx" ON "capacity"."tw_data"`)
}

func TestAdvisoryLockID_StablePerTable(t *testing.T) {
	assert.Equal(t, advisoryLockID("tw_data"), advisoryLockID("tw_data"))
	assert.NotEqual(t, advisoryLockID("tw_data"), advisoryLockID("other"))
}

func TestRecordValues(t *testing.T) {
	loc := int64(1234)
	yes := true
	r := types.CapacityRecord{
		LocationCode:      &loc,
		LocationName:      "Station A",
		PurposeDescriptor: types.PurposeM2,
		InterruptibleFlag: &yes,
		ReportDate:        "01/10/2024",
		Cycle:             "Timely",
	}

	vals := recordValues(r)
	require.Len(t, vals, len(columns))
	assert.Equal(t, &loc, vals[0])
	assert.Nil(t, vals[1], "empty zone is stored as NULL")
	assert.Equal(t, "Station A", vals[2])
	assert.Equal(t, "M2", vals[3])
	assert.Nil(t, vals[4])
	assert.Equal(t, &yes, vals[10])
	assert.Equal(t, "01/10/2024", vals[15])
	assert.Equal(t, "Timely", vals[16])
}

func TestBatchKeys_DistinctInOrder(t *testing.T) {
	records := []types.CapacityRecord{
		{ReportDate: "01/10/2024", Cycle: "Final"},
		{ReportDate: "01/10/2024", Cycle: "Final"},
		{ReportDate: "01/09/2024", Cycle: "Timely"},
		{ReportDate: "01/10/2024", Cycle: "Final"},
	}
	assert.Equal(t, []recordKey{
		{date: "01/10/2024", cycle: "Final"},
		{date: "01/09/2024", cycle: "Timely"},
	}, batchKeys(records))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want provider.ErrorKind
	}{
		{"unique violation", &pgconn.PgError{Code: "23505"}, provider.KindConstraint},
		{"not null violation", &pgconn.PgError{Code: "23502"}, provider.KindConstraint},
		{"numeric out of range", &pgconn.PgError{Code: "22003"}, provider.KindConstraint},
		{"undefined table", &pgconn.PgError{Code: "42P01"}, provider.KindSchema},
		{"undefined column", &pgconn.PgError{Code: "42703"}, provider.KindSchema},
		{"datatype mismatch", &pgconn.PgError{Code: "42804"}, provider.KindSchema},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, provider.KindConnection},
		{"dial failure", errors.New("dial tcp: connection refused"), provider.KindConnection},
		{"wrapped pg error", fmt.Errorf("copy: %w", &pgconn.PgError{Code: "23505"}), provider.KindConstraint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("append", tt.err)
			var se *provider.StoreError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.want, se.Kind)
			assert.Equal(t, "append", se.Op)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestClassify_KeepsStoreError(t *testing.T) {
	orig := &provider.StoreError{Kind: provider.KindSchema, Op: "health", Err: errors.New("missing")}
	assert.Same(t, orig, classify("append", orig))
	assert.NoError(t, classify("append", nil))
}
