// Package postgres implements the capacity table store on Postgres.
package postgres

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/dwsmith1983/oacload/internal/validate"
)

// DefaultTable is the table the loader appends to when none is configured.
const DefaultTable = "tw_data"

// Key column names appended to the source columns.
const (
	ColDate  = "Date"
	ColCycle = "Cycle"
)

type column struct {
	name    string
	sqlType string
}

// columns is the persisted layout: the report columns under their wire
// names, then the key columns.
var columns = []column{
	{validate.ColLoc, "BIGINT"},
	{validate.ColLocZone, "TEXT"},
	{validate.ColLocName, "TEXT"},
	{validate.ColPurpose, "TEXT"},
	{validate.ColQTI, "TEXT"},
	{validate.ColFlow, "TEXT"},
	{validate.ColDesignCapacity, "BIGINT"},
	{validate.ColOperatingCapacity, "BIGINT"},
	{validate.ColScheduledQuantity, "BIGINT"},
	{validate.ColAvailable, "BIGINT"},
	{validate.ColInterruptible, "BOOLEAN"},
	{validate.ColOverrunAuthorized, "BOOLEAN"},
	{validate.ColNominationExceed, "BOOLEAN"},
	{validate.ColQuantityAvailable, "BOOLEAN"},
	{validate.ColQuantityReason, "TEXT"},
	{ColDate, "TEXT"},
	{ColCycle, "TEXT"},
}

func columnNames() []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.name
	}
	return names
}

// tableIdentifier splits an optionally schema-qualified table name.
func tableIdentifier(table string) pgx.Identifier {
	return pgx.Identifier(strings.Split(table, "."))
}

func schemaDDL(ident pgx.Identifier) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", ident.Sanitize())
	for i, c := range columns {
		sep := ","
		if i == len(columns)-1 {
			sep = ""
		}
		fmt.Fprintf(&b, "    %s %s%s\n", pgx.Identifier{c.name}.Sanitize(), c.sqlType, sep)
	}
	b.WriteString(");\n")

	index := pgx.Identifier{ident[len(ident)-1] + "_date_cycle_idx"}
	fmt.Fprintf(&b, "CREATE INDEX IF NOT EXISTS %s ON %s (%s, %s);\n",
		index.Sanitize(), ident.Sanitize(),
		pgx.Identifier{ColDate}.Sanitize(), pgx.Identifier{ColCycle}.Sanitize())
	return b.String()
}
