package validate

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dwsmith1983/oacload/pkg/types"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Validate parses raw CSV bytes and applies the schema rules in order:
// empty table, column count, column names, then per-cell domain checks.
// Cells outside their domain are nulled rather than failing the table.
func Validate(raw []byte) (*types.NormalizedTable, error) {
	header, records, err := parse(raw)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, &ValidationError{Kind: KindEmpty}
	}
	if len(header) != ColumnCount {
		return nil, &ValidationError{Kind: KindColumnCountMismatch, Count: len(header)}
	}
	positions, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	table := &types.NormalizedTable{Rows: make([]types.CapacityRow, 0, len(records))}
	for i, rec := range records {
		if len(rec) != len(header) {
			return nil, &ValidationError{
				Kind: KindMalformed,
				Err:  fmt.Errorf("row %d has %d fields, header has %d", i+1, len(rec), len(header)),
			}
		}
		table.Rows = append(table.Rows, buildRow(rec, positions))
	}
	return table, nil
}

func parse(raw []byte) ([]string, [][]string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)

	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, &ValidationError{Kind: KindEmpty}
	}
	if err != nil {
		return nil, nil, &ValidationError{Kind: KindMalformed, Err: err}
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, &ValidationError{Kind: KindMalformed, Err: err}
	}
	return header, records, nil
}

// mapHeader returns, for each schema column, its position in the source header.
func mapHeader(header []string) ([]int, error) {
	want := columnIndex()
	positions := make([]int, ColumnCount)
	seen := make(map[string]bool, len(header))
	for pos, name := range header {
		idx, ok := want[name]
		if !ok || seen[name] {
			return nil, &ValidationError{Kind: KindUnknownColumn, Column: name}
		}
		seen[name] = true
		positions[idx] = pos
	}
	return positions, nil
}

func buildRow(rec []string, positions []int) types.CapacityRow {
	cell := func(col int) string {
		return strings.TrimSpace(rec[positions[col]])
	}

	return types.CapacityRow{
		LocationCode:      parseInt(cell(0)),
		LocationZone:      cell(1),
		LocationName:      cell(2),
		PurposeDescriptor: types.PurposeDescriptor(code(cell(3), purposeDomain)),
		QTIType:           types.QTIType(code(cell(4), qtiDomain)),
		FlowIndicator:     types.FlowIndicator(code(cell(5), flowDomain)),
		DesignCapacity:    parseInt(cell(6)),
		OperatingCapacity: parseInt(cell(7)),
		ScheduledQuantity: parseInt(cell(8)),
		AvailableCapacity: parseInt(cell(9)),
		Interruptible:     code(cell(10), flagDomain),
		OverrunAuthorized: code(cell(11), flagDomain),
		NominationExceed:  code(cell(12), flagDomain),
		QuantityAvailable: code(cell(13), flagDomain),
		QuantityReason:    cell(14),
	}
}

// code returns v if it is exactly a member of domain, else the empty null
// marker. Codes are case-sensitive.
func code(v string, domain map[string]bool) string {
	if domain[v] {
		return v
	}
	return ""
}

// parseInt accepts an optionally signed integer with thousands separators.
// Anything else is null.
func parseInt(v string) *int64 {
	v = strings.ReplaceAll(v, ",", "")
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
