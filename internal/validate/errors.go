package validate

import "fmt"

// Kind classifies why a table was rejected.
type Kind string

const (
	KindEmpty               Kind = "EMPTY"
	KindColumnCountMismatch Kind = "COLUMN_COUNT_MISMATCH"
	KindUnknownColumn       Kind = "UNKNOWN_COLUMN"
	KindMalformed           Kind = "MALFORMED"
)

// ValidationError is a structural rejection of a whole table.
type ValidationError struct {
	Kind   Kind
	Count  int    // actual column count, for KindColumnCountMismatch
	Column string // offending header, for KindUnknownColumn
	Err    error  // parse failure, for KindMalformed
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case KindEmpty:
		return "table has no data rows"
	case KindColumnCountMismatch:
		return fmt.Sprintf("expected %d columns, got %d", ColumnCount, e.Count)
	case KindUnknownColumn:
		return fmt.Sprintf("unknown column %q", e.Column)
	case KindMalformed:
		return fmt.Sprintf("malformed csv: %v", e.Err)
	default:
		return fmt.Sprintf("validation failed: %s", e.Kind)
	}
}

func (e *ValidationError) Unwrap() error { return e.Err }
