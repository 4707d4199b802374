// Package types defines the public domain types for the OAC capacity loader.
package types

import "time"

// GasDayLayout is the wire and storage format of a report date.
const GasDayLayout = "01/02/2006"

// DedupKey identifies one report: a gas day and a cycle. At most one
// successful load per key exists in the store.
type DedupKey struct {
	Date  time.Time
	Cycle Cycle
}

// NewDedupKey builds a key for the calendar date of t. The time-of-day and
// location of t are discarded.
func NewDedupKey(t time.Time, c Cycle) DedupKey {
	y, m, d := t.Date()
	return DedupKey{Date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Cycle: c}
}

// GasDay renders the key date as MM/DD/YYYY.
func (k DedupKey) GasDay() string {
	return k.Date.Format(GasDayLayout)
}

// String returns "MM/DD/YYYY Cycle".
func (k DedupKey) String() string {
	return k.GasDay() + " " + string(k.Cycle)
}

// CapacityRow is one validated row of a report before the key columns are
// attached. Nil pointers and empty enum values are nulls. Flag columns keep
// their Y/N source value; anything outside Y/N has already been emptied.
type CapacityRow struct {
	LocationCode      *int64
	LocationZone      string
	LocationName      string
	PurposeDescriptor PurposeDescriptor
	QTIType           QTIType
	FlowIndicator     FlowIndicator
	DesignCapacity    *int64
	OperatingCapacity *int64
	ScheduledQuantity *int64
	AvailableCapacity *int64
	Interruptible     string
	OverrunAuthorized string
	NominationExceed  string
	QuantityAvailable string
	QuantityReason    string
}

// NormalizedTable is a report that passed structural validation.
type NormalizedTable struct {
	Rows []CapacityRow
}

// CapacityRecord is one persisted row: the source columns plus the key.
type CapacityRecord struct {
	LocationCode                   *int64            `json:"locationCode"`
	LocationZone                   string            `json:"locationZone"`
	LocationName                   string            `json:"locationName"`
	PurposeDescriptor              PurposeDescriptor `json:"purposeDescriptor,omitempty"`
	QTIType                        QTIType           `json:"qtiType,omitempty"`
	FlowIndicator                  FlowIndicator     `json:"flowIndicator,omitempty"`
	DesignCapacity                 *int64            `json:"designCapacity"`
	OperatingCapacity              *int64            `json:"operatingCapacity"`
	ScheduledQuantity              *int64            `json:"scheduledQuantity"`
	OperationallyAvailableCapacity *int64            `json:"operationallyAvailableCapacity"`
	InterruptibleFlag              *bool             `json:"interruptibleFlag"`
	OverrunAuthorizedFlag          *bool             `json:"overrunAuthorizedFlag"`
	NominationExceedFlag           *bool             `json:"nominationExceedFlag"`
	QuantityFullyAvailableFlag     *bool             `json:"quantityFullyAvailableFlag"`
	QuantityReason                 string            `json:"quantityReason"`
	ReportDate                     string            `json:"reportDate"`
	Cycle                          string            `json:"cycle"`
}

// WorkItem tracks one key through a single run.
type WorkItem struct {
	Key      DedupKey  `json:"-"`
	GasDay   string    `json:"gasDay"`
	Cycle    Cycle     `json:"cycle"`
	State    WorkState `json:"state"`
	Reason   string    `json:"reason,omitempty"`
	Attempts int       `json:"attempts,omitempty"`
	Rows     int       `json:"rows,omitempty"`
	Artifact string    `json:"artifact,omitempty"`
	Reused   bool      `json:"reused,omitempty"`
}

// RunSummary is the outcome of one coordinator run.
type RunSummary struct {
	RunID      string            `json:"runId"`
	Asset      string            `json:"asset"`
	Today      string            `json:"today"`
	StartedAt  time.Time         `json:"startedAt"`
	FinishedAt time.Time         `json:"finishedAt"`
	Items      []WorkItem        `json:"items"`
	RowsLoaded int               `json:"rowsLoaded"`
	Counts     map[WorkState]int `json:"counts"`
	Error      string            `json:"error,omitempty"`
}

// Count returns how many items ended in state.
func (s *RunSummary) Count(state WorkState) int {
	return s.Counts[state]
}

// Alert is a notification raised by a run.
type Alert struct {
	Level     AlertLevel             `json:"level"`
	Asset     string                 `json:"asset"`
	RunID     string                 `json:"runId,omitempty"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// RawTable is the unparsed report body for one key and where it was kept.
type RawTable struct {
	Key    DedupKey
	Data   []byte
	Path   string
	Reused bool
}
