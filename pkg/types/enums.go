package types

// Cycle is one of the fixed nomination cycles the remote source publishes a
// separate capacity report for. The value is the cycle's display name.
type Cycle string

// Cycle values, in the order the loader walks them.
const (
	CycleTimely    Cycle = "Timely"
	CycleEvening   Cycle = "Evening"
	CycleIntraday1 Cycle = "Intraday 1"
	CycleIntraday2 Cycle = "Intraday 2"
	CycleIntraday3 Cycle = "Intraday 3"
	CycleFinal     Cycle = "Final"
)

// Cycles is the ordered set of cycles requested for every gas day.
var Cycles = []Cycle{
	CycleTimely,
	CycleEvening,
	CycleIntraday1,
	CycleIntraday2,
	CycleIntraday3,
	CycleFinal,
}

var cycleCodes = map[Cycle]int{
	CycleTimely:    0,
	CycleEvening:   1,
	CycleIntraday1: 3,
	CycleIntraday2: 4,
	CycleIntraday3: 7,
	CycleFinal:     5,
}

// Code returns the numeric cycle code used by the report endpoint.
func (c Cycle) Code() int {
	code, ok := cycleCodes[c]
	if !ok {
		return -1
	}
	return code
}

// Valid reports whether c is one of the known cycles.
func (c Cycle) Valid() bool {
	_, ok := cycleCodes[c]
	return ok
}

// PurposeDescriptor is the location purpose code. Empty means null.
type PurposeDescriptor string

const (
	PurposeM2 PurposeDescriptor = "M2"
	PurposeMQ PurposeDescriptor = "MQ"
)

// QTIType is the location quantity type indicator. Empty means null.
type QTIType string

const (
	QTIReceiptPoint  QTIType = "RPQ"
	QTIDeliveryPoint QTIType = "DPQ"
)

// FlowIndicator is the receipt/delivery flow direction. Empty means null.
type FlowIndicator string

const (
	FlowReceipt  FlowIndicator = "R"
	FlowDelivery FlowIndicator = "D"
)

// WorkState is the lifecycle state of one (date, cycle) work item.
type WorkState string

// WorkState values. SKIPPED, FAILED, REJECTED and LOADED are terminal.
const (
	WorkPending    WorkState = "PENDING"
	WorkSkipped    WorkState = "SKIPPED"
	WorkFetching   WorkState = "FETCHING"
	WorkFailed     WorkState = "FAILED"
	WorkValidating WorkState = "VALIDATING"
	WorkRejected   WorkState = "REJECTED"
	WorkNormalized WorkState = "NORMALIZED"
	WorkLoaded     WorkState = "LOADED"
)

// AlertType defines the alert sink type.
type AlertType string

// AlertType values enumerate the supported alert sink backends.
const (
	AlertConsole     AlertType = "console"
	AlertWebhook     AlertType = "webhook"
	AlertFile        AlertType = "file"
	AlertEventBridge AlertType = "eventbridge"
)

// AlertLevel is the severity of an alert.
type AlertLevel string

const (
	AlertLevelError   AlertLevel = "error"
	AlertLevelWarning AlertLevel = "warning"
	AlertLevelInfo    AlertLevel = "info"
)

// FailureCategory classifies why a fetch failed.
type FailureCategory string

const (
	FailureTransient FailureCategory = "TRANSIENT"
	FailurePermanent FailureCategory = "PERMANENT"
	FailureTimeout   FailureCategory = "TIMEOUT"
)
