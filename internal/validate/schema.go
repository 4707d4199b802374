// Package validate enforces the fixed OAC report shape on raw CSV tables.
//
// Structural problems (no rows, wrong column count, wrong column names) reject
// the whole table. Value-domain problems (a code outside its set, a number
// that does not parse) null the offending cell and keep the row.
package validate

// Wire column names, in report order.
const (
	ColLoc               = "Loc"
	ColLocZone           = "Loc Zn"
	ColLocName           = "Loc Name"
	ColPurpose           = "Loc Purp Desc"
	ColQTI               = "Loc/QTI"
	ColFlow              = "Flow Ind"
	ColDesignCapacity    = "DC"
	ColOperatingCapacity = "OPC"
	ColScheduledQuantity = "TSQ"
	ColAvailable         = "OAC"
	ColInterruptible     = "IT"
	ColOverrunAuthorized = "Auth Overrun Ind"
	ColNominationExceed  = "Nom Cap Exceed Ind"
	ColQuantityAvailable = "All Qty Avail"
	ColQuantityReason    = "Qty Reason"
)

// Columns is the fixed report schema.
var Columns = []string{
	ColLoc,
	ColLocZone,
	ColLocName,
	ColPurpose,
	ColQTI,
	ColFlow,
	ColDesignCapacity,
	ColOperatingCapacity,
	ColScheduledQuantity,
	ColAvailable,
	ColInterruptible,
	ColOverrunAuthorized,
	ColNominationExceed,
	ColQuantityAvailable,
	ColQuantityReason,
}

// ColumnCount is the number of source columns in a report.
const ColumnCount = 15

var (
	purposeDomain = map[string]bool{"M2": true, "MQ": true}
	qtiDomain     = map[string]bool{"RPQ": true, "DPQ": true}
	flowDomain    = map[string]bool{"R": true, "D": true}
	flagDomain    = map[string]bool{"Y": true, "N": true}
)

func columnIndex() map[string]int {
	idx := make(map[string]int, len(Columns))
	for i, c := range Columns {
		idx[c] = i
	}
	return idx
}
