// Package transform turns validated report rows into persisted capacity records.
package transform

import "github.com/dwsmith1983/oacload/pkg/types"

// Normalize attaches the report date and cycle to every row and converts the
// Y/N flag columns to booleans. It never drops rows.
func Normalize(table *types.NormalizedTable, key types.DedupKey) []types.CapacityRecord {
	if table == nil {
		return nil
	}
	date := key.GasDay()
	cycle := string(key.Cycle)

	records := make([]types.CapacityRecord, len(table.Rows))
	for i, row := range table.Rows {
		records[i] = types.CapacityRecord{
			LocationCode:                   row.LocationCode,
			LocationZone:                   row.LocationZone,
			LocationName:                   row.LocationName,
			PurposeDescriptor:              row.PurposeDescriptor,
			QTIType:                        row.QTIType,
			FlowIndicator:                  row.FlowIndicator,
			DesignCapacity:                 row.DesignCapacity,
			OperatingCapacity:              row.OperatingCapacity,
			ScheduledQuantity:              row.ScheduledQuantity,
			OperationallyAvailableCapacity: row.AvailableCapacity,
			InterruptibleFlag:              Flag(row.Interruptible),
			OverrunAuthorizedFlag:          Flag(row.OverrunAuthorized),
			NominationExceedFlag:           Flag(row.NominationExceed),
			QuantityFullyAvailableFlag:     Flag(row.QuantityAvailable),
			QuantityReason:                 row.QuantityReason,
			ReportDate:                     date,
			Cycle:                          cycle,
		}
	}
	return records
}

// Flag maps "Y" to true, "N" to false and anything else to nil.
func Flag(v string) *bool {
	switch v {
	case "Y":
		b := true
		return &b
	case "N":
		b := false
		return &b
	}
	return nil
}
