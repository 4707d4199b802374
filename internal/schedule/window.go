// Package schedule computes the trailing report window and the fetch retry policy.
package schedule

import (
	"fmt"
	"time"

	"github.com/dwsmith1983/oacload/pkg/types"
)

// DefaultTimezone is the reference zone "today" is evaluated in. EST is a
// fixed UTC-5 offset with no daylight saving.
const DefaultTimezone = "EST"

// LoadLocation resolves a zone name. EST falls back to a fixed offset when
// the host has no zoneinfo database.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		if name == DefaultTimezone {
			return time.FixedZone("EST", -5*60*60), nil
		}
		return nil, fmt.Errorf("loading timezone %q: %w", name, err)
	}
	return loc, nil
}

// WindowDates returns days calendar dates ending at the date of now in loc,
// newest first.
func WindowDates(now time.Time, loc *time.Location, days int) []time.Time {
	if days <= 0 {
		return nil
	}
	local := now.In(loc)
	y, m, d := local.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	dates := make([]time.Time, 0, days)
	for i := 0; i < days; i++ {
		dates = append(dates, today.AddDate(0, 0, -i))
	}
	return dates
}

// WorkKeys crosses the window dates with every cycle, dates newest first and
// cycles in publication order.
func WorkKeys(now time.Time, loc *time.Location, days int) []types.DedupKey {
	dates := WindowDates(now, loc, days)
	keys := make([]types.DedupKey, 0, len(dates)*len(types.Cycles))
	for _, d := range dates {
		for _, c := range types.Cycles {
			keys = append(keys, types.NewDedupKey(d, c))
		}
	}
	return keys
}
