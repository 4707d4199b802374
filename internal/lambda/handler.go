package lambda

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/dwsmith1983/oacload/pkg/types"
)

// Request is the optional event detail. AsOf replays the window ending on
// an earlier gas day.
type Request struct {
	AsOf string `json:"asOf,omitempty"`
}

// Handle runs one load pass for a scheduled event. The window ends at the
// event time, or at noon on detail.asOf when given.
func Handle(ctx context.Context, d *Deps, event events.CloudWatchEvent) (*types.RunSummary, error) {
	now, err := windowEnd(event, d.Location)
	if err != nil {
		return nil, err
	}

	summary, err := d.Runner.Run(ctx, now)
	if err != nil {
		d.Logger.Error("load run failed", "error", err)
		return summary, err
	}
	return summary, nil
}

func windowEnd(event events.CloudWatchEvent, loc *time.Location) (time.Time, error) {
	if len(event.Detail) > 0 {
		var req Request
		if err := json.Unmarshal(event.Detail, &req); err != nil {
			return time.Time{}, fmt.Errorf("decoding event detail: %w", err)
		}
		if req.AsOf != "" {
			d, err := time.ParseInLocation(types.GasDayLayout, req.AsOf, loc)
			if err != nil {
				return time.Time{}, fmt.Errorf("asOf must be MM/DD/YYYY: %w", err)
			}
			return d.Add(12 * time.Hour), nil
		}
	}
	if !event.Time.IsZero() {
		return event.Time, nil
	}
	return time.Now(), nil
}
