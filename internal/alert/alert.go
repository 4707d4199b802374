// Package alert implements alert dispatching to multiple sinks.
package alert

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dwsmith1983/oacload/pkg/types"
)

// Sink is an alert destination.
type Sink interface {
	Send(ctx context.Context, alert types.Alert) error
	Name() string
}

type route struct {
	sink     Sink
	minLevel types.AlertLevel
}

// Dispatcher routes alerts to configured sinks.
type Dispatcher struct {
	routes []route
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher from alert configs.
func NewDispatcher(configs []types.AlertConfig, logger *slog.Logger) (*Dispatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{logger: logger}
	for _, cfg := range configs {
		sink, err := newSink(cfg)
		if err != nil {
			return nil, fmt.Errorf("creating %s sink: %w", cfg.Type, err)
		}
		d.Add(sink, cfg.MinLevel)
	}
	return d, nil
}

// Add registers sink for alerts at minLevel or above. An empty minLevel
// receives everything.
func (d *Dispatcher) Add(sink Sink, minLevel types.AlertLevel) {
	d.routes = append(d.routes, route{sink: sink, minLevel: minLevel})
}

// Len returns the number of registered sinks.
func (d *Dispatcher) Len() int { return len(d.routes) }

// Dispatch sends an alert to every sink whose level threshold it meets.
// Sink failures are logged and do not stop delivery to the others.
func (d *Dispatcher) Dispatch(ctx context.Context, alert types.Alert) {
	for _, r := range d.routes {
		if !Meets(alert.Level, r.minLevel) {
			continue
		}
		if err := r.sink.Send(ctx, alert); err != nil {
			d.logger.Error("alert delivery failed", "sink", r.sink.Name(), "level", alert.Level, "error", err)
		}
	}
}

// AlertFunc returns a function suitable for use as the coordinator's alert callback.
func (d *Dispatcher) AlertFunc() func(context.Context, types.Alert) {
	return d.Dispatch
}

var levelRank = map[types.AlertLevel]int{
	types.AlertLevelInfo:    1,
	types.AlertLevelWarning: 2,
	types.AlertLevelError:   3,
}

// Meets reports whether level is at or above threshold.
func Meets(level, threshold types.AlertLevel) bool {
	if threshold == "" {
		return true
	}
	return levelRank[level] >= levelRank[threshold]
}

func newSink(cfg types.AlertConfig) (Sink, error) {
	switch cfg.Type {
	case types.AlertConsole:
		return NewConsoleSink(), nil
	case types.AlertWebhook:
		if cfg.URL == "" {
			return nil, fmt.Errorf("webhook URL required")
		}
		return NewWebhookSink(cfg.URL), nil
	case types.AlertFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("file path required")
		}
		return NewFileSink(cfg.Path)
	case types.AlertEventBridge:
		return NewEventBridgeSink(cfg.EventBus, cfg.Source)
	default:
		return nil, fmt.Errorf("unknown alert type %q", cfg.Type)
	}
}
