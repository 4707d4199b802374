package alert

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/dwsmith1983/oacload/pkg/types"
)

// ConsoleSink writes alerts to the terminal with color.
type ConsoleSink struct {
	out io.Writer
}

// NewConsoleSink creates a new console alert sink.
func NewConsoleSink() *ConsoleSink {
	return &ConsoleSink{out: color.Output}
}

// Name returns the sink identifier.
func (s *ConsoleSink) Name() string { return "console" }

// Send writes an alert to the terminal with color-coded severity.
func (s *ConsoleSink) Send(_ context.Context, alert types.Alert) error {
	var prefix string
	switch alert.Level {
	case types.AlertLevelError:
		prefix = color.RedString("[ERROR]")
	case types.AlertLevelWarning:
		prefix = color.YellowString("[WARN]")
	default:
		prefix = color.CyanString("[INFO]")
	}

	var err error
	if alert.Asset != "" {
		_, err = fmt.Fprintf(s.out, "%s [%s] %s\n", prefix, alert.Asset, alert.Message)
	} else {
		_, err = fmt.Fprintf(s.out, "%s %s\n", prefix, alert.Message)
	}
	return err
}
