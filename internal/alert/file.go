package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dwsmith1983/oacload/pkg/types"
)

// FileSink keeps a JSON-lines journal of run alerts, one object per line,
// so failed loads can be audited next to the artifact directory.
type FileSink struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

// journalEntry is one line of the alert journal.
type journalEntry struct {
	WrittenAt time.Time `json:"writtenAt"`
	types.Alert
}

// NewFileSink creates the journal file and its parent directories.
func NewFileSink(path string) (*FileSink, error) {
	if path == "" {
		return nil, fmt.Errorf("alert file path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating alert directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening alert file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("closing alert file: %w", err)
	}
	return &FileSink{path: path, now: time.Now}, nil
}

// Name returns the sink identifier.
func (s *FileSink) Name() string { return "file" }

// Send appends alert to the journal. It does nothing once ctx is done.
func (s *FileSink) Send(ctx context.Context, alert types.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := json.Marshal(journalEntry{WrittenAt: s.now().UTC(), Alert: alert})
	if err != nil {
		return fmt.Errorf("encoding alert for run %s: %w", alert.RunID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening alert file: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing alert: %w", err)
	}
	return f.Close()
}
