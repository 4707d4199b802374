package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"

	"github.com/dwsmith1983/oacload/pkg/types"
)

// Defaults for events put on the bus.
const (
	DefaultEventSource = "oacload"
	eventDetailType    = "OAC Load Alert"
	eventBridgeTimeout = 10 * time.Second
)

// EventBridgeAPI is the subset of the EventBridge client used by EventBridgeSink.
type EventBridgeAPI interface {
	PutEvents(ctx context.Context, input *eventbridge.PutEventsInput, opts ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// EventBridgeSink puts alerts on an EventBridge bus.
type EventBridgeSink struct {
	client EventBridgeAPI
	bus    string
	source string
}

// EventBridgeSinkOption configures an EventBridgeSink.
type EventBridgeSinkOption func(*EventBridgeSink)

// WithEventBridgeClient sets a custom EventBridge client (useful for testing).
func WithEventBridgeClient(c EventBridgeAPI) EventBridgeSinkOption {
	return func(s *EventBridgeSink) { s.client = c }
}

// NewEventBridgeSink creates a sink for bus. An empty source selects
// DefaultEventSource.
func NewEventBridgeSink(bus, source string, opts ...EventBridgeSinkOption) (*EventBridgeSink, error) {
	if bus == "" {
		return nil, fmt.Errorf("EventBridge bus name required")
	}
	if source == "" {
		source = DefaultEventSource
	}
	s := &EventBridgeSink{bus: bus, source: source}
	for _, o := range opts {
		o(s)
	}
	if s.client == nil {
		cfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		s.client = eventbridge.NewFromConfig(cfg)
	}
	return s, nil
}

// Name returns the sink identifier.
func (s *EventBridgeSink) Name() string { return "eventbridge" }

// Send puts the alert as the detail of one event.
func (s *EventBridgeSink) Send(ctx context.Context, alert types.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshaling alert: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, eventBridgeTimeout)
	defer cancel()
	out, err := s.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []ebtypes.PutEventsRequestEntry{{
			EventBusName: aws.String(s.bus),
			Source:       aws.String(s.source),
			DetailType:   aws.String(eventDetailType),
			Detail:       aws.String(string(data)),
			Time:         aws.Time(alert.Timestamp),
		}},
	})
	if err != nil {
		return fmt.Errorf("putting event: %w", err)
	}
	if out.FailedEntryCount > 0 && len(out.Entries) > 0 {
		e := out.Entries[0]
		return fmt.Errorf("event rejected: %s: %s", aws.ToString(e.ErrorCode), aws.ToString(e.ErrorMessage))
	}
	return nil
}
