package dispatch

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Notification is the wire envelope published for each fired alert.
type Notification struct {
	EventType          string         `json:"event_type"`
	CorrelationEventID uuid.UUID      `json:"correlation_event_id"`
	Payload            map[string]any `json:"payload"`
	EmittedAt          time.Time      `json:"emitted_at"`
}

// NATSNotifier publishes alert notifications, fanning out to one subject
// per delivery channel named in the payload. Delivery beyond the NATS
// publish (webhook posts, retries) is the notification subsystem's job.
type NATSNotifier struct {
	conn       *nats.Conn
	routes     *RouteTable
	maxRetries int
}

func NewNATSNotifier(conn *nats.Conn, routes *RouteTable, maxRetries int) *NATSNotifier {
	return &NATSNotifier{
		conn:       conn,
		routes:     routes,
		maxRetries: maxRetries,
	}
}

func (n *NATSNotifier) Trigger(eventType string, payload map[string]any, correlationID uuid.UUID) error {
	msg := Notification{
		EventType:          eventType,
		CorrelationEventID: correlationID,
		Payload:            payload,
		EmittedAt:          time.Now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	subjects := n.subjectsFor(payload)
	var lastErr error
	for _, subject := range subjects {
		if err := n.publish(subject, data); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (n *NATSNotifier) publish(subject string, data []byte) error {
	var err error
	for i := 0; i <= n.maxRetries; i++ {
		err = n.conn.Publish(subject, data)
		if err == nil {
			return nil
		}

		// Backoff
		time.Sleep(time.Duration(i*100) * time.Millisecond)
	}
	return fmt.Errorf("publish to %s failed after %d retries: %w", subject, n.maxRetries, err)
}

// subjectsFor resolves the payload's channels through the route table,
// deduplicating subjects. No channels means the default subject.
func (n *NATSNotifier) subjectsFor(payload map[string]any) []string {
	channels := channelNames(payload["channels"])
	if len(channels) == 0 {
		return []string{n.routes.Default()}
	}

	seen := make(map[string]struct{})
	var subjects []string
	for _, ch := range channels {
		s := n.routes.Resolve(ch)
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		subjects = append(subjects, s)
	}
	return subjects
}

// channelNames accepts both the []string the engine builds in-process
// and the []any a JSON round trip would produce.
func channelNames(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
