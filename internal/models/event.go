// Package models holds the shared value types that flow through the
// triage pipeline: device events, the live device context, event log
// entries, derived patterns, and proactive insights.
package models

// DeviceEvent is a single telemetry event emitted by the companion app.
// Events are immutable once received.
type DeviceEvent struct {
	SubscriptionID string             `json:"subscriptionId"`
	Source         string             `json:"source"`
	Data           map[string]float64 `json:"data,omitempty"`
	Metadata       map[string]string  `json:"metadata,omitempty"`
	FiredAt        float64            `json:"firedAt"` // seconds since epoch
}

// DataValue returns a numeric data field and whether it was present.
func (e DeviceEvent) DataValue(key string) (float64, bool) {
	if e.Data == nil {
		return 0, false
	}
	v, ok := e.Data[key]
	return v, ok
}

// Meta returns a metadata field, or the empty string when absent.
func (e DeviceEvent) Meta(key string) string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata[key]
}

// IsDebug reports whether the event carries the debug passthrough marker.
func (e DeviceEvent) IsDebug() bool {
	v, ok := e.DataValue("_debugFired")
	return ok && v == 1.0
}

// Decision actions produced by the rules engine. Ambiguous never reaches
// the event log; the pipeline resolves it through the judgment layer first.
const (
	ActionPush      = "push"
	ActionDrop      = "drop"
	ActionDefer     = "defer"
	ActionAmbiguous = "ambiguous"
)

// Decision is the outcome of evaluating one event.
type Decision struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// EventLogEntry is one record in the append-only journal.
type EventLogEntry struct {
	ID        string      `json:"id,omitempty"`
	Event     DeviceEvent `json:"event"`
	Decision  string      `json:"decision"`
	Reason    string      `json:"reason"`
	Timestamp float64     `json:"timestamp"`
}

// Insight is a proactive combined-signal message produced by the trigger
// scanner.
type Insight struct {
	ID       string `json:"id"`
	Message  string `json:"message"`
	Priority string `json:"priority"` // "normal" or "high"
}
