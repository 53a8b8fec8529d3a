package types

import "time"

// Level bounds for Event.Level.
const (
	MinLevel = 0
	MaxLevel = 9
)

// Event is one raised alert or diagnostic, published fire-and-forget.
type Event struct {
	// ID is assigned by the console on receipt; publishers leave it empty.
	ID string `json:"id,omitempty"`

	// Tag is the deduplication key of the event kind, e.g. "ISP.toSecondary".
	Tag string `json:"tag"`

	// Source identifies the publishing monitor, e.g. "monitor.isp".
	Source string `json:"source"`

	// Type is usually equal to Tag.
	Type string `json:"type"`

	Subject string `json:"subject"`
	Message string `json:"message"`

	// Level is the severity in [0, 9]; higher is more severe.
	Level int `json:"level"`

	// Timestamp is epoch milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// Time returns the event timestamp as a time.Time.
func (e Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Status is the flat snapshot a monitor publishes after each successful cycle.
// Fields use dotted keys, e.g. "monitor.isp.onPrimaryPct".
type Status struct {
	Topic     string         `json:"topic"`
	Fields    map[string]any `json:"fields"`
	Timestamp int64          `json:"timestamp"`
}

// Time returns the status timestamp as a time.Time.
func (s Status) Time() time.Time {
	return time.UnixMilli(s.Timestamp)
}
