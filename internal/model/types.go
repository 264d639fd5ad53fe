package model

import "time"

// EventKind tags the variant carried by an Event.
type EventKind int

const (
	EventInviteLeg EventKind = iota + 1
	EventSIPMethod
	EventDialogFailed
	EventDialogEnded
)

// String returns the event kind name used in logs.
func (k EventKind) String() string {
	switch k {
	case EventInviteLeg:
		return "invite-leg"
	case EventSIPMethod:
		return "sip-method"
	case EventDialogFailed:
		return "dialog-failed"
	case EventDialogEnded:
		return "dialog-ended"
	default:
		return "unknown"
	}
}

// Leg identifies the dialog side of a new call attempt.
type Leg string

const (
	LegA Leg = "A"
	LegB Leg = "B"
)

// Direction separates proxied SIP requests from replies.
type Direction string

const (
	DirectionRequest Direction = "request"
	DirectionReply   Direction = "reply"
)

// Event is the classified result of one log line.
// Only the fields belonging to Kind are meaningful.
type Event struct {
	Kind EventKind
	Hour int // 0..23, from the line timestamp

	Leg       Leg       // EventInviteLeg
	Direction Direction // EventSIPMethod
	Method    string    // EventSIPMethod

	CallID    string // EventDialogFailed, EventDialogEnded
	StartTime uint64 // EventDialogEnded, seconds as logged by the dialog module
	Duration  uint64 // EventDialogEnded, seconds
}

// HourRow is the reported metric set for one hour bucket.
// Metrics holds every counter plus the derived KPIs, keyed by metric name.
type HourRow struct {
	Hour    int
	Label   string // "HH:00"
	Metrics map[string]float64
}

// SourceSummary describes what a single source pass contributed.
type SourceSummary struct {
	Name           string `json:"name" yaml:"name"`
	Lines          int64  `json:"lines" yaml:"lines"`
	Events         int64  `json:"events" yaml:"events"`
	DebugSkipped   int64  `json:"debug_skipped" yaml:"debug_skipped"`
	Unclassifiable int64  `json:"unclassifiable" yaml:"unclassifiable"`
	Error          string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report is the finished, sorted and zero-filled result of one run.
type Report struct {
	RunID       string
	GeneratedAt time.Time
	Metrics     []string  // column order shared by every row
	Rows        []HourRow // ascending by Hour
	Sources     []SourceSummary
}

// Row returns the row for hour, if present.
func (r *Report) Row(hour int) (HourRow, bool) {
	for _, row := range r.Rows {
		if row.Hour == hour {
			return row, true
		}
	}
	return HourRow{}, false
}
