package eventlog

import (
	"time"

	id "concord/pkg/domain"
	"concord/pkg/platform/audit"
)

// Event is one entry of the append-only contract log. Seq is assigned on
// append and orders events with equal timestamps; it doubles as a cursor.
type Event struct {
	Seq       int64           `json:"seq"`
	Timestamp time.Time       `json:"timestamp"`
	Domain    id.DomainID     `json:"domain"`
	Type      audit.EventType `json:"type"`
	Message   string          `json:"message"`
	Data      map[string]any  `json:"data,omitempty"`
}

// Filter narrows a listing. Zero values mean "no constraint".
type Filter struct {
	// AfterSeq returns events with Seq strictly greater than the value.
	AfterSeq int64
	// Since returns events with Timestamp at or after the value.
	Since  time.Time
	Domain id.DomainID
	Limit  int
}

// Matches reports whether e passes the filter (limit aside).
func (f Filter) Matches(e Event) bool {
	if e.Seq <= f.AfterSeq {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if f.Domain != "" && e.Domain != f.Domain {
		return false
	}
	return true
}
