package domain

import "time"

// Event kinds produced by the ingestion pipelines
const (
	EventKill       = "kill"
	EventSuicide    = "suicide"
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
	EventMission    = "mission"
	EventWorldEvent = "world_event"
)

// Source formats an event can be extracted from
const (
	SourceCSV = "csv"
	SourceLog = "log"
)

// NormalizedEvent is the canonical event shape handed to the event sink.
// Every extractor output is converted into this before deduplication, so
// downstream consumers never see format-specific field names.
type NormalizedEvent struct {
	ID         string    `json:"id"`
	TenantID   int64     `json:"tenant_id"`
	ServerID   string    `json:"server_id"`
	Kind       string    `json:"kind"`
	Timestamp  time.Time `json:"timestamp"`
	ActorID    string    `json:"actor_id,omitempty"`
	ActorName  string    `json:"actor_name"`
	TargetID   string    `json:"target_id,omitempty"`
	TargetName string    `json:"target_name,omitempty"`
	Weapon     string    `json:"weapon,omitempty"`
	Distance   int       `json:"distance,omitempty"`
	Location   string    `json:"location,omitempty"`
	RawSource  string    `json:"raw_source"`
}

// KillLike reports whether the event carries actor/target/weapon semantics
// (used for fingerprinting and notification toggles).
func (e *NormalizedEvent) KillLike() bool {
	return e.Kind == EventKill || e.Kind == EventSuicide
}

// ConnectionLike reports whether the event is a player connect/disconnect.
func (e *NormalizedEvent) ConnectionLike() bool {
	return e.Kind == EventConnect || e.Kind == EventDisconnect
}
