// Package pipeline converts extracted raw events into canonical normalized
// events and suppresses duplicates across ingestion pipelines.
package pipeline

import (
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/arven/deadwatch/internal/domain"
	"github.com/arven/deadwatch/internal/extract"
)

// gameTimeLayout is the timestamp format written by the game server itself.
const gameTimeLayout = "2006.01.02-15.04.05"

// Normalizer converts RawEvents into NormalizedEvents for one server.
type Normalizer struct {
	tenantID int64
	serverID string
	now      func() time.Time
}

// NewNormalizer creates a normalizer bound to a tenant and server.
func NewNormalizer(tenantID int64, serverID string) *Normalizer {
	return &Normalizer{
		tenantID: tenantID,
		serverID: serverID,
		now:      time.Now,
	}
}

// Normalize converts a raw event into the canonical event shape. It never
// fails: missing timestamps fall back to ingestion time and missing names
// become empty strings rather than nulls.
func (n *Normalizer) Normalize(raw extract.RawEvent) domain.NormalizedEvent {
	ev := domain.NormalizedEvent{
		ID:        uuid.NewString(),
		TenantID:  n.tenantID,
		ServerID:  n.serverID,
		Kind:      raw.Type,
		Timestamp: n.parseTimestamp(raw.Fields["timestamp"]),
		RawSource: raw.SourceFormat,
	}

	switch raw.Type {
	case domain.EventKill:
		ev.ActorID = raw.Fields["killer_id"]
		ev.ActorName = raw.Fields["killer_name"]
		ev.TargetID = raw.Fields["victim_id"]
		ev.TargetName = raw.Fields["victim_name"]
		ev.Weapon = raw.Fields["weapon"]
		ev.Distance = parseDistance(raw.Fields["distance"])
		// Killfeed rows report suicides as self-kills.
		if sameActor(&ev) {
			ev.Kind = domain.EventSuicide
		}
	case domain.EventSuicide:
		ev.ActorID = raw.Fields["victim_id"]
		ev.ActorName = raw.Fields["victim_name"]
		ev.TargetID = ev.ActorID
		ev.TargetName = ev.ActorName
		ev.Weapon = raw.Fields["weapon"]
	case domain.EventConnect, domain.EventDisconnect:
		ev.ActorID = raw.Fields["player_id"]
		ev.ActorName = raw.Fields["player_name"]
	case domain.EventMission:
		ev.ActorName = raw.Fields["mission_name"]
		ev.Location = raw.Fields["state"]
	case domain.EventWorldEvent:
		ev.ActorName = raw.Fields["event_name"]
		ev.Weapon = raw.Fields["state"]
		ev.Location = raw.Fields["location"]
	}

	return ev
}

// parseTimestamp tries RFC3339 first, then the game's own layout. When both
// fail the event keeps ingestion time so it is never dropped for a bad clock.
func (n *Normalizer) parseTimestamp(value string) time.Time {
	if value == "" {
		return n.now().UTC()
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC()
	}
	if ts, err := time.Parse(gameTimeLayout, value); err == nil {
		return ts.UTC()
	}
	log.Printf("pipeline: unparseable timestamp %q on %d/%s, using ingestion time", value, n.tenantID, n.serverID)
	return n.now().UTC()
}

func parseDistance(value string) int {
	if value == "" {
		return 0
	}
	d, err := strconv.Atoi(value)
	if err != nil {
		// Some builds write "250m" instead of a bare number.
		d, err = strconv.Atoi(trimSuffixM(value))
		if err != nil {
			return 0
		}
	}
	if d < 0 {
		return 0
	}
	return d
}

func trimSuffixM(s string) string {
	if len(s) > 1 && (s[len(s)-1] == 'm' || s[len(s)-1] == 'M') {
		return s[:len(s)-1]
	}
	return s
}

// sameActor reports whether a kill row is actually a self-kill. IDs are
// compared when both sides carry one, names otherwise.
func sameActor(ev *domain.NormalizedEvent) bool {
	if ev.ActorID != "" && ev.TargetID != "" {
		return ev.ActorID == ev.TargetID
	}
	return ev.ActorName != "" && ev.ActorName == ev.TargetName
}
