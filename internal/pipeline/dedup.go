package pipeline

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/arven/deadwatch/internal/domain"
)

// DefaultDedupHighWater caps how many fingerprints the coordinator keeps
// before compacting to the newest half.
const DefaultDedupHighWater = 8192

// Deduplicator suppresses events already seen by any pipeline in the process.
// The killfeed CSV and the game log frequently describe the same kill, so the
// coordinator is shared across all monitors and injectable for tests.
type Deduplicator struct {
	mu        sync.Mutex
	seen      map[uint64]int64
	order     []uint64
	highWater int
	seq       int64
}

// NewDeduplicator creates a deduplicator. highWater <= 0 selects the default.
func NewDeduplicator(highWater int) *Deduplicator {
	if highWater <= 0 {
		highWater = DefaultDedupHighWater
	}
	return &Deduplicator{
		seen:      make(map[uint64]int64),
		highWater: highWater,
	}
}

// Seen records the event's fingerprint and reports whether it was already
// present. The first observation wins regardless of which pipeline saw it.
func (d *Deduplicator) Seen(ev *domain.NormalizedEvent) bool {
	fp := Fingerprint(ev)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[fp]; ok {
		return true
	}
	d.seq++
	d.seen[fp] = d.seq
	d.order = append(d.order, fp)
	if len(d.order) > d.highWater {
		d.compact()
	}
	return false
}

// Forget withdraws a fingerprint just recorded by Seen. The monitor calls it
// when delivering a fresh event fails, so the replayed poll does not suppress
// an event that never reached a sink.
func (d *Deduplicator) Forget(ev *domain.NormalizedEvent) {
	fp := Fingerprint(ev)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[fp]; !ok {
		return
	}
	delete(d.seen, fp)
	if n := len(d.order); n > 0 && d.order[n-1] == fp {
		d.order = d.order[:n-1]
	}
}

// compact drops the oldest half of the remembered fingerprints. Called with
// the mutex held.
func (d *Deduplicator) compact() {
	keepFrom := len(d.order) / 2
	for _, fp := range d.order[:keepFrom] {
		delete(d.seen, fp)
	}
	kept := make([]uint64, len(d.order)-keepFrom)
	copy(kept, d.order[keepFrom:])
	d.order = kept
}

// Size returns the number of remembered fingerprints.
func (d *Deduplicator) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.order)
}

// Fingerprint computes a stable fnv64a identity for an event. Kill-like
// events hash on player names rather than IDs because the game log carries
// names only; names are the key both pipelines share. Timestamps are rounded
// to the second since the two sources record them at different precision.
func Fingerprint(ev *domain.NormalizedEvent) uint64 {
	h := fnv.New64a()

	ts := ev.Timestamp.Truncate(time.Second).Unix()
	switch {
	case ev.KillLike():
		fmt.Fprintf(h, "%s|%s|%d|%s|%s|%s|%d", ev.ServerID, ev.Kind, ts, ev.ActorName, ev.TargetName, ev.Weapon, ev.Distance)
	case ev.ConnectionLike():
		fmt.Fprintf(h, "%s|%s|%d|%s", ev.ServerID, ev.Kind, ts, ev.ActorName)
	default:
		fmt.Fprintf(h, "%s|%s|%d|%s|%s|%s", ev.ServerID, ev.Kind, ts, ev.ActorName, ev.Weapon, ev.Location)
	}

	return h.Sum64()
}
