package monitor

import (
	"context"
	"testing"

	"github.com/arven/deadwatch/internal/config"
	"github.com/arven/deadwatch/internal/domain"
	"github.com/arven/deadwatch/internal/sink"
)

func TestManagerEventSinkToggles(t *testing.T) {
	persist := newFakeSink()
	publish := newFakeSink()
	m, err := NewManager(&config.Config{}, persist, publish, sink.LogNotifier{}, newFakeCursors())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	conn := testConn()
	conn.Notifications = map[string]bool{domain.EventKill: false}
	sinks := m.eventSinks(conn)

	kill := &domain.NormalizedEvent{ID: "ev-1", TenantID: 1, ServerID: "srv-1", Kind: domain.EventKill}
	connect := &domain.NormalizedEvent{ID: "ev-2", TenantID: 1, ServerID: "srv-1", Kind: domain.EventConnect}
	for _, ev := range []*domain.NormalizedEvent{kill, connect} {
		if err := sinks.Deliver(context.Background(), ev); err != nil {
			t.Fatalf("Deliver %s: %v", ev.ID, err)
		}
	}

	// The database leg sees everything.
	if got := persist.events(); len(got) != 2 {
		t.Errorf("persisted %d events, want 2", len(got))
	}

	// The publish leg and the live feed skip the disabled kind.
	published := publish.events()
	if len(published) != 1 || published[0].ID != "ev-2" {
		t.Errorf("published = %v, want just ev-2", published)
	}

	m.Stop()
	var live []domain.NormalizedEvent
	for ev := range m.Events() {
		live = append(live, ev)
	}
	if len(live) != 1 || live[0].ID != "ev-2" {
		t.Errorf("live feed = %v, want just ev-2", live)
	}
}

func TestManagerEventSinksWithoutPublisher(t *testing.T) {
	persist := newFakeSink()
	m, err := NewManager(&config.Config{}, persist, nil, sink.LogNotifier{}, newFakeCursors())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer m.Stop()

	ev := &domain.NormalizedEvent{ID: "ev-1", TenantID: 1, ServerID: "srv-1", Kind: domain.EventKill}
	if err := m.eventSinks(testConn()).Deliver(context.Background(), ev); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if got := persist.events(); len(got) != 1 {
		t.Errorf("persisted %d events, want 1", len(got))
	}
}
