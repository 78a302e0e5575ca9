package monitor

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/arven/deadwatch/internal/config"
	"github.com/arven/deadwatch/internal/domain"
	"github.com/arven/deadwatch/internal/pipeline"
	"github.com/arven/deadwatch/internal/sink"
	"github.com/arven/deadwatch/internal/transport"
)

// Manager wires the configured servers to the registry. It owns the shared
// dedup coordinator so the killfeed and log monitors of a server suppress
// each other's duplicates.
type Manager struct {
	cfg      *config.Config
	dedup    *pipeline.Deduplicator
	persist  sink.Sink
	publish  sink.Sink
	notifier sink.Notifier
	cursors  CursorStore
	registry *Registry
	events   chan domain.NormalizedEvent

	mu    sync.RWMutex
	conns map[string]domain.ServerConnection
}

// NewManager builds a manager from configuration. persist receives every
// accepted event unconditionally; publish (optional, may be nil) and the
// manager's own live channel only receive events whose kind the server has
// notifications enabled for.
func NewManager(cfg *config.Config, persist, publish sink.Sink, notifier sink.Notifier, cursors CursorStore) (*Manager, error) {
	conns, err := cfg.Connections()
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:      cfg,
		dedup:    pipeline.NewDeduplicator(cfg.Monitor.DedupHighWater),
		persist:  persist,
		publish:  publish,
		notifier: notifier,
		cursors:  cursors,
		registry: NewRegistry(),
		events:   make(chan domain.NormalizedEvent, 256),
		conns:    make(map[string]domain.ServerConnection),
	}

	for _, conn := range conns {
		m.conns[connKey(conn.TenantID, conn.ServerID)] = conn
	}
	return m, nil
}

// eventSinks composes the delivery chain for one server. The database leg
// runs first and never skips; the user-visible legs honor the server's
// per-event-kind notification toggles.
func (m *Manager) eventSinks(conn domain.ServerConnection) sink.Sink {
	visible := sink.Multi{}
	if m.publish != nil {
		visible = append(visible, m.publish)
	}
	visible = append(visible, sink.Func(m.broadcast))
	return sink.Multi{m.persist, sink.FilterKinds(visible, conn.NotifyEnabled)}
}

func connKey(tenantID int64, serverID string) string {
	return fmt.Sprintf("%d_%s", tenantID, serverID)
}

// broadcast pushes an event to the live channel, dropping when full so slow
// websocket consumers never stall ingestion.
func (m *Manager) broadcast(_ context.Context, ev *domain.NormalizedEvent) error {
	select {
	case m.events <- *ev:
	default:
	}
	return nil
}

// Events returns the live event channel for websocket broadcasting.
func (m *Manager) Events() <-chan domain.NormalizedEvent {
	return m.events
}

// StartAll launches every monitor that has configuration. Individual start
// failures are logged, not fatal: one bad server must not block the rest.
func (m *Manager) StartAll(ctx context.Context) {
	m.mu.RLock()
	conns := make([]domain.ServerConnection, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	for _, conn := range conns {
		for _, kind := range []string{domain.MonitorKillfeed, domain.MonitorLog} {
			key := domain.MonitorKey{TenantID: conn.TenantID, ServerID: conn.ServerID, Kind: kind}
			if err := m.StartMonitor(ctx, key); err != nil && err != ErrNotConfigured {
				log.Printf("monitor %s: start failed: %v", key, err)
			}
		}
	}
}

// StartMonitor starts one monitor by key.
func (m *Manager) StartMonitor(ctx context.Context, key domain.MonitorKey) error {
	m.mu.RLock()
	conn, ok := m.conns[connKey(key.TenantID, key.ServerID)]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown server %s in tenant %d", key.ServerID, key.TenantID)
	}

	sup, err := NewSupervisor(conn, key.Kind, m.cfg.Monitor,
		transport.NewFactory(conn), m.dedup, m.eventSinks(conn), m.notifier, m.cursors)
	if err != nil {
		return err
	}
	return m.registry.Start(ctx, sup)
}

// StopMonitor stops one monitor by key and waits for it to exit.
func (m *Manager) StopMonitor(key domain.MonitorKey) error {
	return m.registry.Stop(key)
}

// Stop shuts down every monitor and closes the live event channel.
func (m *Manager) Stop() {
	log.Println("monitor manager: stopping...")
	m.registry.StopAll()
	close(m.events)
	log.Println("monitor manager: shutdown complete")
}

// Statuses returns the status of every tracked monitor.
func (m *Manager) Statuses() []domain.MonitorStatus {
	return m.registry.Statuses()
}

// Connections returns the configured server connections.
func (m *Manager) Connections() []domain.ServerConnection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conns := make([]domain.ServerConnection, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	return conns
}
