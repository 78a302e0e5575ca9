package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"

	"github.com/arven/deadwatch/internal/domain"
)

// Subject prefixes for the NATS surface.
const (
	eventSubjectPrefix  = "deadwatch.events"
	notifySubjectPrefix = "deadwatch.notify"
)

// NATSSink publishes events to a NATS broker so external consumers
// (Discord relays, dashboards) can subscribe without touching the database.
type NATSSink struct {
	nc *nats.Conn
}

// NewNATSSink connects to the broker at url.
func NewNATSSink(url string) (*NATSSink, error) {
	nc, err := nats.Connect(url,
		nats.Name("deadwatch"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("nats: disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("nats: reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	return &NATSSink{nc: nc}, nil
}

// Close drains and closes the connection.
func (s *NATSSink) Close() {
	if err := s.nc.Drain(); err != nil {
		log.Printf("nats: drain: %v", err)
	}
}

// Deliver publishes the event on deadwatch.events.<tenant>.<server>.<kind>.
func (s *NATSSink) Deliver(ctx context.Context, ev *domain.NormalizedEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", ev.ID, err)
	}
	subject := fmt.Sprintf("%s.%d.%s.%s", eventSubjectPrefix, ev.TenantID, ev.ServerID, ev.Kind)
	if err := s.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing event %s: %w", ev.ID, err)
	}
	return nil
}

// Notify publishes a monitor lifecycle notification on
// deadwatch.notify.<tenant>. Notifications are best effort: failures are
// logged and never fail the monitor.
func (s *NATSSink) Notify(tenantID int64, n Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		log.Printf("nats: encoding notification: %v", err)
		return
	}
	subject := fmt.Sprintf("%s.%d", notifySubjectPrefix, tenantID)
	if err := s.nc.Publish(subject, data); err != nil {
		log.Printf("nats: publishing notification: %v", err)
	}
}
