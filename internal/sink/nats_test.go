package sink

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/arven/deadwatch/internal/domain"
)

func runTestBroker(t *testing.T) *natsserver.Server {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1})
	if err != nil {
		t.Fatalf("starting broker: %v", err)
	}
	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("broker not ready")
	}
	t.Cleanup(srv.Shutdown)
	return srv
}

func TestNATSSinkPublishesEvents(t *testing.T) {
	broker := runTestBroker(t)

	s, err := NewNATSSink(broker.ClientURL())
	if err != nil {
		t.Fatalf("NewNATSSink: %v", err)
	}
	defer s.Close()

	nc, err := nats.Connect(broker.ClientURL())
	if err != nil {
		t.Fatalf("subscriber connect: %v", err)
	}
	defer nc.Close()

	sub, err := nc.SubscribeSync("deadwatch.events.>")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	nc.Flush()

	ev := domain.NormalizedEvent{
		ID:         "ev-1",
		TenantID:   7,
		ServerID:   "srv-1",
		Kind:       domain.EventKill,
		Timestamp:  time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
		ActorName:  "Player A",
		TargetName: "Player B",
		Weapon:     "Rifle",
		Distance:   250,
		RawSource:  domain.SourceLog,
	}
	if err := s.Deliver(context.Background(), &ev); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	msg, err := sub.NextMsg(5 * time.Second)
	if err != nil {
		t.Fatalf("no message received: %v", err)
	}
	if msg.Subject != "deadwatch.events.7.srv-1.kill" {
		t.Errorf("subject = %q, want deadwatch.events.7.srv-1.kill", msg.Subject)
	}

	var got domain.NormalizedEvent
	if err := json.Unmarshal(msg.Data, &got); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if got.ID != "ev-1" || got.ActorName != "Player A" || got.Distance != 250 {
		t.Errorf("payload = %+v", got)
	}
}

func TestNATSSinkPublishesNotifications(t *testing.T) {
	broker := runTestBroker(t)

	s, err := NewNATSSink(broker.ClientURL())
	if err != nil {
		t.Fatalf("NewNATSSink: %v", err)
	}
	defer s.Close()

	nc, err := nats.Connect(broker.ClientURL())
	if err != nil {
		t.Fatalf("subscriber connect: %v", err)
	}
	defer nc.Close()

	sub, err := nc.SubscribeSync("deadwatch.notify.7")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	nc.Flush()

	s.Notify(7, Notification{
		Kind:     NotifyMonitorFailed,
		TenantID: 7,
		ServerID: "srv-1",
		Monitor:  domain.MonitorKillfeed,
		Message:  "gave up after 10 reconnect attempts",
	})

	msg, err := sub.NextMsg(5 * time.Second)
	if err != nil {
		t.Fatalf("no notification received: %v", err)
	}
	var got Notification
	if err := json.Unmarshal(msg.Data, &got); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if got.Kind != NotifyMonitorFailed || got.ServerID != "srv-1" {
		t.Errorf("notification = %+v", got)
	}
}
