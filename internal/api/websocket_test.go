package api

import (
	"testing"
	"time"

	"github.com/arven/deadwatch/internal/domain"
)

func waitForClients(t *testing.T, hub *WebSocketHub, want int) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for hub.ClientCount() != want {
		select {
		case <-deadline:
			t.Fatalf("ClientCount = %d, want %d", hub.ClientCount(), want)
		case <-time.After(time.Millisecond):
		}
	}
}

func TestHubRemovesSlowClient(t *testing.T) {
	hub := NewWebSocketHub()
	go hub.Run()

	// An unbuffered send channel with no reader: the first broadcast cannot
	// be queued, so the hub drops the client.
	client := &WebSocketClient{hub: hub, send: make(chan []byte), remoteAddr: "test"}
	hub.register <- client
	waitForClients(t, hub, 1)

	hub.Broadcast(domain.NormalizedEvent{ID: "ev-1", Kind: domain.EventKill})
	waitForClients(t, hub, 0)

	if _, ok := <-client.send; ok {
		t.Error("dropped client's send channel left open")
	}
}

func TestHubBroadcastReachesClients(t *testing.T) {
	hub := NewWebSocketHub()
	go hub.Run()

	client := &WebSocketClient{hub: hub, send: make(chan []byte, 4), remoteAddr: "test"}
	hub.register <- client
	waitForClients(t, hub, 1)

	hub.Broadcast(domain.NormalizedEvent{ID: "ev-1", Kind: domain.EventKill})
	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("empty broadcast payload")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("broadcast never reached the client")
	}

	hub.unregister <- client
	waitForClients(t, hub, 0)
}
