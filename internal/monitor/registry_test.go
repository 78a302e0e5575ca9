package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arven/deadwatch/internal/domain"
	"github.com/arven/deadwatch/internal/pipeline"
	"github.com/arven/deadwatch/internal/transport"
)

func newTestSupervisor(t *testing.T, session *fakeSession) *Supervisor {
	t.Helper()
	sup, err := NewSupervisor(testConn(), domain.MonitorKillfeed, testMonitorConfig(),
		func() transport.Session { return session },
		pipeline.NewDeduplicator(0), newFakeSink(), &fakeNotifier{}, newFakeCursors())
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}
	return sup
}

func TestRegistryStartAndStop(t *testing.T) {
	r := NewRegistry()
	sup := newTestSupervisor(t, &fakeSession{lines: []string{csvLine(1, 10)}})

	if err := r.Start(context.Background(), sup); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, ok := r.Status(sup.Key()); !ok {
		t.Error("started monitor not tracked")
	}

	if err := r.Stop(sup.Key()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, ok := r.Status(sup.Key()); ok {
		t.Error("stopped monitor still tracked")
	}
	if err := r.Stop(sup.Key()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("second Stop = %v, want ErrNotRunning", err)
	}
}

func TestRegistryStopWaitsForSessionClose(t *testing.T) {
	// The key stays occupied until the old monitor's session is closed, so
	// a replacement cannot run alongside a half-torn-down predecessor.
	gate := make(chan struct{})
	session := &fakeSession{lines: []string{csvLine(1, 10)}, closeGate: gate}
	r := NewRegistry()

	first := newTestSupervisor(t, session)
	if err := r.Start(context.Background(), first); err != nil {
		t.Fatalf("Start: %v", err)
	}

	stopDone := make(chan error, 1)
	go func() { stopDone <- r.Stop(first.Key()) }()

	// Give Stop time to cancel and block on the gated session close.
	time.Sleep(10 * time.Millisecond)

	replacement := newTestSupervisor(t, &fakeSession{lines: []string{csvLine(2, 20)}})
	if err := r.Start(context.Background(), replacement); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Start during teardown = %v, want ErrAlreadyRunning", err)
	}

	close(gate)
	select {
	case err := <-stopDone:
		if err != nil {
			t.Fatalf("Stop: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stop never returned after session close")
	}

	if err := r.Start(context.Background(), replacement); err != nil {
		t.Errorf("Start after teardown = %v, want nil", err)
	}
	r.StopAll()
}

func TestRegistryRejectsDuplicateKey(t *testing.T) {
	r := NewRegistry()
	defer r.StopAll()

	first := newTestSupervisor(t, &fakeSession{lines: []string{csvLine(1, 10)}})
	second := newTestSupervisor(t, &fakeSession{lines: []string{csvLine(2, 20)}})

	if err := r.Start(context.Background(), first); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Start(context.Background(), second); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("duplicate Start = %v, want ErrAlreadyRunning", err)
	}
}

func TestRegistryReapsDeadMonitor(t *testing.T) {
	r := NewRegistry()
	defer r.StopAll()

	cfg := testMonitorConfig()
	dead, err := NewSupervisor(testConn(), domain.MonitorKillfeed, cfg,
		func() transport.Session { return &fakeSession{connectErrs: -1} },
		pipeline.NewDeduplicator(0), newFakeSink(), &fakeNotifier{}, newFakeCursors())
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}

	if err := r.Start(context.Background(), dead); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Wait for the reconnect budget to run out; the key stays occupied so
	// operators can still see the failure.
	deadline := time.After(5 * time.Second)
	for {
		st, ok := r.Status(dead.Key())
		if ok && st.State == domain.StateStopped {
			break
		}
		select {
		case <-deadline:
			t.Fatal("monitor never reached stopped state")
		case <-time.After(time.Millisecond):
		}
	}

	// A new Start on the same key reaps the dead handle.
	replacement := newTestSupervisor(t, &fakeSession{lines: []string{csvLine(1, 10)}})
	if err := r.Start(context.Background(), replacement); err != nil {
		t.Errorf("Start after terminal failure = %v, want nil", err)
	}
}

func TestRegistryStopAll(t *testing.T) {
	r := NewRegistry()

	killfeed := newTestSupervisor(t, &fakeSession{lines: []string{csvLine(1, 10)}})

	logConn := testConn()
	logConn.LogPath = "/logs"
	logSup, err := NewSupervisor(logConn, domain.MonitorLog, testMonitorConfig(),
		func() transport.Session { return &fakeSession{} },
		pipeline.NewDeduplicator(0), newFakeSink(), &fakeNotifier{}, newFakeCursors())
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}

	if err := r.Start(context.Background(), killfeed); err != nil {
		t.Fatalf("Start killfeed: %v", err)
	}
	if err := r.Start(context.Background(), logSup); err != nil {
		t.Fatalf("Start log: %v", err)
	}

	if got := len(r.Statuses()); got != 2 {
		t.Fatalf("Statuses() len = %d, want 2", got)
	}

	r.StopAll()
	if got := len(r.Statuses()); got != 0 {
		t.Errorf("Statuses() len = %d after StopAll, want 0", got)
	}
}
