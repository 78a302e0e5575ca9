package monitor

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/arven/deadwatch/internal/domain"
)

// ErrAlreadyRunning is returned when starting a monitor that is running.
var ErrAlreadyRunning = errors.New("monitor already running")

// ErrNotRunning is returned when stopping a monitor that is not running.
var ErrNotRunning = errors.New("monitor not running")

// running holds one live monitor goroutine and its cancellation handle.
type running struct {
	sup    *Supervisor
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry tracks live monitor goroutines by key. A key can hold at most one
// monitor at a time; a monitor whose goroutine has exited (terminal failure)
// still occupies its key until reaped by Start or Stop.
type Registry struct {
	mu       sync.Mutex
	monitors map[string]*running
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{monitors: make(map[string]*running)}
}

// Start launches the supervisor in a goroutine. If a monitor already holds
// the key, the dead ones are reaped first and live ones make Start fail.
func (r *Registry) Start(ctx context.Context, sup *Supervisor) error {
	key := sup.Key().String()

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.monitors[key]; ok {
		select {
		case <-existing.done:
			delete(r.monitors, key)
		default:
			return ErrAlreadyRunning
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	rn := &running{sup: sup, cancel: cancel, done: make(chan struct{})}
	r.monitors[key] = rn

	go func() {
		defer close(rn.done)
		sup.Run(runCtx)
	}()
	return nil
}

// Stop cancels the monitor and waits for its goroutine to exit. The entry
// stays in the map until the goroutine (and its deferred session close) has
// finished, so a concurrent Start for the same key cannot race the teardown.
func (r *Registry) Stop(key domain.MonitorKey) error {
	r.mu.Lock()
	rn, ok := r.monitors[key.String()]
	r.mu.Unlock()
	if !ok {
		return ErrNotRunning
	}

	rn.cancel()
	<-rn.done

	r.mu.Lock()
	if cur, ok := r.monitors[key.String()]; ok && cur == rn {
		delete(r.monitors, key.String())
	}
	r.mu.Unlock()
	return nil
}

// StopAll cancels every monitor and waits for all of them. Like Stop, keys
// are only released after their goroutines have fully exited.
func (r *Registry) StopAll() {
	r.mu.Lock()
	all := make(map[string]*running, len(r.monitors))
	for key, rn := range r.monitors {
		all[key] = rn
	}
	r.mu.Unlock()

	for _, rn := range all {
		rn.cancel()
	}
	for _, rn := range all {
		<-rn.done
	}

	r.mu.Lock()
	for key, rn := range all {
		if cur, ok := r.monitors[key]; ok && cur == rn {
			delete(r.monitors, key)
		}
	}
	r.mu.Unlock()
}

// Statuses returns a snapshot of every tracked monitor, sorted by key.
func (r *Registry) Statuses() []domain.MonitorStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	statuses := make([]domain.MonitorStatus, 0, len(r.monitors))
	for _, rn := range r.monitors {
		statuses = append(statuses, rn.sup.Status())
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Key.String() < statuses[j].Key.String()
	})
	return statuses
}

// Status returns the status for one monitor, if tracked.
func (r *Registry) Status(key domain.MonitorKey) (domain.MonitorStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rn, ok := r.monitors[key.String()]
	if !ok {
		return domain.MonitorStatus{}, false
	}
	return rn.sup.Status(), true
}
