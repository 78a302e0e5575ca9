// Package monitor runs the background ingestion loops. Each monitor owns one
// remote file (killfeed CSV or game log) on one server and drives the poll,
// extract, normalize, dedup, deliver cycle against a persisted line cursor.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"sync"
	"time"

	"github.com/arven/deadwatch/internal/config"
	"github.com/arven/deadwatch/internal/domain"
	"github.com/arven/deadwatch/internal/extract"
	"github.com/arven/deadwatch/internal/metrics"
	"github.com/arven/deadwatch/internal/pipeline"
	"github.com/arven/deadwatch/internal/sink"
	"github.com/arven/deadwatch/internal/transport"
)

// ErrNotConfigured is returned when a server has no file paths for the
// requested monitor kind.
var ErrNotConfigured = errors.New("monitor not configured for this server")

// maxConsecutivePollErrors is how many poll cycles may fail in a row before
// the monitor drops the session and reconnects.
const maxConsecutivePollErrors = 5

var (
	killfeedFilePattern = regexp.MustCompile(`(?i)\.csv$`)
	logFilePattern      = regexp.MustCompile(`(?i)\.(log|adm)$`)
)

// CursorStore persists line cursors between polls and process restarts.
type CursorStore interface {
	GetCursor(ctx context.Context, tenantID int64, serverID, fileKind string) (*domain.ReadCursor, error)
	SaveCursor(ctx context.Context, cur *domain.ReadCursor) error
	ResetCursor(ctx context.Context, tenantID int64, serverID, fileKind string) error
}

// Supervisor drives one monitor loop. It is created per Start call and never
// reused after Run returns.
type Supervisor struct {
	key      domain.MonitorKey
	conn     domain.ServerConnection
	cfg      config.MonitorConfig
	factory  transport.Factory
	extr     extract.Extractor
	norm     *pipeline.Normalizer
	dedup    *pipeline.Deduplicator
	sink     sink.Sink
	notifier sink.Notifier
	cursors  CursorStore

	dirs     []string
	pattern  *regexp.Regexp
	fileKind string

	mu        sync.Mutex
	state     string
	startedAt time.Time
	lastErr   string
}

// NewSupervisor builds a supervisor for one (server, kind) pair. Returns
// ErrNotConfigured when the server config has no paths for the kind.
func NewSupervisor(conn domain.ServerConnection, kind string, cfg config.MonitorConfig,
	factory transport.Factory, dedup *pipeline.Deduplicator, events sink.Sink,
	notifier sink.Notifier, cursors CursorStore) (*Supervisor, error) {

	s := &Supervisor{
		key:      domain.MonitorKey{TenantID: conn.TenantID, ServerID: conn.ServerID, Kind: kind},
		conn:     conn,
		cfg:      cfg,
		factory:  factory,
		norm:     pipeline.NewNormalizer(conn.TenantID, conn.ServerID),
		dedup:    dedup,
		sink:     events,
		notifier: notifier,
		cursors:  cursors,
		state:    domain.StateIdle,
	}

	switch kind {
	case domain.MonitorKillfeed:
		if len(conn.KillfeedPaths) == 0 {
			return nil, ErrNotConfigured
		}
		s.dirs = conn.KillfeedPaths
		s.pattern = killfeedFilePattern
		s.fileKind = domain.FileKindKillfeed
		s.extr = extract.NewKillfeedExtractor()
	case domain.MonitorLog:
		if conn.LogPath == "" {
			return nil, ErrNotConfigured
		}
		s.dirs = []string{conn.LogPath}
		s.pattern = logFilePattern
		s.fileKind = domain.FileKindLog
		s.extr = extract.NewGameLogExtractor()
	default:
		return nil, fmt.Errorf("unknown monitor kind %q", kind)
	}

	return s, nil
}

// Key returns the monitor's identity.
func (s *Supervisor) Key() domain.MonitorKey {
	return s.key
}

// Status returns an operator-visible snapshot.
func (s *Supervisor) Status() domain.MonitorStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.MonitorStatus{
		Key:        s.key,
		ServerName: s.conn.Name,
		State:      s.state,
		StartedAt:  s.startedAt,
		LastError:  s.lastErr,
	}
}

func (s *Supervisor) setState(state string) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Supervisor) setError(err error) {
	s.mu.Lock()
	if err != nil {
		s.lastErr = err.Error()
	}
	s.mu.Unlock()
}

// Run executes the monitor loop until ctx is cancelled or the reconnect
// budget is exhausted. It always closes the session before returning.
func (s *Supervisor) Run(ctx context.Context) {
	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.state = domain.StateConnecting
	s.mu.Unlock()

	s.notify(sink.NotifyMonitorStarted, "monitor started")
	log.Printf("monitor %s: starting", s.key)

	session := s.factory()
	defer session.Close()

	backoff := transport.NewBackoff(s.cfg.BackoffBase, s.cfg.BackoffMax)
	reconnects := 0

	for {
		if err := session.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				s.finish("monitor stopped")
				return
			}
			s.setError(err)
			reconnects++
			metrics.Reconnects.WithLabelValues(s.key.String()).Inc()
			if reconnects > s.cfg.MaxReconnects {
				log.Printf("monitor %s: giving up after %d reconnect attempts: %v", s.key, reconnects-1, err)
				s.fail(fmt.Sprintf("gave up after %d reconnect attempts: %v", reconnects-1, err))
				return
			}
			s.setState(domain.StateReconnecting)
			log.Printf("monitor %s: connect failed (attempt %d/%d): %v", s.key, reconnects, s.cfg.MaxReconnects, err)
			if !sleep(ctx, backoff.Next()) {
				s.finish("monitor stopped")
				return
			}
			continue
		}

		// Connected. A successful poll on this session restores the full
		// reconnect budget.
		s.setState(domain.StatePolling)
		progressed, err := s.pollLoop(ctx, session)
		if ctx.Err() != nil {
			s.finish("monitor stopped")
			return
		}
		if progressed {
			reconnects = 0
			backoff.Reset()
		}

		// pollLoop only returns with an error that warrants a reconnect.
		s.setError(err)
		session.Close()
		reconnects++
		metrics.Reconnects.WithLabelValues(s.key.String()).Inc()
		if reconnects > s.cfg.MaxReconnects {
			log.Printf("monitor %s: giving up after %d reconnect attempts: %v", s.key, reconnects-1, err)
			s.fail(fmt.Sprintf("gave up after %d reconnect attempts: %v", reconnects-1, err))
			return
		}
		s.setState(domain.StateReconnecting)
		log.Printf("monitor %s: reconnecting (attempt %d/%d): %v", s.key, reconnects, s.cfg.MaxReconnects, err)
		if !sleep(ctx, backoff.Next()) {
			s.finish("monitor stopped")
			return
		}
	}
}

// pollLoop polls until cancellation or an error that requires a reconnect.
// progressed reports whether at least one poll completed cleanly.
func (s *Supervisor) pollLoop(ctx context.Context, session transport.Session) (progressed bool, _ error) {
	consecutive := 0
	lastProgress := time.Now()

	for {
		err := s.pollOnce(ctx, session)
		if ctx.Err() != nil {
			return progressed, ctx.Err()
		}
		switch {
		case errors.Is(err, transport.ErrNoFile):
			// The server answered; the export simply does not exist yet.
			// Keep waiting. lastProgress stays put so the staleness rule
			// still cycles the connection during a prolonged absence.
			progressed = true
			consecutive = 0
			log.Printf("monitor %s: no matching remote file yet, waiting", s.key)
		case err != nil:
			if transport.IsRetryable(err) {
				return progressed, err
			}
			consecutive++
			s.setError(err)
			log.Printf("monitor %s: poll error (%d/%d): %v", s.key, consecutive, maxConsecutivePollErrors, err)
			if consecutive >= maxConsecutivePollErrors {
				return progressed, fmt.Errorf("%d consecutive poll errors, last: %w", consecutive, err)
			}
		default:
			progressed = true
			consecutive = 0
			lastProgress = time.Now()
		}

		// A healthy session answers probes; prolonged silence usually means
		// a half-dead connection that never errors.
		if s.cfg.ProbeStaleAfter > 0 && time.Since(lastProgress) > s.cfg.ProbeStaleAfter {
			return progressed, fmt.Errorf("no successful poll for %s", s.cfg.ProbeStaleAfter)
		}

		if !sleep(ctx, s.cfg.PollInterval) {
			return progressed, ctx.Err()
		}
	}
}

// pollOnce performs a single probe-read-deliver cycle. The cursor only
// advances after every accepted event was delivered, so a failed poll is
// replayed in full on the next cycle and deduplication absorbs the repeats.
func (s *Supervisor) pollOnce(ctx context.Context, session transport.Session) error {
	path, err := session.LatestFile(ctx, s.dirs, s.pattern)
	if err != nil {
		return fmt.Errorf("probing latest file: %w", err)
	}

	total, err := session.LineCount(ctx, path)
	if err != nil {
		return fmt.Errorf("counting lines in %s: %w", path, err)
	}

	cur, err := s.cursors.GetCursor(ctx, s.key.TenantID, s.key.ServerID, s.fileKind)
	if err != nil {
		return fmt.Errorf("loading cursor: %w", err)
	}

	// A shorter file than the cursor means the remote rotated; start over.
	if total < cur.LastLine {
		log.Printf("monitor %s: %s rotated (%d lines, cursor at %d), resetting cursor", s.key, path, total, cur.LastLine)
		if err := s.cursors.ResetCursor(ctx, s.key.TenantID, s.key.ServerID, s.fileKind); err != nil {
			return fmt.Errorf("resetting cursor: %w", err)
		}
		cur.LastLine = 0
	}

	if total == cur.LastLine {
		return nil
	}

	lines, err := session.ReadLines(ctx, path, cur.LastLine, s.cfg.MaxLinesPerPoll)
	if err != nil {
		return fmt.Errorf("reading %s from line %d: %w", path, cur.LastLine, err)
	}
	if len(lines) == 0 {
		return nil
	}
	metrics.LinesRead.WithLabelValues(s.key.String()).Add(float64(len(lines)))

	raws, skipped := s.extr.Parse(lines, cur.LastLine)
	if skipped > 0 {
		metrics.ParseSkips.WithLabelValues(s.key.String()).Add(float64(skipped))
	}

	accepted := 0
	for i := range raws {
		ev := s.norm.Normalize(raws[i])
		if s.dedup.Seen(&ev) {
			metrics.DuplicatesSuppressed.WithLabelValues(s.key.String()).Inc()
			continue
		}
		if err := s.sink.Deliver(ctx, &ev); err != nil {
			// Cursor stays put and the fingerprint is withdrawn; the whole
			// batch replays next poll and only delivered events get absorbed.
			s.dedup.Forget(&ev)
			return fmt.Errorf("delivering event: %w", err)
		}
		metrics.EventsEmitted.WithLabelValues(s.key.String(), ev.Kind).Inc()
		accepted++
	}

	if accepted == 0 {
		log.Printf("monitor %s: %d lines read, no events accepted, advancing cursor", s.key, len(lines))
	}

	cur.LastLine += int64(len(lines))
	if err := s.cursors.SaveCursor(ctx, cur); err != nil {
		return fmt.Errorf("saving cursor: %w", err)
	}
	return nil
}

// finish marks a clean stop.
func (s *Supervisor) finish(msg string) {
	s.setState(domain.StateStopped)
	s.notify(sink.NotifyMonitorStopped, msg)
	log.Printf("monitor %s: stopped", s.key)
}

// fail marks a terminal failure after the reconnect budget ran out.
func (s *Supervisor) fail(msg string) {
	s.mu.Lock()
	s.state = domain.StateStopped
	s.lastErr = msg
	s.mu.Unlock()
	s.notify(sink.NotifyMonitorFailed, msg)
}

// notify sends a lifecycle message. Lifecycle notifications are always
// delivered; the per-event-kind toggles only gate the event publish legs.
func (s *Supervisor) notify(kind, msg string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(s.key.TenantID, sink.Notification{
		Kind:      kind,
		TenantID:  s.key.TenantID,
		ServerID:  s.key.ServerID,
		Monitor:   s.key.Kind,
		Message:   msg,
		Timestamp: time.Now().UTC(),
	})
}

// sleep waits for d or until ctx is cancelled. Returns false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
