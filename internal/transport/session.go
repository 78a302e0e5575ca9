package transport

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// ErrNoFile is returned by LatestFile when no remote file matches the pattern.
var ErrNoFile = errors.New("no matching remote file")

// RetryableError wraps a transient transport failure. The monitor treats any
// error matching this type as a signal to reconnect with backoff rather than
// stop.
type RetryableError struct {
	Op  string
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// retryable wraps err as a RetryableError, preserving nil.
func retryable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Op: op, Err: err}
}

// IsRetryable reports whether err is (or wraps) a transient transport failure.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Session owns one authenticated remote file-transfer connection to one game
// server host. A session belongs to exactly one monitor loop at a time; two
// monitor kinds for the same server use independent sessions.
type Session interface {
	// Connect establishes the connection. Calling it while already
	// connected is a no-op success.
	Connect(ctx context.Context) error
	// Close tears the connection down. Safe to call when disconnected.
	Close() error
	// LatestFile returns the most recently modified file matching pattern,
	// searched across all given remote directories. Returns ErrNoFile when
	// nothing matches.
	LatestFile(ctx context.Context, dirs []string, pattern *regexp.Regexp) (string, error)
	// LineCount streams the file and returns its total number of lines.
	LineCount(ctx context.Context, path string) (int64, error)
	// ReadLines streams lines [fromLine, fromLine+maxLines) counted from
	// zero. It stops at maxLines or end-of-file, whichever comes first.
	// maxLines <= 0 means no limit. On a mid-read failure the session
	// transitions to disconnected and the partial output is discarded.
	ReadLines(ctx context.Context, path string, fromLine int64, maxLines int) ([]string, error)
}

// Factory creates a fresh Session. The supervisor calls it once per monitor
// lifetime so sessions are never shared between loops.
type Factory func() Session
