package transport

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"path"
	"regexp"
	"sync"
	"time"

	"github.com/arven/deadwatch/internal/domain"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

const dialTimeout = 15 * time.Second

// SFTPSession is the production Session backed by an SSH/SFTP connection.
type SFTPSession struct {
	addr     string
	username string
	password string

	mu     sync.Mutex
	ssh    *ssh.Client
	client *sftp.Client
}

// NewSFTPSession creates a disconnected session for the given server.
func NewSFTPSession(conn domain.ServerConnection) *SFTPSession {
	return &SFTPSession{
		addr:     fmt.Sprintf("%s:%d", conn.Host, conn.Port),
		username: conn.Username,
		password: conn.Password,
	}
}

// NewFactory returns a Factory producing fresh SFTP sessions for conn.
func NewFactory(conn domain.ServerConnection) Factory {
	return func() Session {
		return NewSFTPSession(conn)
	}
}

// Connect establishes the SSH and SFTP layers. A no-op when already connected.
func (s *SFTPSession) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return nil
	}

	cfg := &ssh.ClientConfig{
		User:            s.username,
		Auth:            []ssh.AuthMethod{ssh.Password(s.password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         dialTimeout,
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	netConn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return retryable("dialing "+s.addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, s.addr, cfg)
	if err != nil {
		netConn.Close()
		return retryable("ssh handshake with "+s.addr, err)
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return retryable("starting sftp subsystem", err)
	}

	s.ssh = sshClient
	s.client = client
	return nil
}

// Close tears down both layers. Safe to call when disconnected.
func (s *SFTPSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *SFTPSession) closeLocked() error {
	var err error
	if s.client != nil {
		err = s.client.Close()
		s.client = nil
	}
	if s.ssh != nil {
		if cerr := s.ssh.Close(); err == nil {
			err = cerr
		}
		s.ssh = nil
	}
	return err
}

// dropLocked marks the session disconnected after an I/O failure so the next
// Connect builds a fresh connection.
func (s *SFTPSession) dropLocked() {
	s.closeLocked()
}

// LatestFile returns the most recently modified file matching pattern across
// all given directories. Ties on modification time resolve to the
// lexicographically larger path, so date-stamped exports pick deterministically.
func (s *SFTPSession) LatestFile(ctx context.Context, dirs []string, pattern *regexp.Regexp) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return "", retryable("listing files", fmt.Errorf("not connected"))
	}

	var (
		bestPath  string
		bestMtime time.Time
	)
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		entries, err := s.client.ReadDir(dir)
		if err != nil {
			s.dropLocked()
			return "", retryable("listing "+dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				// One level of world/map subdirectories; the
				// killfeed exports live directly inside them.
				sub := path.Join(dir, entry.Name())
				subEntries, err := s.client.ReadDir(sub)
				if err != nil {
					s.dropLocked()
					return "", retryable("listing "+sub, err)
				}
				for _, se := range subEntries {
					if se.IsDir() || !pattern.MatchString(se.Name()) {
						continue
					}
					p := path.Join(sub, se.Name())
					if better(se.ModTime(), p, bestMtime, bestPath) {
						bestMtime, bestPath = se.ModTime(), p
					}
				}
				continue
			}
			if !pattern.MatchString(entry.Name()) {
				continue
			}
			p := path.Join(dir, entry.Name())
			if better(entry.ModTime(), p, bestMtime, bestPath) {
				bestMtime, bestPath = entry.ModTime(), p
			}
		}
	}

	if bestPath == "" {
		return "", ErrNoFile
	}
	return bestPath, nil
}

func better(mtime time.Time, p string, bestMtime time.Time, bestPath string) bool {
	if bestPath == "" || mtime.After(bestMtime) {
		return true
	}
	return mtime.Equal(bestMtime) && p > bestPath
}

// LineCount streams the file and counts its lines without buffering the whole
// file in memory.
func (s *SFTPSession) LineCount(ctx context.Context, filePath string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return 0, retryable("counting lines", fmt.Errorf("not connected"))
	}

	f, err := s.client.Open(filePath)
	if err != nil {
		s.dropLocked()
		return 0, retryable("opening "+filePath, err)
	}
	defer f.Close()

	var count int64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		count++
		if count%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		s.dropLocked()
		return 0, retryable("counting lines in "+filePath, err)
	}
	return count, nil
}

// ReadLines streams lines [fromLine, fromLine+maxLines). Partial output on a
// mid-read failure is discarded; the caller must not advance its cursor.
func (s *SFTPSession) ReadLines(ctx context.Context, filePath string, fromLine int64, maxLines int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil, retryable("reading lines", fmt.Errorf("not connected"))
	}

	f, err := s.client.Open(filePath)
	if err != nil {
		s.dropLocked()
		return nil, retryable("opening "+filePath, err)
	}
	defer f.Close()

	var (
		lines []string
		n     int64
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if n >= fromLine {
			lines = append(lines, scanner.Text())
			if maxLines > 0 && len(lines) >= maxLines {
				break
			}
		}
		n++
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		s.dropLocked()
		return nil, retryable("reading "+filePath, err)
	}
	return lines, nil
}
