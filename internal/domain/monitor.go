package domain

import (
	"fmt"
	"time"
)

// Monitor kinds, one per remote file format
const (
	MonitorKillfeed = "killfeed"
	MonitorLog      = "log"
)

// Monitor states as reported by the supervisor
const (
	StateIdle         = "idle"
	StateConnecting   = "connecting"
	StatePolling      = "polling"
	StateReconnecting = "reconnecting"
	StateStopped      = "stopped"
)

// MonitorKey identifies one running ingestion loop.
type MonitorKey struct {
	TenantID int64  `json:"tenant_id"`
	ServerID string `json:"server_id"`
	Kind     string `json:"kind"`
}

func (k MonitorKey) String() string {
	return fmt.Sprintf("%s_%s", monitorKeyString(k.TenantID, k.ServerID), k.Kind)
}

func monitorKeyString(tenantID int64, serverID string) string {
	return fmt.Sprintf("%d_%s", tenantID, serverID)
}

// MonitorStatus is the operator-visible snapshot of one monitor.
type MonitorStatus struct {
	Key        MonitorKey `json:"key"`
	ServerName string     `json:"server_name,omitempty"`
	State      string     `json:"state"`
	StartedAt  time.Time  `json:"started_at"`
	LastError  string     `json:"last_error,omitempty"`
}
