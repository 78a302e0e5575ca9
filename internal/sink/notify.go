package sink

import (
	"log"
	"time"
)

// Notification kinds sent on monitor lifecycle transitions.
const (
	NotifyMonitorStarted = "monitor_started"
	NotifyMonitorStopped = "monitor_stopped"
	NotifyMonitorFailed  = "monitor_failed"
)

// Notification describes a monitor lifecycle transition.
type Notification struct {
	Kind      string    `json:"kind"`
	TenantID  int64     `json:"tenant_id"`
	ServerID  string    `json:"server_id"`
	Monitor   string    `json:"monitor"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier sends best-effort monitor lifecycle notifications.
type Notifier interface {
	Notify(tenantID int64, n Notification)
}

// LogNotifier writes notifications to the process log. Used when no broker
// is configured.
type LogNotifier struct{}

// Notify logs the notification.
func (LogNotifier) Notify(tenantID int64, n Notification) {
	log.Printf("notify: tenant=%d server=%s monitor=%s %s: %s", tenantID, n.ServerID, n.Monitor, n.Kind, n.Message)
}
