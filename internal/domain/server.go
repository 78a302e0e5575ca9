package domain

// ServerConnection identifies one remote game server within one tenant and
// carries everything the transport layer needs to reach it. The core never
// sees the legacy configuration layouts; config.Load normalizes them into
// this struct before anything else runs.
type ServerConnection struct {
	TenantID int64  `json:"tenant_id"`
	ServerID string `json:"server_id"`
	Name     string `json:"name"`

	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"-"`
	Password string `json:"-"`

	// Remote base directories searched for killfeed CSV exports. The
	// newest matching file across all of them wins.
	KillfeedPaths []string `json:"killfeed_paths,omitempty"`
	// Remote directory holding the append-only game log.
	LogPath string `json:"log_path,omitempty"`

	// Per-event-kind notification toggles. A kind missing from the map is
	// enabled. Disabled kinds are still extracted, deduplicated and
	// persisted; only the user-visible notification step is skipped.
	Notifications map[string]bool `json:"notifications,omitempty"`
}

// Key returns the unique (tenant, server) identity string.
func (s *ServerConnection) Key() string {
	return monitorKeyString(s.TenantID, s.ServerID)
}

// NotifyEnabled reports whether notifications for the given event kind are on.
func (s *ServerConnection) NotifyEnabled(kind string) bool {
	if s.Notifications == nil {
		return true
	}
	enabled, ok := s.Notifications[kind]
	if !ok {
		return true
	}
	return enabled
}
