package config

import (
	"fmt"
	"os"
	"time"

	"github.com/arven/deadwatch/internal/domain"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	NATS     NATSConfig     `yaml:"nats"`
	Monitor  MonitorConfig  `yaml:"monitor"`

	// Tenants is the preferred layout: servers nested under their tenant.
	Tenants []Tenant `yaml:"tenants"`
	// Servers is the legacy flat layout with a tenant_id on each entry.
	// Both layouts are accepted and normalized by Load.
	Servers []GameServer `yaml:"servers"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	HTTPPort   int    `yaml:"http_port"`
}

// DatabaseConfig holds SQLite settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenDuration time.Duration `yaml:"token_duration"`
}

// NATSConfig holds event sink settings. An empty URL disables publishing;
// events are still persisted.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// MonitorConfig holds ingestion loop tuning
type MonitorConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval"`
	MaxLinesPerPoll int           `yaml:"max_lines_per_poll"`
	BackoffBase     time.Duration `yaml:"backoff_base"`
	BackoffMax      time.Duration `yaml:"backoff_max"`
	MaxReconnects   int           `yaml:"max_reconnects"`
	ProbeStaleAfter time.Duration `yaml:"probe_stale_after"`
	DedupHighWater  int           `yaml:"dedup_high_water"`
	AutostartAll    bool          `yaml:"autostart_all"`
}

// Tenant groups the game servers belonging to one community.
type Tenant struct {
	ID      int64        `yaml:"id"`
	Name    string       `yaml:"name"`
	Servers []GameServer `yaml:"servers"`
}

// GameServer is one remote game server entry as written in the config file.
// Older deployments used sftp_-prefixed keys and a single csv_path; all
// variants are folded into domain.ServerConnection.
type GameServer struct {
	TenantID int64  `yaml:"tenant_id"` // legacy flat layout only
	ServerID string `yaml:"server_id"`
	Name     string `yaml:"name"`

	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Legacy key variants
	SFTPHost     string `yaml:"sftp_host"`
	SFTPPort     int    `yaml:"sftp_port"`
	SFTPUsername string `yaml:"sftp_username"`
	SFTPPassword string `yaml:"sftp_password"`

	KillfeedPaths []string `yaml:"killfeed_paths"`
	CSVPath       string   `yaml:"csv_path"` // legacy single-directory form
	LogPath       string   `yaml:"log_path"`

	Notifications map[string]bool `yaml:"notifications"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Set defaults
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = "127.0.0.1"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "/var/lib/deadwatch/deadwatch.db"
	}
	if cfg.Auth.TokenDuration == 0 {
		cfg.Auth.TokenDuration = 24 * time.Hour
	}
	if cfg.Monitor.PollInterval == 0 {
		cfg.Monitor.PollInterval = 30 * time.Second
	}
	if cfg.Monitor.MaxLinesPerPoll == 0 {
		cfg.Monitor.MaxLinesPerPoll = 5000
	}
	if cfg.Monitor.BackoffBase == 0 {
		cfg.Monitor.BackoffBase = 5 * time.Second
	}
	if cfg.Monitor.BackoffMax == 0 {
		cfg.Monitor.BackoffMax = 60 * time.Second
	}
	if cfg.Monitor.MaxReconnects == 0 {
		cfg.Monitor.MaxReconnects = 10
	}
	if cfg.Monitor.ProbeStaleAfter == 0 {
		cfg.Monitor.ProbeStaleAfter = 5 * time.Minute
	}
	if cfg.Monitor.DedupHighWater == 0 {
		cfg.Monitor.DedupHighWater = 8192
	}

	return &cfg, nil
}

// Connections normalizes every configured server, from either layout, into
// strict ServerConnection structs. Duplicate (tenant, server) pairs are an
// error: cursors and monitors are keyed by that pair.
func (c *Config) Connections() ([]domain.ServerConnection, error) {
	var conns []domain.ServerConnection
	seen := make(map[string]bool)

	add := func(tenantID int64, gs GameServer) error {
		conn, err := normalize(tenantID, gs)
		if err != nil {
			return err
		}
		if seen[conn.Key()] {
			return fmt.Errorf("duplicate server %q in tenant %d", conn.ServerID, conn.TenantID)
		}
		seen[conn.Key()] = true
		conns = append(conns, conn)
		return nil
	}

	for _, t := range c.Tenants {
		for _, gs := range t.Servers {
			if err := add(t.ID, gs); err != nil {
				return nil, err
			}
		}
	}
	for _, gs := range c.Servers {
		if err := add(gs.TenantID, gs); err != nil {
			return nil, err
		}
	}
	return conns, nil
}

// normalize folds the legacy key variants into one strict struct.
func normalize(tenantID int64, gs GameServer) (domain.ServerConnection, error) {
	conn := domain.ServerConnection{
		TenantID:      tenantID,
		ServerID:      gs.ServerID,
		Name:          gs.Name,
		Host:          firstString(gs.Host, gs.SFTPHost),
		Port:          firstInt(gs.Port, gs.SFTPPort, 22),
		Username:      firstString(gs.Username, gs.SFTPUsername),
		Password:      firstString(gs.Password, gs.SFTPPassword),
		KillfeedPaths: gs.KillfeedPaths,
		LogPath:       gs.LogPath,
		Notifications: gs.Notifications,
	}
	if len(conn.KillfeedPaths) == 0 && gs.CSVPath != "" {
		conn.KillfeedPaths = []string{gs.CSVPath}
	}
	if conn.Name == "" {
		conn.Name = conn.ServerID
	}

	if tenantID == 0 {
		return conn, fmt.Errorf("server %q has no tenant", gs.ServerID)
	}
	if conn.ServerID == "" {
		return conn, fmt.Errorf("server in tenant %d has no server_id", tenantID)
	}
	if conn.Host == "" {
		return conn, fmt.Errorf("server %q has no host", gs.ServerID)
	}
	if conn.Username == "" {
		return conn, fmt.Errorf("server %q has no username", gs.ServerID)
	}
	return conn, nil
}

func firstString(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstInt(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}
