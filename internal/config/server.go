package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"pcinventory/internal/events"
	"pcinventory/internal/logging"
)

// EnvPrefix prefixes every collector environment override, e.g.
// PCINV_SERVER_PORT or PCINV_DATABASE_PATH.
const EnvPrefix = "PCINV"

// Server is the collector configuration.
type Server struct {
	Server   ServerListen    `mapstructure:"server"`
	Database DatabaseConfig  `mapstructure:"database"`
	Logging  LoggingSettings `mapstructure:"logging"`
	API      APIConfig       `mapstructure:"api"`
	Notify   NotifyConfig    `mapstructure:"notify"`
}

// ServerListen is the HTTP listener.
type ServerListen struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	RequestTimeoutSecs int    `mapstructure:"request_timeout_secs"`
}

// DatabaseConfig locates the SQLite inventory database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// APIConfig shapes the ingest endpoint.
type APIConfig struct {
	EndpointPath       string `mapstructure:"endpoint_path"`
	TokenHash          string `mapstructure:"token_hash"`
	RateLimitPerMinute int    `mapstructure:"rate_limit_per_minute"`
}

// NotifyConfig lists Shoutrrr URLs and the events sent to them.
type NotifyConfig struct {
	URLs         []string `mapstructure:"urls"`
	Events       []string `mapstructure:"events"`
	CooldownSecs int      `mapstructure:"cooldown_secs"`
}

// LoadServer reads the optional TOML file at path and applies PCINV_*
// environment overrides on top of the defaults.
func LoadServer(path string) (*Server, error) {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setServerDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file '%s': %w", path, err)
		}
	}

	var cfg Server
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setServerDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_secs", 30)

	v.SetDefault("database.path", "pcinventory.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "server.log")
	v.SetDefault("logging.max_file_size_mb", 10)
	v.SetDefault("logging.max_backup_files", 5)

	v.SetDefault("api.endpoint_path", "/api/pc-info")
	v.SetDefault("api.token_hash", "")
	v.SetDefault("api.rate_limit_per_minute", 120)

	v.SetDefault("notify.urls", []string{})
	v.SetDefault("notify.events", []string{"machine_created", "machine_moved"})
	v.SetDefault("notify.cooldown_secs", 300)
}

// Validate checks the collector configuration.
func (s *Server) Validate() error {
	if s.Server.Port <= 0 || s.Server.Port > 65535 {
		return &ValidationError{"server.port", fmt.Sprintf("%d is out of range", s.Server.Port)}
	}
	if s.Server.RequestTimeoutSecs <= 0 {
		return &ValidationError{"server.request_timeout_secs", "must be greater than 0"}
	}
	if strings.TrimSpace(s.Database.Path) == "" {
		return &ValidationError{"database.path", "is empty"}
	}
	if !strings.HasPrefix(s.API.EndpointPath, "/") {
		return &ValidationError{"api.endpoint_path", "must start with '/'"}
	}
	if strings.TrimSuffix(s.API.EndpointPath, "/") == "" {
		return &ValidationError{"api.endpoint_path", "must not be the root path"}
	}
	if s.API.RateLimitPerMinute < 0 {
		return &ValidationError{"api.rate_limit_per_minute", "must not be negative"}
	}
	if !logging.ValidLevel(s.Logging.Level) {
		return &ValidationError{"logging.level", fmt.Sprintf("%q must be one of: %s", s.Logging.Level, strings.Join(logging.Levels, ", "))}
	}
	if s.Notify.CooldownSecs < 0 {
		return &ValidationError{"notify.cooldown_secs", "must not be negative"}
	}
	for _, e := range s.Notify.Events {
		if _, err := events.ParseType(e); err != nil {
			return &ValidationError{"notify.events", err.Error()}
		}
	}
	for _, u := range s.Notify.URLs {
		if !strings.Contains(u, "://") {
			return errors.New("invalid configuration: notify.urls entries must be shoutrrr service URLs")
		}
	}
	return nil
}

// Addr is the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Server.Host, s.Server.Port)
}

// RequestTimeout bounds reads and writes on the listener.
func (s *Server) RequestTimeout() time.Duration {
	return time.Duration(s.Server.RequestTimeoutSecs) * time.Second
}

// EndpointPath returns the ingest path without a trailing slash.
func (s *Server) EndpointPath() string {
	return strings.TrimSuffix(s.API.EndpointPath, "/")
}

// LoggingConfig converts the [logging] section.
func (s *Server) LoggingConfig() logging.Config {
	return logging.Config{
		Level:          s.Logging.Level,
		File:           s.Logging.File,
		MaxFileSizeMB:  s.Logging.MaxFileSizeMB,
		MaxBackupFiles: s.Logging.MaxBackupFiles,
		JSONConsole:    true,
	}
}

// NotifyEvents returns the configured event types. Validate has already
// rejected unknown names.
func (s *Server) NotifyEvents() []events.EventType {
	out := make([]events.EventType, 0, len(s.Notify.Events))
	for _, name := range s.Notify.Events {
		if t, err := events.ParseType(name); err == nil {
			out = append(out, t)
		}
	}
	return out
}

// NotifyCooldown is the minimum time between repeated notifications.
func (s *Server) NotifyCooldown() time.Duration {
	return time.Duration(s.Notify.CooldownSecs) * time.Second
}
