// Package config loads, validates and persists the agent's TOML
// configuration file (which also carries the send checkpoint) and loads
// the collector's configuration through viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"pcinventory/internal/facts"
	"pcinventory/internal/logging"
)

// Agent is the full agent configuration file.
type Agent struct {
	Server  ServerSettings  `toml:"server"`
	Client  ClientSettings  `toml:"client"`
	Retry   RetrySettings   `toml:"retry"`
	PCInfo  PCInfoSettings  `toml:"pc_info"`
	Logging LoggingSettings `toml:"logging"`
}

// ServerSettings locates the collector.
type ServerSettings struct {
	URL                string `toml:"url"`
	RequestTimeoutSecs uint64 `toml:"request_timeout_secs"`
	APIToken           string `toml:"api_token,omitempty"`
}

// ClientSettings holds the schedule and the last successful send.
type ClientSettings struct {
	LastSendDatetime  string `toml:"last_send_datetime"`
	CheckIntervalSecs uint64 `toml:"check_interval_secs"`
	SendIntervalSecs  uint64 `toml:"send_interval_secs"`
}

// RetrySettings holds the two alternating retry delays.
type RetrySettings struct {
	FirstRetryDelaySecs  uint64 `toml:"first_retry_delay_secs"`
	SecondRetryDelaySecs uint64 `toml:"second_retry_delay_secs"`
}

// PCInfoSettings is the last known fact snapshot. UserName is set by the
// operator; the other fields are written by the agent.
type PCInfoSettings struct {
	UserName    string `toml:"user_name"`
	UUID        string `toml:"uuid"`
	MACAddress  string `toml:"mac_address"`
	NetworkType string `toml:"network_type"`
	IPAddress   string `toml:"ip_address"`
	OS          string `toml:"os"`
	OSVersion   string `toml:"os_version"`
	ModelName   string `toml:"model_name"`
}

// LoggingSettings configures the log file; shared by agent and collector.
type LoggingSettings struct {
	Level          string `toml:"level" mapstructure:"level"`
	File           string `toml:"file" mapstructure:"file"`
	MaxFileSizeMB  int    `toml:"max_file_size_mb" mapstructure:"max_file_size_mb"`
	MaxBackupFiles int    `toml:"max_backup_files" mapstructure:"max_backup_files"`
}

// ValidationError describes a rejected configuration value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// DefaultAgent returns the values used for keys missing from the file.
func DefaultAgent() *Agent {
	return &Agent{
		Server: ServerSettings{
			URL:                "http://localhost:8080/api/pc-info",
			RequestTimeoutSecs: 30,
		},
		Client: ClientSettings{
			CheckIntervalSecs: 3600,
			SendIntervalSecs:  86400,
		},
		Retry: RetrySettings{
			FirstRetryDelaySecs:  300,
			SecondRetryDelaySecs: 3600,
		},
		Logging: LoggingSettings{
			Level:          "info",
			File:           "client.log",
			MaxFileSizeMB:  10,
			MaxBackupFiles: 5,
		},
	}
}

// Validate checks the rules enforced at load time.
func (a *Agent) Validate() error {
	if err := validateServerURL(a.Server.URL); err != nil {
		return err
	}
	if strings.TrimSpace(a.PCInfo.UserName) == "" {
		return &ValidationError{"pc_info.user_name", "is required; set your name in the [pc_info] section"}
	}

	positive := []struct {
		field string
		value uint64
	}{
		{"server.request_timeout_secs", a.Server.RequestTimeoutSecs},
		{"client.check_interval_secs", a.Client.CheckIntervalSecs},
		{"client.send_interval_secs", a.Client.SendIntervalSecs},
		{"retry.first_retry_delay_secs", a.Retry.FirstRetryDelaySecs},
		{"retry.second_retry_delay_secs", a.Retry.SecondRetryDelaySecs},
	}
	for _, p := range positive {
		if p.value == 0 {
			return &ValidationError{p.field, "must be greater than 0"}
		}
	}

	if !logging.ValidLevel(a.Logging.Level) {
		return &ValidationError{"logging.level", fmt.Sprintf("%q must be one of: %s", a.Logging.Level, strings.Join(logging.Levels, ", "))}
	}
	return nil
}

// CheckInterval is the scheduler tick period.
func (a *Agent) CheckInterval() time.Duration {
	return seconds(a.Client.CheckIntervalSecs)
}

// SendInterval is the minimum time between successful sends.
func (a *Agent) SendInterval() time.Duration {
	return seconds(a.Client.SendIntervalSecs)
}

// RequestTimeout bounds a single submission.
func (a *Agent) RequestTimeout() time.Duration {
	return seconds(a.Server.RequestTimeoutSecs)
}

// FirstRetryDelay is the tier 1 retry delay.
func (a *Agent) FirstRetryDelay() time.Duration {
	return seconds(a.Retry.FirstRetryDelaySecs)
}

// SecondRetryDelay is the tier 2 retry delay.
func (a *Agent) SecondRetryDelay() time.Duration {
	return seconds(a.Retry.SecondRetryDelaySecs)
}

// Record builds the fact record from the stored snapshot.
func (a *Agent) Record() facts.Record {
	p := a.PCInfo
	return facts.Record{
		UUID:        p.UUID,
		MACAddress:  p.MACAddress,
		NetworkType: p.NetworkType,
		UserName:    p.UserName,
		IPAddress:   p.IPAddress,
		OS:          p.OS,
		OSVersion:   p.OSVersion,
		ModelName:   p.ModelName,
	}
}

// ApplyRecord stores a freshly collected record. The operator-set user
// name is kept.
func (a *Agent) ApplyRecord(r facts.Record) {
	a.PCInfo.UUID = r.UUID
	a.PCInfo.OS = r.OS
	a.PCInfo.OSVersion = r.OSVersion
	a.PCInfo.ModelName = r.ModelName
	a.ApplyNetwork(r.Network())
}

// ApplyNetwork stores freshly collected network facts.
func (a *Agent) ApplyNetwork(n facts.Network) {
	a.PCInfo.IPAddress = n.IPAddress
	a.PCInfo.MACAddress = n.MACAddress
	a.PCInfo.NetworkType = n.NetworkType
}

// LoggingConfig converts the [logging] section.
func (a *Agent) LoggingConfig() logging.Config {
	return logging.Config{
		Level:          a.Logging.Level,
		File:           a.Logging.File,
		MaxFileSizeMB:  a.Logging.MaxFileSizeMB,
		MaxBackupFiles: a.Logging.MaxBackupFiles,
	}
}

// validateServerURL checks the value exactly as the transport will use it.
func validateServerURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return &ValidationError{"server.url", "is empty"}
	}
	if raw != strings.TrimSpace(raw) {
		return &ValidationError{"server.url", "must not have leading or trailing whitespace"}
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return &ValidationError{"server.url", "must start with 'http://' or 'https://'"}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return &ValidationError{"server.url", fmt.Sprintf("is not a valid URL: %v", err)}
	}
	if u.Host == "" {
		return &ValidationError{"server.url", "has no host"}
	}
	return nil
}

func seconds(n uint64) time.Duration {
	return time.Duration(n) * time.Second
}
