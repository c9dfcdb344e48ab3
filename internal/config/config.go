// Package config defines the shellbox configuration and its loader. The
// configuration is a plain struct handed to session construction; nothing in
// this package is ambient global state.
package config

import (
	"time"
)

// Config represents the main shellbox configuration
type Config struct {
	// Workspace configuration
	Workspace WorkspaceConfig `json:"workspace" mapstructure:"workspace"`

	// Shell session configuration
	Shell ShellConfig `json:"shell" mapstructure:"shell"`

	// Audit trail configuration
	Audit AuditConfig `json:"audit" mapstructure:"audit"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory for the audit database and logs
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// WorkspaceConfig confines sessions to one directory tree
type WorkspaceConfig struct {
	// Path is the workspace root every session is confined to
	Path string `json:"path" mapstructure:"path"`

	// Create makes a missing root instead of failing startup
	Create bool `json:"create" mapstructure:"create"`

	// Watch enables the out-of-band change watcher
	Watch bool `json:"watch" mapstructure:"watch"`
}

// ShellConfig configures the shell subprocess and its policy
type ShellConfig struct {
	// Program is the shell binary (default /bin/sh)
	Program string `json:"program" mapstructure:"program"`

	// AllowList restricts commands to those containing a listed token
	AllowList []string `json:"allow_list" mapstructure:"allow_list"`

	// DenyList extends the built-in deny-list
	DenyList []string `json:"deny_list" mapstructure:"deny_list"`

	// DisableScripts denies interpreter and direct script invocations
	DisableScripts bool `json:"disable_scripts" mapstructure:"disable_scripts"`

	// CloseTimeoutSeconds bounds graceful shutdown before a forced kill
	CloseTimeoutSeconds int `json:"close_timeout_seconds" mapstructure:"close_timeout_seconds"`
}

// CloseTimeout returns the configured close timeout as a duration.
func (c ShellConfig) CloseTimeout() time.Duration {
	return time.Duration(c.CloseTimeoutSeconds) * time.Second
}

// AuditConfig configures the command audit trail
type AuditConfig struct {
	// Enabled turns the SQLite audit trail on
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// Path overrides the default audit database location
	Path string `json:"path" mapstructure:"path"`

	// RetentionDays is how long events are kept (default 30)
	RetentionDays int `json:"retention_days" mapstructure:"retention_days"`
}

// Retention returns the configured retention window as a duration.
func (c AuditConfig) Retention() time.Duration {
	days := c.RetentionDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Workspace: WorkspaceConfig{
			Create: true,
		},
		Shell: ShellConfig{
			Program:             "/bin/sh",
			CloseTimeoutSeconds: 5,
		},
		Audit: AuditConfig{
			Enabled:       true,
			RetentionDays: 30,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
	}
}
