package config

import "time"

// SessionConfig controls the session coordinator's timing behavior.
type SessionConfig struct {
	// PersistTTL is the lifetime of the durable remember-me token written
	// when a login opts into persistence.
	PersistTTL time.Duration `env:"SESSION_PERSIST_TTL" envDefault:"720h"`

	// SuppressWindow is the dead time after a foreground transition during
	// which redundant re-validation is suppressed.
	SuppressWindow time.Duration `env:"SESSION_SUPPRESS_WINDOW" envDefault:"5s"`

	// RoleMemoTTL bounds how long a resolved role is served without
	// re-fetching from the role store. Zero disables memoization.
	RoleMemoTTL time.Duration `env:"SESSION_ROLE_MEMO_TTL" envDefault:"1m"`
}

// Sanitize normalises timing values and enforces safe defaults.
func (c *SessionConfig) Sanitize() {
	if c.PersistTTL <= 0 {
		c.PersistTTL = 720 * time.Hour
	}
	if c.SuppressWindow < 0 {
		c.SuppressWindow = 0
	}
	if c.RoleMemoTTL < 0 {
		c.RoleMemoTTL = 0
	}
}
