// Package config holds the typed server configuration.
package config

import (
	"fmt"
	"time"
)

// Config is the configuration of the serve command, filled from flags,
// environment and config file.
type Config struct {
	Addr           string
	DBPath         string
	JWTSecret      string
	TokenTTL       time.Duration
	CORSOrigins    []string
	Dev            bool
	Lang           string
	AdminEmail     string
	AdminPassword  string
	LLMURL         string
	LLMKey         string
	LLMModel       string
	RevokedCleanup string
}

// Validate checks the settings the server cannot start without.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt-secret is required")
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return fmt.Errorf("admin-email and admin-password must be set together")
	}
	if c.AdminPassword != "" && len(c.AdminPassword) < 6 {
		return fmt.Errorf("admin-password must be at least 6 characters")
	}
	return nil
}

// LLMEnabled reports whether the answer suggestion assistant is configured.
func (c Config) LLMEnabled() bool {
	return c.LLMURL != "" && c.LLMModel != ""
}
