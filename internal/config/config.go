// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and saves desperado's configuration.
//
// Configuration lives at ~/.desperado/config.toml; environment
// variables (DESPERADO_*) override individual fields. Passwords are
// never written to the file - the account password comes from
// DESPERADO_PASSWORD or an interactive prompt, and only the mail
// password may optionally be stored for unattended guard-code polling.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/desperado/internal/util"
)

// Provider selection values for Account.GuardProvider.
const (
	GuardManual = "manual"
	GuardIMAP   = "imap"
)

// Config is the complete desperado configuration.
type Config struct {
	Account AccountConfig `toml:"account"`
	Mail    MailConfig    `toml:"mail"`
	Market  MarketConfig  `toml:"market"`
	Store   StoreConfig   `toml:"store"`
}

// AccountConfig describes the account to log in.
type AccountConfig struct {
	// Username is the account login name.
	Username string `toml:"username"`

	// FriendlyName labels this machine in the account's device list.
	// Empty means a generated name.
	FriendlyName string `toml:"friendly_name"`

	// GuardProvider selects how emailed guard codes are obtained:
	// "manual" (prompt) or "imap" (poll the mailbox in [mail]).
	GuardProvider string `toml:"guard_provider"`

	// TOTPSecret, when set, enables the authenticator-based two-factor
	// provider.
	TOTPSecret string `toml:"totp_secret"`

	// MaxAttempts caps login submissions per login call.
	MaxAttempts int `toml:"max_attempts"`

	// RememberLogin asks the server for a long-lived session.
	RememberLogin bool `toml:"remember_login"`
}

// MailConfig describes the mailbox polled for guard codes.
type MailConfig struct {
	Server   string `toml:"server"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Mailbox  string `toml:"mailbox"`

	// MaxTries and PollIntervalSecs bound the polling loop.
	MaxTries         int `toml:"max_tries"`
	PollIntervalSecs int `toml:"poll_interval_secs"`
}

// MarketConfig holds price lookup locale settings.
type MarketConfig struct {
	Country      string `toml:"country"`
	CurrencyCode int    `toml:"currency_code"`
}

// StoreConfig locates the session store.
type StoreConfig struct {
	Path string `toml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			GuardProvider: GuardManual,
			MaxAttempts:   5,
			RememberLogin: true,
		},
		Mail: MailConfig{
			Mailbox:          "INBOX",
			MaxTries:         10,
			PollIntervalSecs: 6,
		},
		Market: MarketConfig{
			Country:      "US",
			CurrencyCode: 1,
		},
	}
}

// Dir returns the configuration directory, ~/.desperado.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".desperado"), nil
}

// DefaultPath returns the config file path.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file, falling back to defaults when it does not
// exist, then applies environment overrides.
func Load() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads configuration from an explicit path.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults plus environment are a valid configuration.
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	// An empty store path means the default next to the config file.
	if cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(filepath.Dir(path), "sessions.db")
	}

	return cfg, nil
}

// applyEnv overrides fields from DESPERADO_* variables.
func (c *Config) applyEnv() {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setString("DESPERADO_USERNAME", &c.Account.Username)
	setString("DESPERADO_FRIENDLY_NAME", &c.Account.FriendlyName)
	setString("DESPERADO_GUARD_PROVIDER", &c.Account.GuardProvider)
	setString("DESPERADO_TOTP_SECRET", &c.Account.TOTPSecret)
	setString("DESPERADO_MAIL_SERVER", &c.Mail.Server)
	setString("DESPERADO_MAIL_USERNAME", &c.Mail.Username)
	setString("DESPERADO_MAIL_PASSWORD", &c.Mail.Password)
	setString("DESPERADO_MAIL_MAILBOX", &c.Mail.Mailbox)
	setString("DESPERADO_STORE_PATH", &c.Store.Path)

	if v, ok := os.LookupEnv("DESPERADO_MAX_ATTEMPTS"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Account.MaxAttempts = n
		}
	}
}

// Save writes the configuration atomically with owner-only permissions;
// the file can hold the mail password.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return util.AtomicWriteFile(path, buf.Bytes(), 0600)
}
