// Copyright © 2025 compositord contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/config.go
// Summary: YAML configuration for compositord: screen geometry, identity,
//           and the optional debug/audit surfaces.
// Usage: cmd/compositord/main.go loads a Config before constructing a
//        server.Server.

package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk shape of a compositord configuration file.
type Config struct {
	ServerIdent string `yaml:"server_ident"`
	SocketPath  string `yaml:"socket_path"`
	ScreenW     int    `yaml:"screen_width"`
	ScreenH     int    `yaml:"screen_height"`
	Nested      bool   `yaml:"nested"`
	InputToken  string `yaml:"input_token"`

	DebugAddr string `yaml:"debug_addr"`
	AuditPath string `yaml:"audit_path"`
}

// Default returns the configuration used when no file is present or a
// field is left unset.
func Default() Config {
	return Config{
		ServerIdent: "compositor",
		SocketPath:  filepath.Join(os.TempDir(), "compositor.sock"),
		ScreenW:     1024,
		ScreenH:     768,
		AuditPath:   filepath.Join(os.TempDir(), "compositor-audit.db"),
	}
}

// DefaultPath returns the conventional per-user config file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: home dir: %w", err)
	}
	return filepath.Join(home, ".config", "compositord", "config.yaml"), nil
}

// Load reads path and overlays it on Default. A missing file is not an
// error; it yields the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := decodeStrict(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// decodeStrict rejects unknown fields, catching typos in hand-edited
// configuration files early instead of silently ignoring them.
func decodeStrict(data []byte, out *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return nil
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	if c.ScreenW <= 0 || c.ScreenH <= 0 {
		return fmt.Errorf("screen_width/screen_height must be positive, got %dx%d", c.ScreenW, c.ScreenH)
	}
	if c.SocketPath == "" {
		return fmt.Errorf("socket_path must not be empty")
	}
	if c.ServerIdent == "" {
		return fmt.Errorf("server_ident must not be empty")
	}
	return nil
}
