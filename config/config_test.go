// Copyright © 2025 compositord contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadOverlaysFieldsOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	const doc = "screen_width: 1920\nscreen_height: 1080\nnested: true\n"
	if err := os.WriteFile(path, []byte(doc), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ScreenW != 1920 || cfg.ScreenH != 1080 {
		t.Fatalf("expected 1920x1080, got %dx%d", cfg.ScreenW, cfg.ScreenH)
	}
	if !cfg.Nested {
		t.Fatalf("expected nested=true")
	}
	if cfg.ServerIdent != Default().ServerIdent {
		t.Fatalf("expected unset fields to keep their default, got %q", cfg.ServerIdent)
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("scren_width: 100\n"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for an unknown field (typo)")
	}
}

func TestValidateRejectsNonPositiveGeometry(t *testing.T) {
	cfg := Default()
	cfg.ScreenW = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error for zero screen width")
	}
}
