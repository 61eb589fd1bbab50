// Copyright © 2025 compositord contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package auditlog

import (
	"path/filepath"
	"testing"
)

func TestRecordAndRecent(t *testing.T) {
	log, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer log.Close()

	if err := log.Record("window_new", 1, 100); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := log.Record("window_close", 1, 100); err != nil {
		t.Fatalf("record: %v", err)
	}

	events, err := log.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Event != "window_close" {
		t.Fatalf("expected most recent event first, got %q", events[0].Event)
	}
	if events[0].Wid != 1 || events[0].ClientID != 100 {
		t.Fatalf("unexpected event fields: %+v", events[0])
	}
	if events[0].RunID == "" || events[0].RunID != events[1].RunID {
		t.Fatalf("expected both events to carry the same non-empty run id, got %+v and %+v", events[0], events[1])
	}
	if events[0].RunID != log.RunID() {
		t.Fatalf("expected recorded run id to match Log.RunID()")
	}
}

func TestOpenAssignsDistinctRunIDs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.db")

	first, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	firstRun := first.RunID()
	first.Close()

	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()

	if second.RunID() == "" || second.RunID() == firstRun {
		t.Fatalf("expected a fresh run id on reopen, got %q twice", second.RunID())
	}
}

func TestRecentRespectsLimit(t *testing.T) {
	log, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer log.Close()

	for i := 0; i < 5; i++ {
		if err := log.Record("event", uint32(i), 0); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	events, err := log.Recent(2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "audit.db")
	log, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer log.Close()
}
