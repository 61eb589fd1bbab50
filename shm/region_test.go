// Copyright © 2025 compositord contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package shm

import "testing"

func withTempShmDir(t *testing.T) {
	t.Helper()
	prev := shmDir
	shmDir = t.TempDir()
	t.Cleanup(func() { shmDir = prev })
}

func TestCreateOpenRoundTrip(t *testing.T) {
	withTempShmDir(t)

	r, err := Create("sys.test.window.1.1", 64)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer r.Close()

	copy(r.Bytes(), []byte{1, 2, 3, 4})

	other, err := Open("sys.test.window.1.1", 64)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer other.Close()

	if got := other.Bytes()[:4]; got[0] != 1 || got[1] != 2 || got[2] != 3 || got[3] != 4 {
		t.Fatalf("expected shared bytes to be visible across mappings, got %v", got)
	}
}

func TestCreateZeroSizeAllocatesNoMapping(t *testing.T) {
	withTempShmDir(t)

	r, err := Create("sys.test.window.2.1", 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer r.Close()

	if r.Bytes() != nil {
		t.Fatalf("expected nil mapping for zero-size region")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	withTempShmDir(t)

	r, err := Create("sys.test.window.3.1", 16)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestCreateRejectsNegativeSize(t *testing.T) {
	withTempShmDir(t)
	if _, err := Create("sys.test.window.4.1", -1); err == nil {
		t.Fatalf("expected an error for negative size")
	}
}
