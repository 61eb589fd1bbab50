// Copyright © 2025 compositord contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package wm

import "testing"

func TestTileFullScreenMinusPanel(t *testing.T) {
	dq := NewDamageQueue()
	w := &Window{X: 5, Y: 5, Width: 100, Height: 100, Z: Mid}

	gotW, gotH := Tile(dq, w, 1024, 768, 24, 1, 1, 0, 0)

	if gotW != 1024 || gotH != 744 {
		t.Fatalf("expected 1024x744, got %dx%d", gotW, gotH)
	}
	if w.X != 0 || w.Y != 24 {
		t.Fatalf("expected window origin (0,24), got (%d,%d)", w.X, w.Y)
	}
}

func TestTileQuarterGrid(t *testing.T) {
	dq := NewDamageQueue()
	w := &Window{Z: Mid}

	gotW, gotH := Tile(dq, w, 1000, 800, 0, 2, 2, 1, 1)
	if gotW != 500 || gotH != 400 {
		t.Fatalf("expected 500x400, got %dx%d", gotW, gotH)
	}
	if w.X != 500 || w.Y != 400 {
		t.Fatalf("expected origin (500,400), got (%d,%d)", w.X, w.Y)
	}
}

func TestTileMarksOldAndNewBounds(t *testing.T) {
	dq := NewDamageQueue()
	w := &Window{X: 0, Y: 0, Width: 50, Height: 50, Z: Mid}

	Tile(dq, w, 1000, 800, 0, 1, 1, 0, 0)

	rects := dq.Drain()
	if len(rects) != 2 {
		t.Fatalf("expected 2 damage rects (old and new bounds), got %d", len(rects))
	}
}
