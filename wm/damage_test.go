// Copyright © 2025 compositord contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package wm

import "testing"

func TestDrainEmptiesQueue(t *testing.T) {
	q := NewDamageQueue()
	q.MarkRegion(0, 0, 10, 10)
	q.MarkRegion(5, 5, 10, 10)

	rects := q.Drain()
	if len(rects) != 2 {
		t.Fatalf("expected 2 rects, got %d", len(rects))
	}
	if more := q.Drain(); more != nil {
		t.Fatalf("expected nil after drain, got %v", more)
	}
}

func TestMarkComposeComposeIsIdempotent(t *testing.T) {
	q := NewDamageQueue()
	w := &Window{X: 0, Y: 0, Width: 50, Height: 50, Z: Mid}

	q.MarkWindow(w)
	first := q.Drain()
	if len(first) != 1 {
		t.Fatalf("expected 1 rect after first mark, got %d", len(first))
	}

	// A second drain with no intervening mark must report nothing: composing
	// twice in a row does no extra work.
	second := q.Drain()
	if second != nil {
		t.Fatalf("expected no damage on an unmodified queue, got %v", second)
	}
}

func TestUnionOfEmptySliceReportsFalse(t *testing.T) {
	if _, ok := Union(nil); ok {
		t.Fatalf("expected ok=false for an empty slice")
	}
}

func TestUnionCoversAllRects(t *testing.T) {
	got, ok := Union([]Rect{{X: 0, Y: 0, W: 10, H: 10}, {X: 20, Y: 20, W: 10, H: 10}})
	if !ok {
		t.Fatalf("expected ok=true")
	}
	want := Rect{X: 0, Y: 0, W: 30, H: 30}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestIntersectsRejectsZeroSizeRects(t *testing.T) {
	if Intersects(Rect{X: 0, Y: 0, W: 0, H: 10}, Rect{X: 0, Y: 0, W: 10, H: 10}) {
		t.Fatalf("expected no intersection with a zero-width rect")
	}
}

func TestIntersectsDetectsOverlap(t *testing.T) {
	if !Intersects(Rect{X: 0, Y: 0, W: 10, H: 10}, Rect{X: 5, Y: 5, W: 10, H: 10}) {
		t.Fatalf("expected overlapping rects to intersect")
	}
}
