// Copyright © 2025 compositord contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: wm/damage.go
// Summary: Accumulates dirty screen rectangles between composited frames.
// Usage: Dispatcher and input state machine enqueue; the compositor drains.

package wm

import "sync"

// Rect is a screen-space rectangle. It carries no lifetime beyond one
// composite pass.
type Rect struct {
	X, Y, W, H int
}

// DamageQueue is a lock-guarded sequence of damage rectangles. It performs no
// coalescing itself — that is the compositor's job via clip-region union.
type DamageQueue struct {
	mu    sync.Mutex
	rects []Rect
}

// NewDamageQueue returns an empty damage queue.
func NewDamageQueue() *DamageQueue {
	return &DamageQueue{rects: make([]Rect, 0, 16)}
}

// MarkRegion enqueues a rectangle directly.
func (q *DamageQueue) MarkRegion(x, y, w, h int) {
	q.mu.Lock()
	q.rects = append(q.rects, Rect{X: x, Y: y, W: w, H: h})
	q.mu.Unlock()
}

// MarkWindow enqueues the screen-space bounding box of a window's (possibly
// rotated) corners.
func (q *DamageQueue) MarkWindow(w *Window) {
	r := RotatedBounds(w)
	q.mu.Lock()
	q.rects = append(q.rects, r)
	q.mu.Unlock()
}

// MarkWindowRelative enqueues the screen-space bounding box of an internal
// rectangle of the window, forward-rotating its four corners.
func (q *DamageQueue) MarkWindowRelative(w *Window, rx, ry, rw, rh int) {
	r := relativeRotatedBounds(w, rx, ry, rw, rh)
	q.mu.Lock()
	q.rects = append(q.rects, r)
	q.mu.Unlock()
}

// Drain empties the queue and returns everything that had accumulated.
func (q *DamageQueue) Drain() []Rect {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.rects) == 0 {
		return nil
	}
	out := q.rects
	q.rects = make([]Rect, 0, 16)
	return out
}

// Union returns the smallest rectangle containing every rect in rs. It
// returns the zero Rect, false for an empty slice.
func Union(rs []Rect) (Rect, bool) {
	if len(rs) == 0 {
		return Rect{}, false
	}
	u := rs[0]
	for _, r := range rs[1:] {
		u = unionOne(u, r)
	}
	return u, true
}

func unionOne(a, b Rect) Rect {
	minX := min(a.X, b.X)
	minY := min(a.Y, b.Y)
	maxX := max(a.X+a.W, b.X+b.W)
	maxY := max(a.Y+a.H, b.Y+b.H)
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Intersects reports whether two rectangles overlap.
func Intersects(a, b Rect) bool {
	if a.W <= 0 || a.H <= 0 || b.W <= 0 || b.H <= 0 {
		return false
	}
	return a.X < b.X+b.W && b.X < a.X+a.W && a.Y < b.Y+b.H && b.Y < a.Y+a.H
}
