// Copyright © 2025 compositord contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: wm/rotation.go
// Summary: Device/window-local coordinate mapping under window rotation.
// Usage: Shared by hit-testing (registry) and the blitter (compositor).

package wm

import "math"

// DeviceToWindow maps a screen-space coordinate into window-local
// coordinates, inverting the window's rotation (rotation is around the
// window's center; positive degrees are clockwise on screen).
func DeviceToWindow(w *Window, x, y int) (int, int) {
	lx := x - w.X
	ly := y - w.Y

	rot := w.effectiveRotation()
	if rot == 0 {
		return lx, ly
	}

	tx := float64(lx) - float64(w.Width)/2
	ty := float64(ly) - float64(w.Height)/2

	s, c := math.Sincos(-math.Pi * float64(rot) / 180.0)

	nx := tx*c - ty*s
	ny := tx*s + ty*c

	return int(nx) + w.Width/2, int(ny) + w.Height/2
}

// WindowToDevice maps a window-local coordinate to screen space, applying
// the window's rotation. It is the inverse of DeviceToWindow.
func WindowToDevice(w *Window, x, y int) (int, int) {
	rot := w.effectiveRotation()
	if rot == 0 {
		return w.X + x, w.Y + y
	}

	tx := float64(x) - float64(w.Width)/2
	ty := float64(y) - float64(w.Height)/2

	s, c := math.Sincos(math.Pi * float64(rot) / 180.0)

	nx := tx*c - ty*s
	ny := tx*s + ty*c

	return int(nx) + w.Width/2 + w.X, int(ny) + w.Height/2 + w.Y
}

// RotatedBounds returns the screen-space bounding box of the window's four
// corners after applying its rotation. For an axis-aligned window this is
// simply its bounds.
func RotatedBounds(w *Window) Rect {
	rot := w.effectiveRotation()
	if rot == 0 {
		return w.Bounds()
	}

	corners := [4][2]int{
		{0, 0},
		{w.Width, 0},
		{0, w.Height},
		{w.Width, w.Height},
	}

	minX, minY := math.MaxInt32, math.MaxInt32
	maxX, maxY := math.MinInt32, math.MinInt32
	for _, c := range corners {
		sx, sy := WindowToDevice(w, c[0], c[1])
		minX = min(minX, sx)
		minY = min(minY, sy)
		maxX = max(maxX, sx)
		maxY = max(maxY, sy)
	}

	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// relativeRotatedBounds forward-rotates a window-local rectangle's four
// corners into screen space and returns their bounding box. Used by
// mark_window_relative for partial-window damage.
func relativeRotatedBounds(w *Window, rx, ry, rw, rh int) Rect {
	rot := w.effectiveRotation()
	if rot == 0 {
		return Rect{X: w.X + rx, Y: w.Y + ry, W: rw, H: rh}
	}

	corners := [4][2]int{
		{rx, ry},
		{rx + rw, ry},
		{rx, ry + rh},
		{rx + rw, ry + rh},
	}

	minX, minY := math.MaxInt32, math.MaxInt32
	maxX, maxY := math.MinInt32, math.MinInt32
	for _, c := range corners {
		sx, sy := WindowToDevice(w, c[0], c[1])
		minX = min(minX, sx)
		minY = min(minY, sy)
		maxX = max(maxX, sx)
		maxY = max(maxY, sy)
	}

	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}
