// Copyright © 2025 compositord contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package wm

import "testing"

func TestDeviceWindowRotationRoundTrip(t *testing.T) {
	w := &Window{X: 100, Y: 100, Width: 200, Height: 120, Z: Mid, Rotation: 37}

	for _, pt := range [][2]int{{0, 0}, {200, 0}, {0, 120}, {200, 120}, {100, 60}} {
		sx, sy := WindowToDevice(w, pt[0], pt[1])
		lx, ly := DeviceToWindow(w, sx, sy)
		if abs(lx-pt[0]) > 1 || abs(ly-pt[1]) > 1 {
			t.Fatalf("round trip mismatch for %v: got (%d,%d)", pt, lx, ly)
		}
	}
}

func TestRotationDisabledOutsideMidBand(t *testing.T) {
	w := &Window{X: 0, Y: 0, Width: 100, Height: 100, Z: Top, Rotation: 45}
	lx, ly := DeviceToWindow(w, 50, 50)
	if lx != 50 || ly != 50 {
		t.Fatalf("expected identity mapping for a TOP window, got (%d,%d)", lx, ly)
	}
}

func TestRotatedBoundsIdentityForZeroRotation(t *testing.T) {
	w := &Window{X: 10, Y: 20, Width: 30, Height: 40, Z: Mid, Rotation: 0}
	got := RotatedBounds(w)
	want := Rect{X: 10, Y: 20, W: 30, H: 40}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
