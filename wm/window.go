// Copyright © 2025 compositord contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: wm/window.go
// Summary: Defines the Window entity and its lifecycle constants.
// Usage: Used throughout wm to represent a client-owned on-screen surface.

package wm

import "github.com/duskwm/compositord/shm"

// Band identifies one of the three z-positions a window can occupy.
type Band uint8

const (
	Bottom Band = iota
	Mid
	Top
)

// AnimMode identifies the open/close animation currently driving a window.
type AnimMode uint8

const (
	AnimNone AnimMode = iota
	AnimFadeIn
	AnimFadeOut
)

// AnimLength is the number of animation ticks a fade takes to complete.
// Ticks advance by tickStep (10) per composed frame, so a fade spans
// AnimLength/tickStep frames.
const AnimLength = 256

const tickStep = 10

// ClientID identifies the owning client. It is the opaque "source" handle
// the transport attaches to inbound packets.
type ClientID uint64

// Window is the primary entity: a client-owned rectangular surface backed by
// a shared-memory ARGB32 framebuffer.
type Window struct {
	Wid   uint32
	Owner ClientID

	X, Y          int
	Width, Height int

	Z       Band
	MidRank int // informational only; true order lives in Registry.mid

	Buffer *shm.Region
	BufID  uint32

	PendingBuffer *shm.Region
	PendingBufID  uint32

	Rotation int // degrees, conventionally [0,360)

	AlphaThreshold uint8

	AnimMode  AnimMode
	AnimStart int64 // compositor tick value at which the animation began

	ClientFlags   uint32
	ClientOffsets [6]int32
	ClientStrings string
}

// effectiveRotation returns the rotation used for hit-testing and blitting.
// Rotation is disabled (identity) for windows in Bottom or Top, per spec.
func (w *Window) effectiveRotation() int {
	if w.Z != Mid {
		return 0
	}
	return w.Rotation
}

// Bounds returns the window's unrotated screen-space rectangle.
func (w *Window) Bounds() Rect {
	return Rect{X: w.X, Y: w.Y, W: w.Width, H: w.Height}
}

// alphaAt reads the ARGB32 pixel at local (lx, ly), returning its alpha
// byte. Out-of-range coordinates report zero alpha (fully transparent).
func (w *Window) alphaAt(lx, ly int) uint8 {
	if w.Buffer == nil || lx < 0 || ly < 0 || lx >= w.Width || ly >= w.Height {
		return 0
	}
	stride := w.Width * 4
	off := ly*stride + lx*4
	data := w.Buffer.Bytes()
	if off+4 > len(data) {
		return 0
	}
	// ARGB32 little-endian: byte order in memory is B, G, R, A.
	return data[off+3]
}
