// Copyright © 2025 compositord contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: wm/compositor.go
// Summary: The per-frame render loop: drains damage, blits bottom/mid/top,
//           overlays the resize outline and cursor, presents, and retires
//           windows whose fade-out animation finished.
// Usage: Server starts Compositor.Run in its own goroutine, ticking at
//        ~16.6ms, guarded by the same lock order the dispatcher uses.

package wm

import (
	"context"
	"sync"
	"time"
)

const frameInterval = 16*time.Millisecond + 600*time.Microsecond

// ResizeOverlay reports the outline the compositor should draw while a
// resize gesture from the input state machine is in progress.
type ResizeOverlay interface {
	ResizeOutline() (Rect, bool)
}

// Cursor supplies the latched pointer position, in screen pixels.
type Cursor interface {
	Position() (x, y int)
}

// Compositor owns the render loop over a Registry and DamageQueue.
type Compositor struct {
	Registry *Registry
	Damage   *DamageQueue
	Surface  Surface
	Cursor   Cursor
	Resize   ResizeOverlay

	// Nested reports whether this compositor is running self-hosted inside
	// another window manager's window; in that mode the cursor is not
	// drawn. Present is called the same way in both modes.
	Nested func() bool

	// Sink receives a SubscriberWindowClosed notification for every window
	// whose fade-out animation completes and is actually destroyed. May be
	// nil for tests that only exercise a single Compose call.
	Sink EventSink

	// Lock is acquired for the blit step (5-9 of the frame algorithm),
	// matching Server.RedrawLock's documented scope.
	Lock sync.Locker

	lastCursorX, lastCursorY int
	haveCursor                bool
	tick                      int64
}

// NewCompositor wires a render loop over the given registry, damage queue,
// and blit surface. Cursor, Resize, Nested, and Lock may be nil/no-op for
// tests that only exercise a single Compose call.
func NewCompositor(reg *Registry, dq *DamageQueue, surf Surface) *Compositor {
	return &Compositor{Registry: reg, Damage: dq, Surface: surf}
}

// Run ticks the compositor until ctx is cancelled.
func (c *Compositor) Run(ctx context.Context) {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.Compose(now.UnixMilli())
		}
	}
}

// Tick returns the compositor's current animation tick counter. Callers
// that stamp a window's AnimStart (registry Create, MarkForClose) should use
// this value so fade progress is measured against the same clock the
// compositor advances.
func (c *Compositor) Tick() int64 { return c.tick }

// Compose executes one frame of the algorithm described in the compositor
// module: latch cursor, mark animating windows, drain damage, blit, overlay
// resize/cursor, present, and retire completed fade-outs.
func (c *Compositor) Compose(nowMillis int64) {
	defer func() { c.tick += tickStep }()

	cx, cy := 0, 0
	if c.Cursor != nil {
		cx, cy = c.Cursor.Position()
	}
	if !c.haveCursor {
		c.lastCursorX, c.lastCursorY = cx, cy
		c.haveCursor = true
	}
	if cx != c.lastCursorX || cy != c.lastCursorY {
		c.Damage.MarkRegion(c.lastCursorX, c.lastCursorY, 64, 64)
		c.Damage.MarkRegion(cx, cy, 64, 64)
	}
	c.lastCursorX, c.lastCursorY = cx, cy

	for _, w := range c.Registry.Windows() {
		if w.AnimMode != AnimNone {
			c.Damage.MarkWindow(w)
		}
	}

	rects := c.Damage.Drain()
	if len(rects) == 0 {
		return
	}
	clip, ok := Union(rects)
	if !ok {
		return
	}

	nested := c.Nested != nil && c.Nested()

	if c.Lock != nil {
		c.Lock.Lock()
	}
	var closeQueue []*Window
	if b := c.Registry.BottomWindow(); b != nil {
		c.blitWindow(b, &closeQueue)
	}
	for _, m := range c.Registry.MidWindows() {
		c.blitWindow(m, &closeQueue)
	}
	if t := c.Registry.TopWindow(); t != nil {
		c.blitWindow(t, &closeQueue)
	}

	if c.Resize != nil {
		if outline, resizing := c.Resize.ResizeOutline(); resizing {
			c.Surface.FillRect(outline, 0x40000000)
			c.Surface.StrokeRect(outline, 0xFFFFFFFF)
		}
	}

	if !nested {
		c.Surface.FillRect(Rect{X: cx, Y: cy, W: 1, H: 1}, 0xFFFFFFFF)
	}

	c.Surface.Present(clip)

	for _, w := range closeQueue {
		wid := w.Wid
		c.Registry.Destroy(w)
		if c.Sink != nil {
			c.Sink.SubscriberNotify(wid, SubscriberWindowClosed)
		}
	}
	if c.Lock != nil {
		c.Lock.Unlock()
	}
}

// blitWindow implements the per-window blit rules: rotation and
// nearest-neighbour sampling for rotated MID windows, fade-in/fade-out
// scale and opacity, and enqueuing completed fade-outs onto the close
// queue instead of painting them.
func (c *Compositor) blitWindow(w *Window, closeQueue *[]*Window) {
	if w.Buffer == nil {
		return
	}

	switch w.AnimMode {
	case AnimNone:
		c.Surface.BlitWindow(w, 1.0, 1.0)

	case AnimFadeIn:
		frame := c.tick - w.AnimStart
		alpha := float64(frame) / float64(AnimLength)
		if alpha >= 1 {
			alpha = 1
			w.AnimMode = AnimNone
		}
		scale := 0.75 + 0.25*alpha
		c.Surface.BlitWindow(w, scale, alpha)

	case AnimFadeOut:
		elapsed := c.tick - w.AnimStart
		frame := AnimLength - elapsed
		if frame <= 0 {
			*closeQueue = append(*closeQueue, w)
			return
		}
		alpha := float64(frame) / float64(AnimLength)
		scale := 0.75 + 0.25*alpha
		c.Surface.BlitWindow(w, scale, alpha)
	}
}
