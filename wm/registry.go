// Copyright © 2025 compositord contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: wm/registry.go
// Summary: Owns the set of windows, their z-order, and per-client buckets.
// Usage: Mutated by the dispatcher and the input state machine under
//        Server.RedrawLock; read by the compositor under the same lock.
// Notes: Callers are responsible for holding the appropriate lock — the
//        registry itself does no locking, matching the "ambient mutable
//        state... threaded explicitly" design note.

package wm

import (
	"fmt"

	"github.com/duskwm/compositord/shm"
)

// Registry owns the window set, z-order bands, and client buckets.
type Registry struct {
	windows  map[uint32]*Window
	bottom   *Window
	top      *Window
	mid      []*Window // back -> front
	byClient map[ClientID][]*Window

	nextWid uint32

	focused *Window
	hover   *Window
	capture *Window
}

// NewRegistry returns an empty window registry.
func NewRegistry() *Registry {
	return &Registry{
		windows:  make(map[uint32]*Window),
		byClient: make(map[ClientID][]*Window),
	}
}

// ErrUnknownWindow is returned when a wid does not name a live window.
var ErrUnknownWindow = fmt.Errorf("wm: unknown window id")

// Create allocates a new window owned by owner, with a zeroed shared buffer
// of w*h*4 bytes. It is placed at the frontmost Mid slot and scheduled to
// fade in.
func (r *Registry) Create(owner ClientID, w, h int, now int64, alloc func(wid uint32, size int) (*shm.Region, uint32, error)) (*Window, error) {
	r.nextWid++
	wid := r.nextWid

	region, bufID, err := alloc(wid, w*h*4)
	if err != nil {
		return nil, err
	}

	win := &Window{
		Wid:            wid,
		Owner:          owner,
		Width:          w,
		Height:         h,
		Z:              Mid,
		Buffer:         region,
		BufID:          bufID,
		AlphaThreshold: 1,
		AnimMode:       AnimFadeIn,
		AnimStart:      now,
	}

	r.windows[wid] = win
	r.mid = append(r.mid, win) // frontmost position within mid
	r.byClient[owner] = append(r.byClient[owner], win)

	return win, nil
}

// Lookup finds a window by id.
func (r *Registry) Lookup(wid uint32) (*Window, bool) {
	w, ok := r.windows[wid]
	return w, ok
}

// Windows returns every live window (unordered); callers needing z-order
// should use Bottom/Mid/TopWindow instead.
func (r *Registry) Windows() []*Window {
	out := make([]*Window, 0, len(r.windows))
	for _, w := range r.windows {
		out = append(out, w)
	}
	return out
}

// BottomWindow, MidWindows, and TopWindow expose the three bands in
// bottom-to-top composite order.
func (r *Registry) BottomWindow() *Window  { return r.bottom }
func (r *Registry) MidWindows() []*Window  { return r.mid }
func (r *Registry) TopWindow() *Window     { return r.top }

// ClientWindows returns the bucket of windows owned by a client.
func (r *Registry) ClientWindows(owner ClientID) []*Window {
	return r.byClient[owner]
}

func (r *Registry) removeFromMid(w *Window) bool {
	for i, m := range r.mid {
		if m == w {
			r.mid = append(r.mid[:i], r.mid[i+1:]...)
			return true
		}
	}
	return false
}

// unorder removes w from whatever slot it currently occupies.
func (r *Registry) unorder(w *Window) {
	switch w.Z {
	case Bottom:
		if r.bottom == w {
			r.bottom = nil
		}
	case Top:
		if r.top == w {
			r.top = nil
		}
	default:
		r.removeFromMid(w)
	}
}

// Reorder moves w into band, evicting any prior Bottom/Top occupant back
// into Mid at the frontmost position.
func (r *Registry) Reorder(w *Window, band Band) {
	if w == nil {
		return
	}
	r.unorder(w)
	w.Z = band

	switch band {
	case Mid:
		r.mid = append(r.mid, w)
	case Top:
		if r.top != nil {
			prior := r.top
			prior.Z = Mid
			r.mid = append(r.mid, prior)
		}
		r.top = w
	case Bottom:
		if r.bottom != nil {
			prior := r.bottom
			prior.Z = Mid
			r.mid = append(r.mid, prior)
		}
		r.bottom = w
	}
}

// Raise moves w to the frontmost Mid slot. No-op for Bottom/Top windows.
func (r *Registry) Raise(w *Window) {
	if w == nil || w.Z != Mid {
		return
	}
	if r.removeFromMid(w) {
		r.mid = append(r.mid, w)
	}
}

// HitTest scans Top, then Mid front-to-back, then Bottom, returning the
// first window whose opaque pixel lies under (x, y).
func (r *Registry) HitTest(x, y int) *Window {
	if r.top != nil && hits(r.top, x, y) {
		return r.top
	}
	for i := len(r.mid) - 1; i >= 0; i-- {
		if hits(r.mid[i], x, y) {
			return r.mid[i]
		}
	}
	if r.bottom != nil && hits(r.bottom, x, y) {
		return r.bottom
	}
	return nil
}

func hits(w *Window, x, y int) bool {
	lx, ly := DeviceToWindow(w, x, y)
	if lx < 0 || ly < 0 || lx >= w.Width || ly >= w.Height {
		return false
	}
	return w.alphaAt(lx, ly) >= w.AlphaThreshold
}

// Destroy removes w from every index, releases its shared buffer, and
// clears the focus/hover/capture pointers if they referenced it.
func (r *Registry) Destroy(w *Window) {
	if w == nil {
		return
	}
	r.unorder(w)
	delete(r.windows, w.Wid)

	bucket := r.byClient[w.Owner]
	for i, m := range bucket {
		if m == w {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(r.byClient, w.Owner)
	} else {
		r.byClient[w.Owner] = bucket
	}

	if w.Buffer != nil {
		_ = w.Buffer.Close()
		w.Buffer = nil
	}

	if r.focused == w {
		r.focused = nil
	}
	if r.hover == w {
		r.hover = nil
	}
	if r.capture == w {
		r.capture = nil
	}
}

// Focused, Hover, and Capture expose the single-slot pointers the input
// state machine and compositor consult.
func (r *Registry) Focused() *Window { return r.focused }
func (r *Registry) Hover() *Window   { return r.hover }
func (r *Registry) Capture() *Window { return r.capture }

// SetFocused, SetHover, and SetCapture update those pointers directly; the
// input state machine is responsible for the message-emission side effects
// of a focus change (see wm/input.go's setFocus).
func (r *Registry) SetFocused(w *Window) { r.focused = w }
func (r *Registry) SetHover(w *Window)   { r.hover = w }
func (r *Registry) SetCapture(w *Window) { r.capture = w }

// MarkForClose transitions w into its fade-out animation, timed from now (a
// compositor tick value). The window is actually destroyed later by the
// compositor once the animation completes.
func (r *Registry) MarkForClose(w *Window, now int64) {
	if w == nil {
		return
	}
	w.AnimMode = AnimFadeOut
	w.AnimStart = now
}

// CloseAllForClient marks every window owned by owner for close and drops
// the client's bucket tracking (the windows themselves remain registered
// until their fade-out animation completes).
func (r *Registry) CloseAllForClient(owner ClientID, now int64) []*Window {
	bucket := append([]*Window(nil), r.byClient[owner]...)
	for _, w := range bucket {
		r.MarkForClose(w, now)
	}
	delete(r.byClient, owner)
	return bucket
}
