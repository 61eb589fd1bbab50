// Copyright © 2025 compositord contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: wm/input.go
// Summary: The input-driven interaction state machine: focus, click,
//           drag-to-move, alt-drag-to-resize, tiling hotkeys, and the
//           global key-binding grab.
// Usage: Server feeds KEY_EVENT/MOUSE_EVENT packets from trusted input-source
//        clients into Input.Mouse / Input.Key under RedrawLock.

package wm

// Modifier is a bitmask of held modifier keys.
type Modifier uint32

const (
	ModShift Modifier = 1 << iota
	ModCtrl
	ModAlt
	ModSuper
)

// MouseButton identifies a pointer button.
type MouseButton uint8

const (
	NoButton MouseButton = iota
	LeftButton
	MiddleButton
	RightButton
)

// MouseState is one of the four states the interaction state machine
// occupies.
type MouseState uint8

const (
	Normal MouseState = iota
	Dragging
	Moving
	Resizing
)

// MouseEventKind names the outbound pointer message types EventSink.Mouse
// emits.
type MouseEventKind uint8

const (
	MouseMove MouseEventKind = iota
	MouseEnter
	MouseLeave
	MouseDown
	MouseClick
	MouseRaise
	MouseDrag
)

// KeyAction distinguishes press from release.
type KeyAction uint8

const (
	KeyPress KeyAction = iota
	KeyRelease
)

// scale is the subpixel-to-screen-pixel factor pointer input arrives in.
const scale = 3

// EventSink is the outbound half of the input state machine: everything it
// decides to tell a client goes through here. The message dispatcher
// implements it by encoding and writing wire messages.
type EventSink interface {
	// FocusChanged notifies owner that wid gained (focused=true) or lost
	// (focused=false) focus.
	FocusChanged(owner ClientID, wid uint32, focused bool)
	// Mouse delivers a pointer event addressed to wid, in window-local
	// coordinates; old* is only meaningful for MouseDrag/MouseRaise.
	Mouse(owner ClientID, wid uint32, kind MouseEventKind, lx, ly, oldLx, oldLy int)
	// Key delivers a key event to wid and reports whether the recipient
	// consumed it (STEAL); the caller uses this to decide whether to also
	// forward to the focused window.
	Key(owner ClientID, wid uint32, keycode uint32, mods Modifier, action KeyAction) (stolen bool)
	// ResizeOffer proposes new dimensions to a window's owner, starting
	// the resize handshake.
	ResizeOffer(owner ClientID, wid uint32, w, h int)
	// SubscriberNotify broadcasts a window lifecycle/focus event to every
	// subscribed client.
	SubscriberNotify(wid uint32, kind SubscriberEventKind)
}

// SubscriberEventKind names the broadcast notifications the dispatcher's
// subscription mechanism fans out.
type SubscriberEventKind uint8

const (
	SubscriberFocusChanged SubscriberEventKind = iota
	SubscriberWindowClosed
	SubscriberWindowCreated
	SubscriberWindowAdvertised
)

// Input owns the mouse/keyboard interaction state machine over a Registry
// and DamageQueue. It holds no locks itself; callers serialize access.
type Input struct {
	Registry *Registry
	Damage   *DamageQueue
	Binds    *KeyBindTable
	Sink     EventSink

	ScreenW, ScreenH int
	// TopHeight returns the current TOP band's height, or 0 if absent.
	TopHeight func() int
	// Now returns the compositor's current animation tick, stamped onto
	// windows that start fading.
	Now func() int64

	state       MouseState
	initX, initY int
	winX, winY   int
	clickX, clickY int
	moved        bool
	dragButton   MouseButton
	resizingW, resizingH int
	capture      *Window

	mods Modifier

	hitTestVis     bool
	boundsOverlay  bool

	lastPx, lastPy int
}

// NewInput wires an interaction state machine over reg/dq/binds, delivering
// outbound events through sink.
func NewInput(reg *Registry, dq *DamageQueue, binds *KeyBindTable, sink EventSink) *Input {
	return &Input{Registry: reg, Damage: dq, Binds: binds, Sink: sink}
}

func (in *Input) clamp(x, y int) (int, int) {
	maxX, maxY := in.ScreenW*scale, in.ScreenH*scale
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if x > maxX {
		x = maxX
	}
	if y > maxY {
		y = maxY
	}
	return x, y
}

func (in *Input) topHeight() int {
	if in.TopHeight == nil {
		return 0
	}
	return in.TopHeight()
}

func (in *Input) now() int64 {
	if in.Now == nil {
		return 0
	}
	return in.Now()
}

// setFocus implements the focus module: no-op if unchanged, otherwise
// notifies the old and new owners, raises the new focus within MID, and
// broadcasts a subscriber notification. A nil target falls through to
// BottomWindow for key routing (Input.focusOrBottom), not for W itself:
// the registry's Focused() can legitimately be nil.
func (in *Input) setFocus(w *Window) {
	prev := in.Registry.Focused()
	if prev == w {
		return
	}
	if prev != nil && in.Sink != nil {
		in.Sink.FocusChanged(prev.Owner, prev.Wid, false)
	}
	in.Registry.SetFocused(w)
	if w != nil {
		if in.Sink != nil {
			in.Sink.FocusChanged(w.Owner, w.Wid, true)
		}
		in.Registry.Raise(w)
	}
	if in.Sink != nil {
		var wid uint32
		if w != nil {
			wid = w.Wid
		}
		in.Sink.SubscriberNotify(wid, SubscriberFocusChanged)
	}
}

// SetFocus gives w input focus, a client-requested equivalent of the
// pointer-driven focus change in handleNormal (WINDOW_FOCUS).
func (in *Input) SetFocus(w *Window) {
	in.setFocus(w)
}

// BeginDrag starts a MOVING gesture for w from the last known pointer
// position, the client-requested equivalent of an alt-drag
// (WINDOW_DRAG_START). It is a no-op if w is not a MID window.
func (in *Input) BeginDrag(w *Window) {
	if w == nil || w.Z != Mid {
		return
	}
	in.capture = w
	in.Registry.SetCapture(w)
	in.initX, in.initY = in.lastPx, in.lastPy
	in.winX, in.winY = w.X, w.Y
	in.state = Moving
}

// focusOrBottom returns the focused window, falling back to BottomWindow
// when nothing is focused, per the key-routing default.
func (in *Input) focusOrBottom() *Window {
	if f := in.Registry.Focused(); f != nil {
		return f
	}
	return in.Registry.BottomWindow()
}

// Mouse feeds one raw pointer sample (subpixel screen coordinates, and the
// button that just transitioned, if any) through the transition table in
// 4.D. pressed and released are NoButton unless that call reports an edge.
func (in *Input) Mouse(x, y int, pressed, released MouseButton) {
	x, y = in.clamp(x, y)
	px, py := x/scale, y/scale
	in.lastPx, in.lastPy = px, py

	switch in.state {
	case Normal:
		in.handleNormal(px, py, pressed)
	case Moving:
		in.handleMoving(px, py, released)
	case Dragging:
		in.handleDragging(px, py, released)
	case Resizing:
		in.handleResizing(px, py, released)
	}
}

func (in *Input) handleNormal(px, py int, pressed MouseButton) {
	switch pressed {
	case LeftButton:
		if in.mods&ModAlt != 0 {
			w := in.Registry.HitTest(px, py)
			in.setFocus(w)
			if w != nil && w.Z == Mid {
				in.capture = w
				in.Registry.SetCapture(w)
			}
			in.initX, in.initY = px, py
			if w != nil {
				in.winX, in.winY = w.X, w.Y
			}
			in.state = Moving
			return
		}
		w := in.Registry.HitTest(px, py)
		in.setFocus(w)
		in.moved = false
		in.dragButton = LeftButton
		if w != nil {
			lx, ly := DeviceToWindow(w, px, py)
			in.clickX, in.clickY = lx, ly
			if in.Sink != nil {
				in.Sink.Mouse(w.Owner, w.Wid, MouseDown, lx, ly, 0, 0)
			}
		}
		in.state = Dragging

	case MiddleButton:
		if in.mods&ModAlt != 0 {
			w := in.Registry.HitTest(px, py)
			in.setFocus(w)
			if w != nil && w.Z == Mid {
				in.capture = w
				in.Registry.SetCapture(w)
				in.resizingW, in.resizingH = w.Width, w.Height
			}
			in.state = Resizing
			return
		}

	default:
		in.trackHover(px, py)
	}
}

// trackHover implements the NORMAL/motion row: MOUSE_MOVE to focused, plus
// enter/leave bookkeeping against the hover window.
func (in *Input) trackHover(px, py int) {
	if f := in.Registry.Focused(); f != nil && in.Sink != nil {
		lx, ly := DeviceToWindow(f, px, py)
		in.Sink.Mouse(f.Owner, f.Wid, MouseMove, lx, ly, 0, 0)
	}

	hit := in.Registry.HitTest(px, py)
	prevHover := in.Registry.Hover()
	if hit == prevHover {
		return
	}
	if prevHover != nil && in.Sink != nil {
		lx, ly := DeviceToWindow(prevHover, px, py)
		in.Sink.Mouse(prevHover.Owner, prevHover.Wid, MouseLeave, lx, ly, 0, 0)
	}
	in.Registry.SetHover(hit)
	if hit != nil && in.Sink != nil {
		lx, ly := DeviceToWindow(hit, px, py)
		in.Sink.Mouse(hit.Owner, hit.Wid, MouseEnter, lx, ly, 0, 0)
		in.Sink.Mouse(hit.Owner, hit.Wid, MouseMove, lx, ly, 0, 0)
	}
}

func (in *Input) handleMoving(px, py int, released MouseButton) {
	if released == LeftButton {
		in.Registry.SetCapture(nil)
		in.capture = nil
		in.state = Normal
		return
	}
	if in.capture == nil {
		return
	}
	w := in.capture
	in.Damage.MarkWindow(w)
	w.X = in.winX + (px - in.initX)
	w.Y = in.winY + (py - in.initY)
	in.Damage.MarkWindow(w)
}

func (in *Input) handleDragging(px, py int, released MouseButton) {
	f := in.Registry.Focused()
	if f == nil {
		if released == in.dragButton {
			in.state = Normal
		}
		return
	}
	lx, ly := DeviceToWindow(f, px, py)

	if released == in.dragButton {
		if !in.moved {
			if in.Sink != nil {
				in.Sink.Mouse(f.Owner, f.Wid, MouseClick, lx, ly, 0, 0)
			}
		} else {
			if in.Sink != nil {
				in.Sink.Mouse(f.Owner, f.Wid, MouseRaise, lx, ly, in.clickX, in.clickY)
			}
		}
		in.state = Normal
		return
	}

	if lx != in.clickX || ly != in.clickY {
		in.moved = true
		if in.Sink != nil {
			in.Sink.Mouse(f.Owner, f.Wid, MouseDrag, lx, ly, in.clickX, in.clickY)
		}
		in.clickX, in.clickY = lx, ly
	}
}

func (in *Input) handleResizing(px, py int, released MouseButton) {
	if released == MiddleButton {
		if in.capture != nil && in.Sink != nil {
			in.Sink.ResizeOffer(in.capture.Owner, in.capture.Wid, in.resizingW, in.resizingH)
		}
		in.Registry.SetCapture(nil)
		in.capture = nil
		in.state = Normal
		return
	}
	if in.capture == nil {
		return
	}
	w := in.capture
	dx := px - in.initX
	dy := py - in.initY
	in.initX, in.initY = px, py

	old := Rect{X: w.X - 2, Y: w.Y - 2, W: in.resizingW + 4 + 10, H: in.resizingH + 4 + 10}
	in.resizingW += dx
	in.resizingH += dy
	if in.resizingW < 1 {
		in.resizingW = 1
	}
	if in.resizingH < 1 {
		in.resizingH = 1
	}
	newR := Rect{X: w.X - 2, Y: w.Y - 2, W: in.resizingW + 4 + 10, H: in.resizingH + 4 + 10}
	in.Damage.MarkRegion(old.X, old.Y, old.W, old.H)
	in.Damage.MarkRegion(newR.X, newR.Y, newR.W, newR.H)
}

// ResizeOutline implements wm.ResizeOverlay for the compositor: while
// RESIZING, report the would-be final bounds of the captured window.
func (in *Input) ResizeOutline() (Rect, bool) {
	if in.state != Resizing || in.capture == nil {
		return Rect{}, false
	}
	w := in.capture
	return Rect{X: w.X, Y: w.Y, W: in.resizingW, H: in.resizingH}, true
}

// Key feeds one keyboard event through the built-in shortcuts, then the
// global bind table, then (if not stolen) the focused window.
func (in *Input) Key(keycode uint32, mods Modifier, action KeyAction) {
	in.mods = mods
	if action != KeyPress {
		return
	}

	if f := in.Registry.Focused(); f != nil {
		if in.handleBuiltinShortcut(f, keycode, mods) {
			return
		}
	}

	if b, ok := in.Binds.Lookup(uint32(mods), keycode); ok {
		stolen := true
		if in.Sink != nil {
			stolen = in.Sink.Key(b.Owner, 0, keycode, mods, action)
		}
		if b.Response == Steal || stolen {
			return
		}
	}

	target := in.focusOrBottom()
	if target != nil && in.Sink != nil {
		in.Sink.Key(target.Owner, target.Wid, keycode, mods, action)
	}
}

// handleBuiltinShortcut implements the CTRL+SHIFT rotate keys, ALT+F10
// maximize, SUPER+arrow tiling grid, and the debug overlay toggles.
func (in *Input) handleBuiltinShortcut(f *Window, keycode uint32, mods Modifier) bool {
	const (
		keyZ     = 'Z'
		keyX     = 'X'
		keyC     = 'C'
		keyF10   = 0xFFC7
		keyV     = 'V'
		keyB     = 'B'
		keyLeft  = 0xFF51
		keyRight = 0xFF53
		keyUp    = 0xFF52
		keyDown  = 0xFF54
	)

	switch {
	case mods == ModCtrl|ModShift && keycode == keyZ:
		if f.Z == Mid {
			in.Damage.MarkWindow(f)
			f.Rotation -= 5
			in.Damage.MarkWindow(f)
		}
		return true
	case mods == ModCtrl|ModShift && keycode == keyX:
		if f.Z == Mid {
			in.Damage.MarkWindow(f)
			f.Rotation += 5
			in.Damage.MarkWindow(f)
		}
		return true
	case mods == ModCtrl|ModShift && keycode == keyC:
		if f.Z == Mid {
			in.Damage.MarkWindow(f)
			f.Rotation = 0
			in.Damage.MarkWindow(f)
		}
		return true

	case mods == ModAlt && keycode == keyF10:
		w, h := Tile(in.Damage, f, in.ScreenW, in.ScreenH, in.topHeight(), 1, 1, 0, 0)
		if in.Sink != nil {
			in.Sink.ResizeOffer(f.Owner, f.Wid, w, h)
		}
		return true

	case mods == ModCtrl|ModShift && keycode == keyV:
		in.hitTestVis = !in.hitTestVis
		return true
	case mods == ModCtrl|ModShift && keycode == keyB:
		in.boundsOverlay = !in.boundsOverlay
		return true
	}

	if mods&ModSuper != 0 {
		return in.handleSuperArrow(f, keycode, mods)
	}
	return false
}

// handleSuperArrow implements the SUPER(+SHIFT/CTRL)+arrow half/quarter
// tiling grid.
func (in *Input) handleSuperArrow(f *Window, keycode uint32, mods Modifier) bool {
	const (
		keyLeft  = 0xFF51
		keyRight = 0xFF53
		keyUp    = 0xFF52
		keyDown  = 0xFF54
	)
	extra := mods &^ ModSuper

	var wdiv, hdiv, cx, cy int
	switch {
	case extra == ModShift && keycode == keyLeft:
		wdiv, hdiv, cx, cy = 2, 2, 0, 0
	case extra == ModShift && keycode == keyRight:
		wdiv, hdiv, cx, cy = 2, 2, 1, 0
	case extra == ModCtrl && keycode == keyLeft:
		wdiv, hdiv, cx, cy = 2, 2, 0, 1
	case extra == ModCtrl && keycode == keyRight:
		wdiv, hdiv, cx, cy = 2, 2, 1, 1
	case extra == 0 && keycode == keyLeft:
		wdiv, hdiv, cx, cy = 2, 1, 0, 0
	case extra == 0 && keycode == keyRight:
		wdiv, hdiv, cx, cy = 2, 1, 1, 0
	case extra == 0 && keycode == keyUp:
		wdiv, hdiv, cx, cy = 1, 2, 0, 0
	case extra == 0 && keycode == keyDown:
		wdiv, hdiv, cx, cy = 1, 2, 0, 1
	default:
		return false
	}

	w, h := Tile(in.Damage, f, in.ScreenW, in.ScreenH, in.topHeight(), wdiv, hdiv, cx, cy)
	if in.Sink != nil {
		in.Sink.ResizeOffer(f.Owner, f.Wid, w, h)
	}
	return true
}

// HitTestVisible and BoundsOverlayVisible expose the debug toggles for a
// diagnostic Surface implementation to consult.
func (in *Input) HitTestVisible() bool    { return in.hitTestVis }
func (in *Input) BoundsOverlayVisible() bool { return in.boundsOverlay }

// DisconnectClient tears down every window a client owned: closes its
// windows (fade-out), releases its key bindings, and clears any state-
// machine pointers referencing it.
func (in *Input) DisconnectClient(owner ClientID) []*Window {
	closed := in.Registry.CloseAllForClient(owner, in.now())
	in.Binds.UnbindOwner(owner)
	if in.capture != nil && in.capture.Owner == owner {
		in.capture = nil
		in.Registry.SetCapture(nil)
		in.state = Normal
	}
	return closed
}
