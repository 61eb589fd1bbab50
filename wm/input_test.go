// Copyright © 2025 compositord contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package wm

import "testing"

type recordedMouse struct {
	owner ClientID
	wid   uint32
	kind  MouseEventKind
	lx, ly, oldLx, oldLy int
}

type recordedKey struct {
	owner   ClientID
	wid     uint32
	keycode uint32
	mods    Modifier
}

type fakeSink struct {
	mouse         []recordedMouse
	keys          []recordedKey
	focusChanges  []struct {
		owner   ClientID
		wid     uint32
		focused bool
	}
	resizeOffers []recordedMouse // reuses lx/ly as w/h for convenience
	stealNext    bool
}

func (s *fakeSink) FocusChanged(owner ClientID, wid uint32, focused bool) {
	s.focusChanges = append(s.focusChanges, struct {
		owner   ClientID
		wid     uint32
		focused bool
	}{owner, wid, focused})
}

func (s *fakeSink) Mouse(owner ClientID, wid uint32, kind MouseEventKind, lx, ly, oldLx, oldLy int) {
	s.mouse = append(s.mouse, recordedMouse{owner, wid, kind, lx, ly, oldLx, oldLy})
}

func (s *fakeSink) Key(owner ClientID, wid uint32, keycode uint32, mods Modifier, action KeyAction) bool {
	s.keys = append(s.keys, recordedKey{owner, wid, keycode, mods})
	return s.stealNext
}

func (s *fakeSink) ResizeOffer(owner ClientID, wid uint32, w, h int) {
	s.resizeOffers = append(s.resizeOffers, recordedMouse{owner: owner, wid: wid, lx: w, ly: h})
}

func (s *fakeSink) SubscriberNotify(wid uint32, kind SubscriberEventKind) {}

func newTestInput(t *testing.T) (*Input, *Registry, *fakeSink) {
	t.Helper()
	reg := NewRegistry()
	dq := NewDamageQueue()
	binds := NewKeyBindTable()
	sink := &fakeSink{}
	in := NewInput(reg, dq, binds, sink)
	in.ScreenW, in.ScreenH = 1024, 768
	return in, reg, sink
}

func TestClickDispatchesMouseDownAndFocus(t *testing.T) {
	in, reg, sink := newTestInput(t)
	w, err := reg.Create(ClientID(1), 100, 100, 0, noBufferAlloc)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	w.AlphaThreshold = 0 // treat every pixel as opaque without a real buffer
	w.X, w.Y = 0, 0

	in.Mouse((50)*scale, (50)*scale, LeftButton, NoButton)

	if reg.Focused() != w {
		t.Fatalf("expected click to focus the hit window")
	}
	if len(sink.mouse) != 1 || sink.mouse[0].kind != MouseDown {
		t.Fatalf("expected a single MouseDown event, got %+v", sink.mouse)
	}
	if len(sink.focusChanges) != 1 || !sink.focusChanges[0].focused {
		t.Fatalf("expected a focus-gained notification, got %+v", sink.focusChanges)
	}
}

func TestAltDragMovesWindow(t *testing.T) {
	in, reg, _ := newTestInput(t)
	w, _ := reg.Create(ClientID(1), 100, 100, 0, noBufferAlloc)
	w.AlphaThreshold = 0
	w.X, w.Y = 10, 10

	in.mods = ModAlt
	in.Mouse(50*scale, 50*scale, LeftButton, NoButton)
	if in.state != Moving {
		t.Fatalf("expected ALT+drag to enter Moving state, got %v", in.state)
	}

	in.Mouse(70*scale, 60*scale, NoButton, NoButton)
	if w.X != 30 || w.Y != 20 {
		t.Fatalf("expected window to move by (20,10) to (30,20), got (%d,%d)", w.X, w.Y)
	}

	in.Mouse(70*scale, 60*scale, NoButton, LeftButton)
	if in.state != Normal {
		t.Fatalf("expected releasing the button to return to Normal, got %v", in.state)
	}
}

func TestKeyBindStealPreventsForwardToFocusedWindow(t *testing.T) {
	in, reg, sink := newTestInput(t)
	w, _ := reg.Create(ClientID(1), 100, 100, 0, noBufferAlloc)
	reg.SetFocused(w)
	in.Binds.Bind(uint32(ModSuper), 'Q', ClientID(9), Steal)

	in.Key('Q', ModSuper, KeyPress)

	if len(sink.keys) != 1 {
		t.Fatalf("expected exactly one key delivery (to the bind owner), got %d", len(sink.keys))
	}
	if sink.keys[0].owner != ClientID(9) {
		t.Fatalf("expected the bind owner to receive the key, got %d", sink.keys[0].owner)
	}
}

func TestKeyBindPassThroughAlsoReachesFocusedWindow(t *testing.T) {
	in, reg, sink := newTestInput(t)
	w, _ := reg.Create(ClientID(1), 100, 100, 0, noBufferAlloc)
	reg.SetFocused(w)
	in.Binds.Bind(uint32(ModSuper), 'Q', ClientID(9), PassThrough)
	sink.stealNext = false

	in.Key('Q', ModSuper, KeyPress)

	if len(sink.keys) != 2 {
		t.Fatalf("expected the bind owner and the focused window to both receive the key, got %d", len(sink.keys))
	}
	if sink.keys[1].owner != w.Owner {
		t.Fatalf("expected the second delivery to go to the focused window's owner")
	}
}

func TestDisconnectClientClosesItsWindowsAndBindings(t *testing.T) {
	in, reg, _ := newTestInput(t)
	w, _ := reg.Create(ClientID(1), 100, 100, 0, noBufferAlloc)
	in.Binds.Bind(0, 'A', ClientID(1), PassThrough)
	in.BeginDrag(w)

	closed := in.DisconnectClient(ClientID(1))

	if len(closed) != 1 || closed[0] != w {
		t.Fatalf("expected the client's window to be reported closed")
	}
	if w.AnimMode != AnimFadeOut {
		t.Fatalf("expected the window to start fading out")
	}
	if _, ok := in.Binds.Lookup(0, 'A'); ok {
		t.Fatalf("expected the client's key binding to be removed")
	}
	if in.state != Normal || reg.Capture() != nil {
		t.Fatalf("expected the capture state to be cleared")
	}
}

func TestMouseEventWithNoMotionOrButtonsProducesNoOutboundMessages(t *testing.T) {
	in, _, sink := newTestInput(t)
	in.Mouse(0, 0, NoButton, NoButton)
	in.Mouse(0, 0, NoButton, NoButton)
	if len(sink.mouse) != 0 {
		t.Fatalf("expected no mouse events with nothing focused or hovered, got %+v", sink.mouse)
	}
}
