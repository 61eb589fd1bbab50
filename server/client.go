// Copyright © 2025 compositord contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: server/client.go
// Summary: Per-client bookkeeping: outbound message ordering, subscription
//           set, and the wm.EventSink implementation that turns interaction
//           state machine decisions into wire messages.
// Usage: Dispatcher owns one *clientTable for the lifetime of the process.

package server

import (
	"log"
	"sync"

	"github.com/duskwm/compositord/protocol"
	"github.com/duskwm/compositord/transport"
	"github.com/duskwm/compositord/wm"
)

// clientTable maps transport sources to the ClientID the registry uses, and
// tracks the subscriber set for lifecycle broadcasts.
type clientTable struct {
	mu          sync.Mutex
	nextID      wm.ClientID
	bySource    map[transport.Source]wm.ClientID
	sourceOf    map[wm.ClientID]transport.Source
	subscribers map[wm.ClientID]struct{}
	inputToken  string
	trusted     map[wm.ClientID]struct{}
}

func newClientTable(inputToken string) *clientTable {
	return &clientTable{
		bySource:    make(map[transport.Source]wm.ClientID),
		sourceOf:    make(map[wm.ClientID]transport.Source),
		subscribers: make(map[wm.ClientID]struct{}),
		trusted:     make(map[wm.ClientID]struct{}),
		inputToken:  inputToken,
	}
}

// identify returns the stable ClientID for a transport source, allocating a
// new one on first contact.
func (t *clientTable) identify(src transport.Source) wm.ClientID {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.bySource[src]; ok {
		return id
	}
	t.nextID++
	id := t.nextID
	t.bySource[src] = id
	t.sourceOf[id] = src
	return id
}

func (t *clientTable) source(id wm.ClientID) (transport.Source, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	src, ok := t.sourceOf[id]
	return src, ok
}

func (t *clientTable) subscribe(id wm.ClientID) {
	t.mu.Lock()
	t.subscribers[id] = struct{}{}
	t.mu.Unlock()
}

func (t *clientTable) unsubscribe(id wm.ClientID) {
	t.mu.Lock()
	delete(t.subscribers, id)
	t.mu.Unlock()
}

func (t *clientTable) allSubscribers() []wm.ClientID {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]wm.ClientID, 0, len(t.subscribers))
	for id := range t.subscribers {
		out = append(out, id)
	}
	return out
}

func (t *clientTable) allKnown() []wm.ClientID {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]wm.ClientID, 0, len(t.sourceOf))
	for id := range t.sourceOf {
		out = append(out, id)
	}
	return out
}

func (t *clientTable) forget(id wm.ClientID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if src, ok := t.sourceOf[id]; ok {
		delete(t.bySource, src)
	}
	delete(t.sourceOf, id)
	delete(t.subscribers, id)
	delete(t.trusted, id)
}

// authorizeInputSource marks id as a trusted producer of KEY_EVENT/
// MOUSE_EVENT packets after it presents the configured token, resolving the
// input-source trust question the design notes leave open.
func (t *clientTable) authorizeInputSource(id wm.ClientID, token string) bool {
	if t.inputToken == "" || token != t.inputToken {
		return false
	}
	t.mu.Lock()
	t.trusted[id] = struct{}{}
	t.mu.Unlock()
	return true
}

func (t *clientTable) isTrustedInputSource(id wm.ClientID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.trusted[id]
	return ok
}

// eventSink implements wm.EventSink by encoding outbound messages and
// writing them through the channel, and drives the subscriber broadcast
// fan-out for window lifecycle and focus events.
type eventSink struct {
	channel *transport.Channel
	clients *clientTable
	reg     *wm.Registry
}

func newEventSink(ch *transport.Channel, clients *clientTable, reg *wm.Registry) *eventSink {
	return &eventSink{channel: ch, clients: clients, reg: reg}
}

func (s *eventSink) send(owner wm.ClientID, buf []byte) {
	src, ok := s.clients.source(owner)
	if !ok {
		return
	}
	if err := s.channel.Send(src, buf); err != nil {
		// Message-send failure to an owner/subscriber is swallowed; the
		// subscriber list is not pruned on error.
		log.Printf("server: send to client %d failed: %v", owner, err)
	}
}

func (s *eventSink) FocusChanged(owner wm.ClientID, wid uint32, focused bool) {
	s.send(owner, protocol.EncodeMessage(protocol.MsgFocusChanged, protocol.EncodeFocusChanged(protocol.FocusChanged{Wid: wid, Focused: focused})))
}

func (s *eventSink) Mouse(owner wm.ClientID, wid uint32, kind wm.MouseEventKind, lx, ly, oldLx, oldLy int) {
	msgType, ok := mouseMsgType(kind)
	if !ok {
		return
	}
	payload := protocol.EncodePointerDelivery(protocol.PointerDelivery{
		Wid: wid, X: int32(lx), Y: int32(ly), OldX: int32(oldLx), OldY: int32(oldLy),
	})
	s.send(owner, protocol.EncodeMessage(msgType, payload))
}

func mouseMsgType(kind wm.MouseEventKind) (protocol.MessageType, bool) {
	switch kind {
	case wm.MouseDown:
		return protocol.MsgMouseDown, true
	case wm.MouseMove:
		return protocol.MsgMouseMove, true
	case wm.MouseEnter:
		return protocol.MsgMouseEnter, true
	case wm.MouseLeave:
		return protocol.MsgMouseLeave, true
	case wm.MouseClick:
		return protocol.MsgMouseClick, true
	case wm.MouseRaise:
		return protocol.MsgMouseRaise, true
	case wm.MouseDrag:
		return protocol.MsgMouseDrag, true
	default:
		return 0, false
	}
}

func (s *eventSink) Key(owner wm.ClientID, wid uint32, keycode uint32, mods wm.Modifier, action wm.KeyAction) bool {
	s.send(owner, protocol.EncodeMessage(protocol.MsgKeyEvent, protocol.EncodeKeyEvent(protocol.KeyEvent{
		Keycode: keycode, Modifiers: uint32(mods), Pressed: action == wm.KeyPress,
	})))
	// The bind owner's STEAL/PASS_THROUGH response travels back as an
	// ordinary KEY_BIND re-registration or is implied by the bind's stored
	// Response; the dispatcher decides steal semantics from the table
	// entry, not from a synchronous reply, so there is nothing to await.
	return false
}

func (s *eventSink) ResizeOffer(owner wm.ClientID, wid uint32, w, h int) {
	s.send(owner, protocol.EncodeMessage(protocol.MsgResizeOffer, protocol.EncodeResizeOffer(protocol.ResizeOffer{
		Wid: wid, Width: int32(w), Height: int32(h),
	})))
}

func (s *eventSink) SubscriberNotify(wid uint32, kind wm.SubscriberEventKind) {
	adv := s.advertiseFor(wid)
	for _, sub := range s.clients.allSubscribers() {
		s.send(sub, protocol.EncodeMessage(protocol.MsgWindowAdvertise, protocol.EncodeWindowAdvertise(adv)))
	}
}

// advertiseFor builds the WindowAdvertise record for wid, OR-ing in the
// synthetic focused bit described in 4.E. A missing window (already
// destroyed) still yields a zeroed record naming its wid, since a lifecycle
// notification must reach subscribers even after removal.
func (s *eventSink) advertiseFor(wid uint32) protocol.WindowAdvertise {
	w, ok := s.reg.Lookup(wid)
	if !ok {
		return protocol.WindowAdvertise{Wid: wid}
	}
	flags := w.ClientFlags
	if f := s.reg.Focused(); f == w {
		flags |= focusedFlagBit
	}
	return protocol.WindowAdvertise{
		Wid: w.Wid, Flags: flags, Offsets: w.ClientOffsets,
		Width: int32(w.Width), Height: int32(w.Height), X: int32(w.X), Y: int32(w.Y),
		Strings: w.ClientStrings,
	}
}

// focusedFlagBit is OR'd into client_flags for subscribers when a window is
// the current focus target.
const focusedFlagBit uint32 = 1 << 31
