// Copyright © 2025 compositord contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: server/dispatcher.go
// Summary: The single-threaded packet loop: decodes client datagrams,
//           mutates the registry/damage queue/input state machine under
//           the coarse locks, and replies or broadcasts as required.
// Usage: Run as a suture service by Server.Run.

package server

import (
	"context"
	"log"

	"github.com/duskwm/compositord/protocol"
	"github.com/duskwm/compositord/shm"
	"github.com/duskwm/compositord/wm"
)

// dispatchLoop blocks on the channel until ctx is cancelled. A zero-length
// datagram signals the sending client disconnected.
func (s *Server) dispatchLoop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		_ = s.Channel.Close()
		close(done)
	}()

	for {
		payload, src, err := s.Channel.Recv()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			log.Printf("server: channel recv error: %v", err)
			return err
		}

		owner := s.clients.identify(src)

		if len(payload) == 0 {
			s.handleDisconnect(owner)
			continue
		}

		hdr, body, err := protocol.DecodeMessage(payload)
		if err != nil {
			log.Printf("server: dropping malformed packet from client %d: %v", owner, err)
			continue
		}

		s.dispatch(owner, hdr.Type, body)

		select {
		case <-done:
			return ctx.Err()
		default:
		}
	}
}

func (s *Server) dispatch(owner wm.ClientID, msgType protocol.MessageType, body []byte) {
	switch msgType {
	case protocol.MsgHello:
		s.reply(owner, protocol.MsgWelcome, protocol.EncodeWelcome(protocol.Welcome{
			ScreenW: int32(s.cfg.ScreenW), ScreenH: int32(s.cfg.ScreenH),
		}))

	case protocol.MsgWindowNew:
		m, err := protocol.DecodeWindowNew(body)
		if err != nil {
			log.Printf("server: bad WINDOW_NEW from %d: %v", owner, err)
			return
		}
		s.handleWindowNew(owner, m)

	case protocol.MsgFlip:
		m, err := protocol.DecodeWindowRef(body)
		if err != nil {
			return
		}
		s.withRegistry(func() {
			if w, ok := s.Registry.Lookup(m.Wid); ok {
				s.Damage.MarkWindow(w)
			}
		})

	case protocol.MsgFlipRegion:
		m, err := protocol.DecodeFlipRegion(body)
		if err != nil {
			return
		}
		s.withRegistry(func() {
			if w, ok := s.Registry.Lookup(m.Wid); ok {
				s.Damage.MarkWindowRelative(w, int(m.X), int(m.Y), int(m.W), int(m.H))
			}
		})

	case protocol.MsgKeyEvent:
		if !s.clients.isTrustedInputSource(owner) {
			log.Printf("server: KEY_EVENT from untrusted client %d dropped", owner)
			return
		}
		m, err := protocol.DecodeKeyEvent(body)
		if err != nil {
			return
		}
		action := wm.KeyRelease
		if m.Pressed {
			action = wm.KeyPress
		}
		s.withRegistry(func() { s.Input.Key(m.Keycode, wm.Modifier(m.Modifiers), action) })

	case protocol.MsgMouseEvent:
		if !s.clients.isTrustedInputSource(owner) {
			log.Printf("server: MOUSE_EVENT from untrusted client %d dropped", owner)
			return
		}
		m, err := protocol.DecodeMouseEvent(body)
		if err != nil {
			return
		}
		s.withRegistry(func() {
			s.Input.Mouse(int(m.X), int(m.Y), wm.MouseButton(m.Pressed), wm.MouseButton(m.Released))
		})

	case protocol.MsgInputSourceRegister:
		m, err := protocol.DecodeInputSourceRegister(body)
		if err != nil {
			return
		}
		s.clients.authorizeInputSource(owner, m.Token)

	case protocol.MsgWindowMove:
		m, err := protocol.DecodeWindowMove(body)
		if err != nil {
			return
		}
		s.withRegistry(func() {
			if w, ok := s.Registry.Lookup(m.Wid); ok {
				s.Damage.MarkWindow(w)
				w.X, w.Y = int(m.X), int(m.Y)
				s.Damage.MarkWindow(w)
			}
		})

	case protocol.MsgWindowClose:
		m, err := protocol.DecodeWindowRef(body)
		if err != nil {
			return
		}
		s.withRegistry(func() {
			if w, ok := s.Registry.Lookup(m.Wid); ok {
				s.Registry.MarkForClose(w, s.Compositor.Tick())
			}
		})

	case protocol.MsgWindowStack:
		m, err := protocol.DecodeWindowStack(body)
		if err != nil {
			return
		}
		s.withRegistry(func() {
			if w, ok := s.Registry.Lookup(m.Wid); ok {
				s.Damage.MarkWindow(w)
				s.Registry.Reorder(w, wm.Band(m.Z))
				s.Damage.MarkWindow(w)
			}
		})

	case protocol.MsgResizeRequest:
		m, err := protocol.DecodeResizeDims(body)
		if err != nil {
			return
		}
		s.reply(owner, protocol.MsgResizeOffer, protocol.EncodeResizeOffer(protocol.ResizeOffer{
			Wid: m.Wid, Width: m.Width, Height: m.Height,
		}))

	case protocol.MsgResizeOffer:
		m, err := protocol.DecodeResizeOffer(body)
		if err != nil {
			return
		}
		s.withRegistry(func() {
			w, ok := s.Registry.Lookup(m.Wid)
			if !ok {
				return
			}
			s.reply(w.Owner, protocol.MsgResizeOffer, protocol.EncodeResizeOffer(protocol.ResizeOffer{
				Wid: m.Wid, Width: m.Width, Height: m.Height, Serial: m.Serial,
			}))
		})

	case protocol.MsgResizeAccept:
		m, err := protocol.DecodeResizeDims(body)
		if err != nil {
			return
		}
		s.handleResizeAccept(owner, m)

	case protocol.MsgResizeDone:
		m, err := protocol.DecodeResizeDims(body)
		if err != nil {
			return
		}
		s.handleResizeDone(m)

	case protocol.MsgQueryWindows:
		s.handleQueryWindows(owner)

	case protocol.MsgSubscribe:
		s.clients.subscribe(owner)

	case protocol.MsgUnsubscribe:
		s.clients.unsubscribe(owner)

	case protocol.MsgWindowAdvertise:
		m, err := protocol.DecodeWindowAdvertise(body)
		if err != nil {
			return
		}
		s.withRegistry(func() {
			if w, ok := s.Registry.Lookup(m.Wid); ok {
				w.ClientFlags = m.Flags
				w.ClientOffsets = m.Offsets
				w.ClientStrings = m.Strings
			}
		})
		s.sink.SubscriberNotify(m.Wid, wm.SubscriberWindowAdvertised)

	case protocol.MsgSessionEnd:
		s.broadcastAll(protocol.MsgSessionEnd, nil)

	case protocol.MsgWindowFocus:
		m, err := protocol.DecodeWindowFocus(body)
		if err != nil {
			return
		}
		s.withRegistry(func() {
			if w, ok := s.Registry.Lookup(m.Wid); ok {
				s.Input.SetFocus(w)
			}
		})

	case protocol.MsgKeyBind:
		m, err := protocol.DecodeKeyBind(body)
		if err != nil {
			return
		}
		s.withRegistry(func() {
			s.Binds.Bind(m.Modifiers, m.Keycode, owner, wm.BindResponse(m.Response))
		})

	case protocol.MsgWindowDragStart:
		m, err := protocol.DecodeWindowRef(body)
		if err != nil {
			return
		}
		s.withRegistry(func() {
			if w, ok := s.Registry.Lookup(m.Wid); ok {
				s.Input.BeginDrag(w)
			}
		})

	case protocol.MsgWindowUpdateShape:
		m, err := protocol.DecodeWindowUpdateShape(body)
		if err != nil {
			return
		}
		s.withRegistry(func() {
			if w, ok := s.Registry.Lookup(m.Wid); ok {
				w.AlphaThreshold = m.Threshold
			}
		})

	default:
		log.Printf("server: unknown message type %d from client %d", msgType, owner)
	}
}

func (s *Server) handleWindowNew(owner wm.ClientID, m protocol.WindowNew) {
	var win *wm.Window
	var err error
	s.withRegistry(func() {
		win, err = s.Registry.Create(owner, int(m.Width), int(m.Height), s.Compositor.Tick(), s.allocWindowBuffer)
	})
	if err != nil {
		log.Printf("server: WINDOW_NEW failed for client %d: %v", owner, err)
		return
	}
	s.reply(owner, protocol.MsgWindowInit, protocol.EncodeWindowInit(protocol.WindowInit{
		Wid: win.Wid, Width: int32(win.Width), Height: int32(win.Height), BufID: win.BufID,
	}))
	s.sink.SubscriberNotify(win.Wid, wm.SubscriberWindowCreated)
	if s.audit != nil {
		if err := s.audit.Record("window_new", win.Wid, uint64(owner)); err != nil {
			log.Printf("server: audit record failed: %v", err)
		}
	}
}

// handleResizeAccept allocates the pending buffer, or re-reports the
// in-flight one if a second accept races the first, per the idempotent
// resize-race policy.
func (s *Server) handleResizeAccept(owner wm.ClientID, m protocol.ResizeDims) {
	s.RedrawLock.Lock()
	defer s.RedrawLock.Unlock()

	w, ok := s.Registry.Lookup(m.Wid)
	if !ok {
		return
	}

	if pr, inFlight := s.pendingResize[m.Wid]; inFlight {
		s.reply(owner, protocol.MsgResizeBufid, protocol.EncodeResizeBufid(protocol.ResizeBufid{
			Wid: m.Wid, Width: int32(pr.w), Height: int32(pr.h), BufID: pr.bufID,
		}))
		return
	}

	bufID := s.nextBufID()
	region, err := shm.Create(s.shmName(m.Wid, bufID), int(m.Width)*int(m.Height)*4)
	if err != nil {
		log.Printf("server: resize alloc failed for window %d: %v", m.Wid, err)
		return
	}

	w.PendingBuffer = region
	w.PendingBufID = bufID
	s.pendingResize[m.Wid] = pendingResize{bufID: bufID, region: region, w: int(m.Width), h: int(m.Height)}

	s.reply(owner, protocol.MsgResizeBufid, protocol.EncodeResizeBufid(protocol.ResizeBufid{
		Wid: m.Wid, Width: m.Width, Height: m.Height, BufID: bufID,
	}))
}

// handleResizeDone commits a resize handshake: swap buffer <- pending
// buffer, release the old region, and mark both old and new bounds.
func (s *Server) handleResizeDone(m protocol.ResizeDims) {
	s.RedrawLock.Lock()
	defer s.RedrawLock.Unlock()

	w, ok := s.Registry.Lookup(m.Wid)
	if !ok || w.PendingBuffer == nil {
		return
	}

	s.UpdateListLock.Lock()
	s.Damage.MarkWindow(w)
	s.UpdateListLock.Unlock()

	old := w.Buffer
	w.Buffer = w.PendingBuffer
	w.BufID = w.PendingBufID
	w.Width, w.Height = int(m.Width), int(m.Height)
	w.PendingBuffer = nil
	w.PendingBufID = 0
	delete(s.pendingResize, m.Wid)

	if old != nil {
		_ = old.Close()
	}

	s.UpdateListLock.Lock()
	s.Damage.MarkWindow(w)
	s.UpdateListLock.Unlock()
}

// handleQueryWindows streams one WINDOW_ADVERTISE per live window in
// composite order, then a wid=0 terminator.
func (s *Server) handleQueryWindows(owner wm.ClientID) {
	var windows []*wm.Window
	s.withRegistry(func() {
		if b := s.Registry.BottomWindow(); b != nil {
			windows = append(windows, b)
		}
		windows = append(windows, s.Registry.MidWindows()...)
		if t := s.Registry.TopWindow(); t != nil {
			windows = append(windows, t)
		}
	})

	for _, w := range windows {
		s.reply(owner, protocol.MsgWindowAdvertise, protocol.EncodeWindowAdvertise(s.sink.advertiseFor(w.Wid)))
	}
	s.reply(owner, protocol.MsgWindowAdvertise, protocol.EncodeWindowAdvertise(protocol.WindowAdvertise{Wid: 0}))
}

// handleDisconnect implements the size==0 convention: every window the
// client owned enters FADE_OUT, and its key bindings and table entries are
// dropped. Buffers are released later, when the fade completes.
func (s *Server) handleDisconnect(owner wm.ClientID) {
	var closed []*wm.Window
	s.withRegistry(func() {
		closed = s.Input.DisconnectClient(owner)
	})
	for _, w := range closed {
		s.Damage.MarkWindow(w)
	}
	s.clients.forget(owner)
	if s.audit != nil {
		if err := s.audit.Record("client_disconnect", 0, uint64(owner)); err != nil {
			log.Printf("server: audit record failed: %v", err)
		}
	}
}

func (s *Server) reply(owner wm.ClientID, msgType protocol.MessageType, payload []byte) {
	s.sink.send(owner, protocol.EncodeMessage(msgType, payload))
}

func (s *Server) broadcastAll(msgType protocol.MessageType, payload []byte) {
	buf := protocol.EncodeMessage(msgType, payload)
	for _, id := range s.clients.allKnown() {
		s.sink.send(id, buf)
	}
}

// withRegistry runs fn with RedrawLock held. Most handlers only touch
// registry/damage state, which is always read under RedrawLock; handlers
// that also need UpdateListLock take it themselves, after RedrawLock, per
// the documented acquisition order.
func (s *Server) withRegistry(fn func()) {
	s.RedrawLock.Lock()
	defer s.RedrawLock.Unlock()
	fn()
}
