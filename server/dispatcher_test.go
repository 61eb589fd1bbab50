// Copyright © 2025 compositord contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"path/filepath"
	"testing"

	"github.com/duskwm/compositord/protocol"
	"github.com/duskwm/compositord/transport"
	"github.com/duskwm/compositord/wm"
)

// testPair binds a server-side channel and a client-side channel over a
// real Unix datagram socket, and wires a Server to the server side.
func testPair(t *testing.T) (*Server, *transport.Channel) {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "compositord-test.sock")

	ch, err := transport.Listen(sock)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ch.Close() })

	cli, err := transport.Dial(sock)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { cli.Close() })

	srv := New(Config{ServerIdent: "compositord-test", ScreenW: 1024, ScreenH: 768})
	srv.Attach(ch)

	return srv, cli
}

// recvFromServer drives one real round trip through the server channel so
// the client's Source gets registered in the peer map, then dispatches the
// decoded message and returns the ClientID the dispatcher assigned.
func recvFromServer(t *testing.T, srv *Server) (owner wm.ClientID, hdr protocol.Header, body []byte) {
	t.Helper()
	payload, src, err := srv.Channel.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	id := srv.clients.identify(src)
	h, b, err := protocol.DecodeMessage(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return id, h, b
}

func TestConnectCreateQueryDisconnect(t *testing.T) {
	srv, cli := testPair(t)

	if err := cli.SendClient(protocol.EncodeMessage(protocol.MsgHello, nil)); err != nil {
		t.Fatalf("send hello: %v", err)
	}
	owner, hdr, body := recvFromServer(t, srv)
	if hdr.Type != protocol.MsgHello {
		t.Fatalf("expected HELLO, got %d", hdr.Type)
	}
	srv.dispatch(owner, hdr.Type, body)

	reply, err := cli.RecvClient()
	if err != nil {
		t.Fatalf("recv welcome: %v", err)
	}
	whdr, wbody, err := protocol.DecodeMessage(reply)
	if err != nil || whdr.Type != protocol.MsgWelcome {
		t.Fatalf("expected WELCOME, got type=%d err=%v", whdr.Type, err)
	}
	welcome, err := protocol.DecodeWelcome(wbody)
	if err != nil || welcome.ScreenW != 1024 || welcome.ScreenH != 768 {
		t.Fatalf("unexpected welcome: %+v err=%v", welcome, err)
	}

	if err := cli.SendClient(protocol.EncodeMessage(protocol.MsgWindowNew, protocol.EncodeWindowNew(protocol.WindowNew{Width: 100, Height: 50}))); err != nil {
		t.Fatalf("send window_new: %v", err)
	}
	_, hdr, body = recvFromServer(t, srv)
	srv.dispatch(owner, hdr.Type, body)

	reply, err = cli.RecvClient()
	if err != nil {
		t.Fatalf("recv window_init: %v", err)
	}
	ihdr, ibody, err := protocol.DecodeMessage(reply)
	if err != nil || ihdr.Type != protocol.MsgWindowInit {
		t.Fatalf("expected WINDOW_INIT, got type=%d err=%v", ihdr.Type, err)
	}
	init, err := protocol.DecodeWindowInit(ibody)
	if err != nil {
		t.Fatalf("decode window_init: %v", err)
	}
	if init.Width != 100 || init.Height != 50 {
		t.Fatalf("unexpected window_init dims: %+v", init)
	}
	if _, ok := srv.Registry.Lookup(init.Wid); !ok {
		t.Fatalf("expected the new window to be registered")
	}

	if err := cli.SendClient(protocol.EncodeMessage(protocol.MsgQueryWindows, nil)); err != nil {
		t.Fatalf("send query_windows: %v", err)
	}
	_, hdr, body = recvFromServer(t, srv)
	srv.dispatch(owner, hdr.Type, body)

	var wids []uint32
	for {
		reply, err = cli.RecvClient()
		if err != nil {
			t.Fatalf("recv advertise: %v", err)
		}
		ahdr, abody, err := protocol.DecodeMessage(reply)
		if err != nil || ahdr.Type != protocol.MsgWindowAdvertise {
			t.Fatalf("expected WINDOW_ADVERTISE, got type=%d err=%v", ahdr.Type, err)
		}
		adv, err := protocol.DecodeWindowAdvertise(abody)
		if err != nil {
			t.Fatalf("decode advertise: %v", err)
		}
		if adv.Wid == 0 {
			break
		}
		wids = append(wids, adv.Wid)
	}
	if len(wids) != 1 || wids[0] != init.Wid {
		t.Fatalf("expected the query to stream back exactly the one live window, got %v", wids)
	}

	// The size==0 datagram disconnect convention is handled by dispatchLoop
	// itself, not dispatch; call the handler directly the way the loop would.
	// Disconnect only starts the fade-out; the compositor destroys the window
	// once the animation completes.
	srv.handleDisconnect(owner)
	w, ok := srv.Registry.Lookup(init.Wid)
	if !ok || w.AnimMode != wm.AnimFadeOut {
		t.Fatalf("expected the disconnected client's window to be fading out, got ok=%v", ok)
	}
}

func TestResizeHandshakeSwapsBufferAndReleasesOld(t *testing.T) {
	srv, cli := testPair(t)

	if err := cli.SendClient(protocol.EncodeMessage(protocol.MsgHello, nil)); err != nil {
		t.Fatalf("send hello: %v", err)
	}
	owner, hdr, body := recvFromServer(t, srv)
	srv.dispatch(owner, hdr.Type, body)
	if _, err := cli.RecvClient(); err != nil {
		t.Fatalf("recv welcome: %v", err)
	}

	if err := cli.SendClient(protocol.EncodeMessage(protocol.MsgWindowNew, protocol.EncodeWindowNew(protocol.WindowNew{Width: 10, Height: 10}))); err != nil {
		t.Fatalf("send window_new: %v", err)
	}
	_, hdr, body = recvFromServer(t, srv)
	srv.dispatch(owner, hdr.Type, body)
	reply, err := cli.RecvClient()
	if err != nil {
		t.Fatalf("recv window_init: %v", err)
	}
	_, ibody, _ := protocol.DecodeMessage(reply)
	init, _ := protocol.DecodeWindowInit(ibody)
	oldBufID := init.BufID

	if err := cli.SendClient(protocol.EncodeMessage(protocol.MsgResizeAccept, protocol.EncodeResizeDims(protocol.ResizeDims{Wid: init.Wid, Width: 20, Height: 20}))); err != nil {
		t.Fatalf("send resize_accept: %v", err)
	}
	_, hdr, body = recvFromServer(t, srv)
	srv.dispatch(owner, hdr.Type, body)

	reply, err = cli.RecvClient()
	if err != nil {
		t.Fatalf("recv resize_bufid: %v", err)
	}
	_, bbody, _ := protocol.DecodeMessage(reply)
	bufid, err := protocol.DecodeResizeBufid(bbody)
	if err != nil {
		t.Fatalf("decode resize_bufid: %v", err)
	}
	if bufid.BufID == oldBufID {
		t.Fatalf("expected a freshly allocated buffer id distinct from the original")
	}

	w, ok := srv.Registry.Lookup(init.Wid)
	if !ok {
		t.Fatalf("expected the window to still exist mid-resize")
	}
	if w.PendingBuffer == nil || w.PendingBufID != bufid.BufID {
		t.Fatalf("expected the pending buffer to be staged, got %+v", w)
	}
	oldBuffer := w.Buffer

	if err := cli.SendClient(protocol.EncodeMessage(protocol.MsgResizeDone, protocol.EncodeResizeDims(protocol.ResizeDims{Wid: init.Wid, Width: 20, Height: 20}))); err != nil {
		t.Fatalf("send resize_done: %v", err)
	}
	_, hdr, body = recvFromServer(t, srv)
	srv.dispatch(owner, hdr.Type, body)

	if w.Width != 20 || w.Height != 20 {
		t.Fatalf("expected the window's committed dimensions to update, got %dx%d", w.Width, w.Height)
	}
	if w.BufID != bufid.BufID || w.PendingBuffer != nil {
		t.Fatalf("expected the pending buffer to be committed and cleared, got %+v", w)
	}
	if oldBuffer != nil && w.Buffer == oldBuffer {
		t.Fatalf("expected the old buffer to be replaced, not reused")
	}
}
