// Copyright © 2025 compositord contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"path/filepath"
	"testing"
	"time"
)

func TestListenDialSendRecvRoundTrip(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "compositor.sock")

	server, err := Listen(sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer server.Close()

	client, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	if err := client.SendClient([]byte("hello")); err != nil {
		t.Fatalf("send client: %v", err)
	}

	payload, source, err := server.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if string(payload) != "hello" {
		t.Fatalf("expected %q, got %q", "hello", payload)
	}
	if source == "" {
		t.Fatalf("expected a non-empty source")
	}

	if err := server.Send(source, []byte("welcome")); err != nil {
		t.Fatalf("send: %v", err)
	}

	client.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, err := client.RecvClient()
	if err != nil {
		t.Fatalf("recv client: %v", err)
	}
	if string(reply) != "welcome" {
		t.Fatalf("expected %q, got %q", "welcome", reply)
	}
}

func TestSendToUnknownSourceFails(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "compositor.sock")
	server, err := Listen(sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer server.Close()

	if err := server.Send(Source("nobody"), []byte("x")); err == nil {
		t.Fatalf("expected an error sending to an unknown source")
	}
}
