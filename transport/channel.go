// Copyright © 2025 compositord contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: transport/channel.go
// Summary: The local datagram transport the spec treats as an external
//           collaborator: length-prefixed-by-the-kernel datagrams tagged
//           with a source identifier, over a Unix domain socket in
//           SOCK_DGRAM mode.
// Usage: server.Server's dispatchLoop blocks on Channel.Recv; Channel.Send replies to
//        or notifies a specific source.

package transport

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
)

// maxDatagram bounds a single packet; larger client payloads (window
// advertisement strings) are expected to stay well under this.
const maxDatagram = 64 * 1024

// Source names a peer by the address the kernel reported for its datagram.
// Two packets from the same client always carry the same Source.
type Source string

// Channel is a bound Unix datagram socket. It is safe for concurrent
// Send calls; Recv is intended for a single dispatcher goroutine.
type Channel struct {
	conn *net.UnixConn
	path string

	mu    sync.Mutex
	peers map[Source]*net.UnixAddr
}

// Listen binds a new server-side channel at path, removing any stale
// socket file left behind by a prior run.
func Listen(path string) (*Channel, error) {
	_ = os.Remove(path)
	addr, err := net.ResolveUnixAddr("unixgram", path)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %s: %w", path, err)
	}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", path, err)
	}
	return &Channel{conn: conn, path: path, peers: make(map[Source]*net.UnixAddr)}, nil
}

// Dial connects a client-side channel to a server bound at path. A unixgram
// client must itself be bound to receive replies, so Dial binds a private
// socket under os.TempDir named after the caller's pid; it is removed on
// Close.
func Dial(path string) (*Channel, error) {
	localPath := filepath.Join(os.TempDir(), fmt.Sprintf("compositord-client-%d.sock", os.Getpid()))
	_ = os.Remove(localPath)
	local, err := net.ResolveUnixAddr("unixgram", localPath)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve local: %w", err)
	}
	remote, err := net.ResolveUnixAddr("unixgram", path)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %s: %w", path, err)
	}
	conn, err := net.DialUnix("unixgram", local, remote)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", path, err)
	}
	return &Channel{conn: conn, path: localPath, peers: make(map[Source]*net.UnixAddr)}, nil
}

// Recv blocks for the next datagram, returning its payload and source. A
// zero-length payload signals the peer closed cleanly, matching the
// dispatcher's size==0 disconnect convention.
func (c *Channel) Recv() (payload []byte, source Source, err error) {
	buf := make([]byte, maxDatagram)
	n, addr, err := c.conn.ReadFromUnix(buf)
	if err != nil {
		return nil, "", err
	}
	src := sourceOf(addr)
	if addr != nil {
		c.mu.Lock()
		c.peers[src] = addr
		c.mu.Unlock()
	}
	return buf[:n], src, nil
}

// Send transmits payload to a previously-seen source. Unknown sources
// return an error; the dispatcher logs and drops rather than propagating
// it, per the error handling design.
func (c *Channel) Send(source Source, payload []byte) error {
	c.mu.Lock()
	addr, ok := c.peers[source]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("transport: unknown source %q", source)
	}
	_, err := c.conn.WriteToUnix(payload, addr)
	return err
}

// SendClient writes payload on a client-side (Dial'd) channel, which has
// exactly one peer: the server it connected to.
func (c *Channel) SendClient(payload []byte) error {
	_, err := c.conn.Write(payload)
	return err
}

// RecvClient blocks for the next datagram addressed to a client-side
// channel.
func (c *Channel) RecvClient() ([]byte, error) {
	buf := make([]byte, maxDatagram)
	n, err := c.conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Close releases the socket and removes the socket file this channel bound
// (the listen path server-side, the private local path client-side).
func (c *Channel) Close() error {
	err := c.conn.Close()
	if c.path != "" {
		_ = os.Remove(c.path)
	}
	return err
}

func sourceOf(addr *net.UnixAddr) Source {
	if addr == nil || addr.Name == "" {
		return Source("anonymous")
	}
	return Source(addr.Name)
}
