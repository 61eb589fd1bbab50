// Copyright © 2025 compositord contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: server/server.go
// Summary: Wires the registry, damage queue, input state machine, and
//           compositor into one process, supervises the dispatcher and
//           compositor workers (plus any extra services handed to Run), and
//           owns the two coarse locks that serialize them. No mouse or
//           keyboard device worker is started here; input arrives as
//           KEY_EVENT/MOUSE_EVENT packets from a trusted client.
// Usage: cmd/compositord/main.go constructs a Server and calls Run.

package server

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/thejerf/suture/v4"

	"github.com/duskwm/compositord/auditlog"
	"github.com/duskwm/compositord/shm"
	"github.com/duskwm/compositord/transport"
	"github.com/duskwm/compositord/wm"
)

// Config carries the externally supplied parameters a Server needs beyond
// what it builds for itself.
type Config struct {
	ServerIdent string
	SocketPath  string
	ScreenW     int
	ScreenH     int
	Nested      bool
	InputToken  string
	Audit       *auditlog.Log
}

// Server is the single process-wide instance the design notes call for:
// every operation is threaded explicitly through it rather than touching
// package-level state.
type Server struct {
	cfg Config

	Registry   *wm.Registry
	Damage     *wm.DamageQueue
	Binds      *wm.KeyBindTable
	Input      *wm.Input
	Compositor *wm.Compositor
	Surface    *wm.ImageSurface

	Channel *transport.Channel
	clients *clientTable
	sink    *eventSink
	audit   *auditlog.Log

	// RedrawLock protects registry mutations that affect iteration order
	// (reorder, raise, destroy). UpdateListLock protects the damage
	// queue's enqueue/drain. Both are spinlock-weight in the original
	// design; sync.Mutex is the idiomatic Go equivalent. When both are
	// needed, RedrawLock is always acquired first.
	RedrawLock     sync.Mutex
	UpdateListLock sync.Mutex

	nextBufSeq uint32
	bufSeqMu   sync.Mutex

	pendingResize map[uint32]pendingResize
}

type pendingResize struct {
	bufID  uint32
	region *shm.Region
	w, h   int
}

// New builds a Server over a fresh registry, damage queue, and blit
// surface, ready to run once a Channel is attached.
func New(cfg Config) *Server {
	reg := wm.NewRegistry()
	dq := wm.NewDamageQueue()
	binds := wm.NewKeyBindTable()
	surf := wm.NewImageSurface(cfg.ScreenW, cfg.ScreenH)

	s := &Server{
		cfg:           cfg,
		Registry:      reg,
		Damage:        dq,
		Binds:         binds,
		Surface:       surf,
		audit:         cfg.Audit,
		pendingResize: make(map[uint32]pendingResize),
	}

	s.Compositor = wm.NewCompositor(reg, dq, surf)
	s.Compositor.Lock = &s.RedrawLock
	s.Compositor.Nested = func() bool { return cfg.Nested }

	return s
}

// Attach binds the server to a transport channel and finishes wiring the
// input state machine's outbound sink.
func (s *Server) Attach(ch *transport.Channel) {
	s.Channel = ch
	s.clients = newClientTable(s.cfg.InputToken)
	s.sink = newEventSink(ch, s.clients, s.Registry)
	s.Compositor.Sink = s.sink
	s.Input = wm.NewInput(s.Registry, s.Damage, s.Binds, s.sink)
	s.Input.ScreenW, s.Input.ScreenH = s.cfg.ScreenW, s.cfg.ScreenH
	s.Input.TopHeight = func() int {
		if t := s.Registry.TopWindow(); t != nil {
			return t.Height
		}
		return 0
	}
	s.Input.Now = s.Compositor.Tick
}

// shmName derives the per-window shared-memory key from (server_ident,
// window, bufid), per the external interfaces section.
func (s *Server) shmName(wid, bufID uint32) string {
	return fmt.Sprintf("sys.%s.window.%d.%d", s.cfg.ServerIdent, wid, bufID)
}

// allocWindowBuffer returns the Registry.Create callback that allocates a
// fresh shared buffer for a newly assigned wid.
func (s *Server) allocWindowBuffer(wid uint32, size int) (*shm.Region, uint32, error) {
	bufID := s.nextBufID()
	region, err := shm.Create(s.shmName(wid, bufID), size)
	if err != nil {
		return nil, 0, err
	}
	return region, bufID, nil
}

func (s *Server) nextBufID() uint32 {
	s.bufSeqMu.Lock()
	defer s.bufSeqMu.Unlock()
	s.nextBufSeq++
	return s.nextBufSeq
}

// Run starts the dispatcher, compositor ticker, and any extra services
// (input source workers, the debug HTTP surface) under a suture
// supervisor, blocking until ctx is cancelled or a service asks to
// terminate the tree.
func (s *Server) Run(ctx context.Context, extra ...suture.Service) error {
	super := suture.New(s.cfg.ServerIdent, suture.Spec{EventHook: logSupervisorEvent})

	super.Add(serviceFunc{name: "dispatcher", fn: s.dispatchLoop})
	super.Add(serviceFunc{name: "compositor", fn: func(ctx context.Context) error {
		s.Compositor.Run(ctx)
		return ctx.Err()
	}})
	for i, svc := range extra {
		if _, named := svc.(fmt.Stringer); named {
			super.Add(svc)
			continue
		}
		super.Add(namedService{name: fmt.Sprintf("extra-service-%d", i), Service: svc})
	}

	return super.Serve(ctx)
}

func logSupervisorEvent(ev suture.Event) {
	switch e := ev.(type) {
	case suture.EventServicePanic:
		log.Printf("server: service panic: %s", e.PanicMsg)
	case suture.EventServiceTerminate:
		log.Printf("server: service %q terminated: %v", e.ServiceName, e.Err)
	case suture.EventBackoff:
		log.Printf("server: supervisor %q entering backoff", e.SupervisorName)
	case suture.EventResume:
		log.Printf("server: supervisor %q resumed", e.SupervisorName)
	}
}

// serviceFunc adapts a plain context-taking function to suture.Service.
type serviceFunc struct {
	name string
	fn   func(ctx context.Context) error
}

func (f serviceFunc) Serve(ctx context.Context) error { return f.fn(ctx) }
func (f serviceFunc) String() string                  { return f.name }

// namedService gives an externally supplied suture.Service (a mouse or
// keyboard source worker) a stable name for supervisor logs.
type namedService struct {
	name string
	suture.Service
}

func (n namedService) String() string { return n.name }
