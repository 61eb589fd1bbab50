// Copyright © 2025 compositord contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: debugsrv/server.go
// Summary: Read-only HTTP introspection surface: live window list, audit
//           log tail, and a liveness probe. Never mutates compositor state.
// Usage: cmd/compositord/main.go starts this alongside the Unix socket
//        listener when Config.DebugAddr is set.

package debugsrv

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/duskwm/compositord/auditlog"
	"github.com/duskwm/compositord/wm"
)

// Server is a read-only HTTP view over a live registry and audit log.
type Server struct {
	http     *http.Server
	registry *wm.Registry
	audit    *auditlog.Log
	lock     func() (unlock func())
}

// New builds a debug server bound to addr. lock is called before reading
// the registry and must return the matching unlock; it should be
// server.Server.RedrawLock.Lock/Unlock, so a snapshot never races the
// compositor.
func New(addr string, reg *wm.Registry, audit *auditlog.Log, lock func() (unlock func())) *Server {
	s := &Server{registry: reg, audit: audit, lock: lock}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Get("/windows", s.handleWindows)
	r.Get("/audit", s.handleAudit)

	s.http = &http.Server{Addr: addr, Handler: r}
	return s
}

// requestLogger adapts the request-logging convention to this package's
// plain stdlib logger instead of log/slog, matching the rest of the
// process's ambient logging choice.
func requestLogger(next http.Handler) http.Handler {
	return middleware.RequestLogger(&stdLogFormatter{})(next)
}

// Serve blocks serving HTTP until ctx is cancelled, then shuts down
// gracefully. It implements suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.http.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.http.Shutdown(shutCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// String names this service for the suture supervisor's event log.
func (s *Server) String() string { return "debugsrv" }

type healthView struct {
	Status string `json:"status"`
	RunID  string `json:"run_id,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	view := healthView{Status: "ok"}
	if s.audit != nil {
		view.RunID = s.audit.RunID()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(view)
}

type windowView struct {
	Wid      uint32 `json:"wid"`
	Owner    uint64 `json:"owner"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Z        uint8  `json:"z"`
	Rotation int    `json:"rotation"`
}

func (s *Server) handleWindows(w http.ResponseWriter, r *http.Request) {
	unlock := s.lock()
	windows := s.registry.Windows()
	views := make([]windowView, 0, len(windows))
	for _, win := range windows {
		views = append(views, windowView{
			Wid: win.Wid, Owner: uint64(win.Owner),
			X: win.X, Y: win.Y, Width: win.Width, Height: win.Height,
			Z: uint8(win.Z), Rotation: win.Rotation,
		})
	}
	unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(views)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		http.Error(w, "audit log not configured", http.StatusServiceUnavailable)
		return
	}
	events, err := s.audit.Recent(100)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events)
}
