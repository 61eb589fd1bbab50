// Copyright © 2025 compositord contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: debugsrv/logger.go
// Summary: chi request logger using the stdlib log package, matching the
//           rest of the process's ambient logging choice.

package debugsrv

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

type stdLogFormatter struct{}

func (f *stdLogFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	reqID := middleware.GetReqID(r.Context())
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	msg := fmt.Sprintf("%s %s://%s%s %s", r.Method, scheme, r.Host, r.RequestURI, r.Proto)
	if reqID != "" {
		msg = fmt.Sprintf("[%s] %s", reqID, msg)
	}
	return &stdLogEntry{msg: msg}
}

type stdLogEntry struct {
	msg string
}

func (e *stdLogEntry) Write(status, bytes int, header http.Header, elapsed time.Duration, extra interface{}) {
	log.Printf("debugsrv: %s -> %d (%d bytes) in %s", e.msg, status, bytes, elapsed)
}

func (e *stdLogEntry) Panic(v interface{}, stack []byte) {
	middleware.PrintPrettyStack(v)
}
