// Copyright © 2025 compositord contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/compositord/main.go
// Summary: CLI entry point: parses flags, loads configuration, wires a
//           server.Server, and runs it until SIGINT/SIGTERM/SIGHUP.
// Usage: compositord [-n] [-g WxH] [-config path] [-debug addr] [-- cmd args...]

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/duskwm/compositord/auditlog"
	"github.com/duskwm/compositord/config"
	"github.com/duskwm/compositord/debugsrv"
	"github.com/duskwm/compositord/server"
	"github.com/duskwm/compositord/transport"
)

func main() {
	os.Exit(run())
}

func run() int {
	var nested bool
	flag.BoolVar(&nested, "n", false, "run nested inside another window manager")
	flag.BoolVar(&nested, "nest", false, "alias for -n")

	var geometry string
	flag.StringVar(&geometry, "g", "", "screen geometry WxH, overrides config")
	flag.StringVar(&geometry, "geometry", "", "alias for -g")

	configPath := flag.String("config", "", "path to a config.yaml (default: ~/.config/compositord/config.yaml)")
	debugAddr := flag.String("debug", "", "address for the read-only debug HTTP surface, e.g. 127.0.0.1:9090")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] [-- command args...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compositord: %v\n", err)
		return 1
	}
	cfg.Nested = cfg.Nested || nested
	if geometry != "" {
		w, h, err := parseGeometry(geometry)
		if err != nil {
			fmt.Fprintf(os.Stderr, "compositord: %v\n", err)
			return 1
		}
		cfg.ScreenW, cfg.ScreenH = w, h
	}
	if *debugAddr != "" {
		cfg.DebugAddr = *debugAddr
	}

	// server_ident follows the nested/fullscreen convention: a nested
	// compositor gets a pid-qualified identity so its socket and shared
	// memory keys never collide with a fullscreen instance or a sibling
	// nested one.
	if cfg.Nested {
		cfg.ServerIdent = fmt.Sprintf("compositor-nest-%d", os.Getpid())
	}
	os.Setenv("DISPLAY", cfg.ServerIdent)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "compositord: invalid configuration: %v\n", err)
		return 1
	}

	var audit *auditlog.Log
	if cfg.AuditPath != "" {
		audit, err = auditlog.Open(cfg.AuditPath)
		if err != nil {
			log.Printf("compositord: audit log disabled: %v", err)
		} else {
			defer audit.Close()
		}
	}

	srv := server.New(server.Config{
		ServerIdent: cfg.ServerIdent,
		SocketPath:  cfg.SocketPath,
		ScreenW:     cfg.ScreenW,
		ScreenH:     cfg.ScreenH,
		Nested:      cfg.Nested,
		InputToken:  cfg.InputToken,
		Audit:       audit,
	})

	ch, err := transport.Listen(cfg.SocketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compositord: %v\n", err)
		return 1
	}
	defer ch.Close()
	srv.Attach(ch)

	ctx, cancel := context.WithCancel(context.Background())

	var firstClient *exec.Cmd
	if cmdArgs := flag.Args(); len(cmdArgs) > 0 {
		firstClient = exec.CommandContext(ctx, cmdArgs[0], cmdArgs[1:]...)
		firstClient.Env = append(os.Environ(), "DISPLAY="+cfg.ServerIdent)
		firstClient.Stdout, firstClient.Stderr = os.Stdout, os.Stderr
		if err := firstClient.Start(); err != nil {
			log.Printf("compositord: failed to start %q: %v", cmdArgs[0], err)
			firstClient = nil
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	runErr := make(chan error, 1)
	go func() {
		if cfg.DebugAddr != "" {
			dbg := debugsrv.New(cfg.DebugAddr, srv.Registry, audit, func() func() {
				srv.RedrawLock.Lock()
				return srv.RedrawLock.Unlock
			})
			runErr <- srv.Run(ctx, dbg)
			return
		}
		runErr <- srv.Run(ctx)
	}()

	log.Printf("compositord: listening on %s (%dx%d, nested=%v)", cfg.SocketPath, cfg.ScreenW, cfg.ScreenH, cfg.Nested)

	exitCode := 0
	select {
	case sig := <-sigCh:
		if sig == syscall.SIGHUP {
			log.Printf("compositord: SIGHUP has no reload action, shutting down")
		}
		cancel()
		<-runErr
	case err := <-runErr:
		if err != nil && err != context.Canceled {
			log.Printf("compositord: server exited: %v", err)
			exitCode = 1
		}
		cancel()
	}

	if firstClient != nil && firstClient.Process != nil {
		_ = firstClient.Process.Kill()
	}

	return exitCode
}

func loadConfig(explicitPath string) (config.Config, error) {
	if explicitPath != "" {
		return config.Load(explicitPath)
	}
	path, err := config.DefaultPath()
	if err != nil {
		return config.Default(), nil
	}
	return config.Load(path)
}

func parseGeometry(spec string) (w, h int, err error) {
	parts := strings.SplitN(spec, "x", 2)
	if len(parts) != 2 {
		parts = strings.SplitN(spec, "X", 2)
	}
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid geometry %q, expected WxH", spec)
	}
	w, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid geometry %q: %w", spec, err)
	}
	h, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid geometry %q: %w", spec, err)
	}
	return w, h, nil
}
