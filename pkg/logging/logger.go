// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging configures structured logging for the router service.
//
// It is a thin layer over the standard library slog package that handles
// the service's two destinations:
//
//   - stdout, for the container runtime to collect (JSON in production,
//     human-readable text during development)
//   - an optional daily log file under a configured directory
//
// Setup installs the configured logger as the process-wide slog default,
// so packages log through plain slog calls and stay unaware of this
// package.
//
// # Usage
//
//	logger, err := logging.Setup(logging.Config{
//	    Level:   logging.ParseLevel(os.Getenv("LOG_LEVEL")),
//	    Service: "router",
//	    JSON:    true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Close()
//
// # Security Considerations
//
// Nothing here redacts sensitive data. Callers must not log raw message
// content beyond bounded previews, and never tokens or credentials.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config controls the logging destinations and verbosity. The zero value
// logs Info and above to stdout as text.
type Config struct {
	// Level is the minimum level to emit. Default: slog.LevelInfo.
	Level slog.Level

	// Service is attached to every record as the "service" attribute.
	Service string

	// JSON switches the stdout format from text to JSON. File output is
	// always JSON.
	JSON bool

	// LogDir, when set, additionally writes a daily JSON log file named
	// {service}_{YYYY-MM-DD}.log in that directory. The directory is
	// created if missing.
	LogDir string

	// Quiet suppresses stdout output. Only useful together with LogDir.
	Quiet bool
}

// Logger owns the resources behind the installed slog default.
type Logger struct {
	slog *slog.Logger
	file *os.File
}

// ParseLevel maps a level name to its slog.Level. Unknown or empty input
// yields Info, so a missing LOG_LEVEL variable is never an error.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup builds the configured logger and installs it as the slog default.
//
// # Description
//
// The stdout handler is created unless Quiet is set; the file handler is
// created when LogDir is set. With both destinations active, records fan
// out to each through an internal multi-handler. A configuration that
// yields no destination at all falls back to stdout text, so the service
// is never silent by accident.
//
// # Outputs
//
//   - *Logger: Holds the file handle; callers must Close() it on shutdown.
//   - error: Non-nil only when the log directory or file cannot be created.
func Setup(cfg Config) (*Logger, error) {
	opts := &slog.HandlerOptions{Level: cfg.Level}
	l := &Logger{}

	var handlers []slog.Handler
	if !cfg.Quiet {
		if cfg.JSON {
			handlers = append(handlers, slog.NewJSONHandler(os.Stdout, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stdout, opts))
		}
	}

	if cfg.LogDir != "" {
		file, err := openDailyLogFile(cfg.LogDir, cfg.Service)
		if err != nil {
			return nil, err
		}
		l.file = file
		handlers = append(handlers, slog.NewJSONHandler(file, opts))
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(os.Stdout, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}

	if cfg.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", cfg.Service)})
	}

	l.slog = slog.New(handler)
	slog.SetDefault(l.slog)
	return l, nil
}

// Slog returns the underlying slog.Logger for direct use.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close syncs and closes the log file, if one is open. Safe to call on a
// logger without file output.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		_ = l.file.Close()
		return fmt.Errorf("sync log file: %w", err)
	}
	return l.file.Close()
}

// openDailyLogFile creates the log directory and opens the day's file in
// append mode.
func openDailyLogFile(dir, service string) (*os.File, error) {
	if service == "" {
		service = "router"
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create log directory %s: %w", dir, err)
	}

	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	path := filepath.Join(dir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return file, nil
}

// =============================================================================
// Multi-Handler (Internal)
// =============================================================================

// multiHandler fans one record out to every destination handler.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
