// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"  error  ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tc := range cases {
		if got := ParseLevel(tc.input); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestSetup_WritesDailyJSONFile(t *testing.T) {
	dir := t.TempDir()

	logger, err := Setup(Config{
		Level:   slog.LevelInfo,
		Service: "router",
		LogDir:  dir,
		Quiet:   true,
	})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	slog.Info("request completed", "conversation_id", "conv-1")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	wantName := "router_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, wantName))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("log file is not JSON: %v", err)
	}
	if record["msg"] != "request completed" {
		t.Errorf("unexpected msg: %v", record["msg"])
	}
	if record["service"] != "router" {
		t.Errorf("service attribute missing, got: %v", record["service"])
	}
	if record["conversation_id"] != "conv-1" {
		t.Errorf("attribute missing, got: %v", record["conversation_id"])
	}
}

func TestSetup_LevelFiltersRecords(t *testing.T) {
	dir := t.TempDir()

	logger, err := Setup(Config{
		Level:   slog.LevelWarn,
		Service: "router",
		LogDir:  dir,
		Quiet:   true,
	})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	slog.Debug("filtered out")
	slog.Info("also filtered")
	slog.Warn("kept")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	name := "router_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	content := string(data)
	if strings.Contains(content, "filtered") {
		t.Errorf("filtered records reached the file: %s", content)
	}
	if !strings.Contains(content, "kept") {
		t.Errorf("warn record missing from file: %s", content)
	}
}

func TestSetup_CloseWithoutFileIsNil(t *testing.T) {
	logger, err := Setup(Config{Quiet: true})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close on file-less logger returned %v", err)
	}
}

func TestMultiHandler_FansOutToAllDestinations(t *testing.T) {
	var first, second bytes.Buffer
	handler := &multiHandler{handlers: []slog.Handler{
		slog.NewJSONHandler(&first, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&second, &slog.HandlerOptions{Level: slog.LevelError}),
	}}
	logger := slog.New(handler)

	logger.Info("info record")
	logger.Error("error record")

	if !strings.Contains(first.String(), "info record") || !strings.Contains(first.String(), "error record") {
		t.Errorf("first destination missing records: %s", first.String())
	}
	if strings.Contains(second.String(), "info record") {
		t.Errorf("second destination received a filtered record: %s", second.String())
	}
	if !strings.Contains(second.String(), "error record") {
		t.Errorf("second destination missing the error record: %s", second.String())
	}
}

func TestMultiHandler_EnabledReflectsAnyDestination(t *testing.T) {
	handler := &multiHandler{handlers: []slog.Handler{
		slog.NewJSONHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}),
		slog.NewJSONHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}}

	if !handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected Enabled(debug) to be true with a debug destination present")
	}
}
