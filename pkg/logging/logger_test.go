// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestNewWritesDailyLogFile(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "orchestrator",
		Quiet:   true,
	})
	logger.Info("session created", "session_id", "abc-123")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	wantFile := filepath.Join(dir,
		"orchestrator_"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(wantFile)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log file is not JSON: %v", err)
	}
	if entry["msg"] != "session created" {
		t.Errorf("msg = %v, want %q", entry["msg"], "session created")
	}
	if entry["service"] != "orchestrator" {
		t.Errorf("service = %v, want %q", entry["service"], "orchestrator")
	}
	if entry["session_id"] != "abc-123" {
		t.Errorf("session_id = %v, want %q", entry["session_id"], "abc-123")
	}
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{
		Level:   LevelWarn,
		LogDir:  dir,
		Service: "orchestrator",
		Quiet:   true,
	})
	logger.Debug("dropped")
	logger.Info("dropped too")
	logger.Warn("kept")
	logger.Close()

	files, err := filepath.Glob(filepath.Join(dir, "*.log"))
	if err != nil || len(files) != 1 {
		t.Fatalf("expected one log file, got %v (err %v)", files, err)
	}
	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	content := string(data)
	if strings.Contains(content, "dropped") {
		t.Errorf("filtered levels leaked into log: %s", content)
	}
	if !strings.Contains(content, "kept") {
		t.Errorf("warn entry missing from log: %s", content)
	}
}

func TestWithAddsAttributes(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{
		LogDir:  dir,
		Service: "orchestrator",
		Quiet:   true,
	})
	child := logger.With("request_id", "req-9")
	child.Info("handled")
	logger.Close()

	files, _ := filepath.Glob(filepath.Join(dir, "*.log"))
	if len(files) != 1 {
		t.Fatalf("expected one log file, got %v", files)
	}
	data, _ := os.ReadFile(files[0])
	if !strings.Contains(string(data), `"request_id":"req-9"`) {
		t.Errorf("child attribute missing: %s", data)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	logger := New(Config{LogDir: t.TempDir(), Quiet: true})

	if err := logger.Close(); err != nil {
		t.Fatalf("first Close() error: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}
}

func TestDefaultDoesNotPanic(t *testing.T) {
	logger := Default()
	logger.Info("hello")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
}
