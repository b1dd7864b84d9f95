// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command orchestrator starts the Waypoint decision HTTP server.
//
// This is the main entry point for the containerized service. It reads
// configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - ORCHESTRATOR_PORT: HTTP server port (default: 12210)
//   - LLM_BACKEND_TYPE: LLM provider - openai, claude, anthropic (default: openai)
//   - WEAVIATE_SERVICE_URL: Weaviate vector DB URL (optional)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: waypoint-otel-collector:4317)
//   - WAYPOINT_API_KEY: Static bearer token for /v1 routes (optional)
//   - ENABLE_METRICS: Expose Prometheus /metrics (default: true)
//   - SESSION_SWEEP_INTERVAL: Idle-session sweep interval, e.g. "30m" (default: 1h)
//   - SESSION_MAX_IDLE: Idle time before a session is swept, e.g. "12h" (default: 24h)
//   - WAYPOINT_LOG_DIR: Directory for JSON log files (optional)
//
// # Usage
//
//	# Build
//	go build -o orchestrator ./cmd/orchestrator
//
//	# Run
//	./orchestrator
//
//	# Or via container
//	podman-compose up orchestrator
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/ktresler/Waypoint/pkg/logging"
	"github.com/ktresler/Waypoint/services/orchestrator"
)

func main() {
	// Setup structured logging
	logger := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		LogDir:  os.Getenv("WAYPOINT_LOG_DIR"),
		Service: "orchestrator",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	// Build configuration from environment variables
	cfg := orchestrator.Config{
		Port:           getEnvInt("ORCHESTRATOR_PORT", 12210),
		LLMBackend:     getEnvString("LLM_BACKEND_TYPE", "openai"),
		WeaviateURL:    os.Getenv("WEAVIATE_SERVICE_URL"),
		OTelEndpoint:   getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "waypoint-otel-collector:4317"),
		APIKey:         os.Getenv("WAYPOINT_API_KEY"),
		EnableMetrics:  getEnvBool("ENABLE_METRICS", true),
		SweepInterval:  getEnvDuration("SESSION_SWEEP_INTERVAL", 0),
		SessionMaxIdle: getEnvDuration("SESSION_MAX_IDLE", 0),
	}

	slog.Info("Starting orchestrator",
		"port", cfg.Port,
		"llm_backend", cfg.LLMBackend,
		"weaviate_url", cfg.WeaviateURL,
	)

	svc, err := orchestrator.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create orchestrator: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Orchestrator error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a
// default. Zero means the service default applies.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
