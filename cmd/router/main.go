// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command router starts the Meridian Pay chat routing HTTP server.
//
// This is the main entry point for the containerized router service. It
// reads configuration from environment variables (optionally seeded from a
// local .env file) and starts the server.
//
// # Environment Variables
//
//   - ROUTER_PORT: HTTP server port (default: 8080)
//   - LLM_BACKEND_TYPE: Completion provider - openai, ollama (default: openai)
//   - WEAVIATE_SERVICE_URL: Weaviate vector DB URL (optional)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: otel-collector:4317)
//   - CONVERSATION_STORE_PATH: Badger directory, or "memory" (default: ./data/conversations)
//   - CONVERSATION_TTL_HOURS: Conversation retention in hours (default: 24)
//   - LOG_LEVEL: Minimum log level - debug, info, warn, error (default: info)
//   - LOG_DIR: Directory for daily JSON log files (default: stdout only)
//
// # Usage
//
//	# Build
//	go build -o router ./cmd/router
//
//	# Run
//	./router
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/meridianpay/agent-router/pkg/logging"
	"github.com/meridianpay/agent-router/services/router"
)

func main() {
	// A .env file is a development convenience; absence is normal. Loaded
	// before logging setup so LOG_LEVEL and LOG_DIR can come from it.
	envLoaded := godotenv.Load() == nil

	logger, err := logging.Setup(logging.Config{
		Level:   logging.ParseLevel(os.Getenv("LOG_LEVEL")),
		Service: "router",
		JSON:    true,
		LogDir:  os.Getenv("LOG_DIR"),
	})
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logger.Close()

	if envLoaded {
		slog.Info("Loaded configuration from .env file")
	}

	cfg := router.Config{
		Port:            getEnvInt("ROUTER_PORT", 8080),
		LLMBackend:      getEnvString("LLM_BACKEND_TYPE", "openai"),
		WeaviateURL:     os.Getenv("WEAVIATE_SERVICE_URL"),
		OTelEndpoint:    getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4317"),
		StorePath:       getEnvString("CONVERSATION_STORE_PATH", "./data/conversations"),
		ConversationTTL: time.Duration(getEnvInt("CONVERSATION_TTL_HOURS", 24)) * time.Hour,
	}

	slog.Info("Starting router",
		"port", cfg.Port,
		"llm_backend", cfg.LLMBackend,
		"weaviate_url", cfg.WeaviateURL,
		"store_path", cfg.StorePath,
	)

	svc, err := router.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create router: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Router error: %v", err)
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
