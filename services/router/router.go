// Copyright (C) 2025 Meridian Pay (eng@meridianpay.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package router provides the chat routing service for Meridian Pay.
//
// The service receives customer chat messages, screens them through a
// security gate, classifies them onto a specialized responder (math or
// knowledge), optionally rewrites the raw answer into conversational prose,
// and persists each completed exchange in a TTL-bounded conversation store.
//
// # Usage
//
//	cfg := router.Config{Port: 8080, LLMBackend: "openai"}
//	svc, err := router.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package router

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/meridianpay/agent-router/services/llm"
	"github.com/meridianpay/agent-router/services/router/classifier"
	"github.com/meridianpay/agent-router/services/router/conversation"
	"github.com/meridianpay/agent-router/services/router/observability"
	"github.com/meridianpay/agent-router/services/router/orchestration"
	"github.com/meridianpay/agent-router/services/router/responders"
	"github.com/meridianpay/agent-router/services/router/retrieval"
	"github.com/meridianpay/agent-router/services/router/routes"
	"github.com/meridianpay/agent-router/services/router/ttl"
	"github.com/meridianpay/agent-router/services/securitygate"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the router service lifecycle contract.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and should
// only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying gin engine for integration testing.
	// Callers must not modify the registered routes.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds router service configuration options. All fields are
// optional; zero values get defaults applied by New().
type Config struct {
	// Port is the HTTP server port. Default: 8080
	Port int

	// LLMBackend specifies the completion provider.
	// Valid values: "openai", "ollama". Default: "openai"
	LLMBackend string

	// WeaviateURL is the vector database URL for the knowledge responder.
	// If empty, retrieval is disabled and knowledge answers are unguided.
	// Example: "http://localhost:8080"
	WeaviateURL string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "otel-collector:4317"
	OTelEndpoint string

	// StorePath is the Badger directory for conversation history.
	// The special value "memory" keeps history in process memory only.
	// Default: "./data/conversations"
	StorePath string

	// ConversationTTL is the retention window for inactive conversations.
	// Default: 24 hours
	ConversationTTL time.Duration

	// SweepInterval is how often expired conversations are physically
	// removed. Default: 1 hour
	SweepInterval time.Duration

	// GinMode sets the gin framework mode ("debug", "release", "test").
	// Default: uses the GIN_MODE env var or "debug"
	GinMode string
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// All fields are read-only after New() returns.
type service struct {
	config         Config
	router         *gin.Engine
	llmClient      llm.LLMClient
	weaviateClient *weaviate.Client
	gate           *securitygate.Gate
	store          conversation.Store
	pipeline       *orchestration.Pipeline
	sweepScheduler *ttl.Scheduler
	tracerCleanup  func(context.Context)
}

// New creates a router Service with the given configuration.
//
// # Description
//
// Initializes all components in dependency order: tracing, metrics, the
// Weaviate client (optional), the conversation store with its sweep
// scheduler, the LLM client, the security gate, and finally the HTTP
// router. A missing vector database is not fatal; a missing LLM backend is,
// since every routing decision depends on it.
func New(cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	metrics := observability.InitMetrics()
	slog.Info("Initialized Prometheus metrics")

	if err := s.initWeaviate(); err != nil {
		slog.Warn("Weaviate initialization failed, knowledge answers will be unguided",
			"error", err)
		// Not fatal - continue without retrieval
	}

	if err := s.initStore(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize conversation store: %w", err)
	}

	if err := s.initLLMClient(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	s.gate, err = securitygate.NewGate()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize security gate: %w", err)
	}

	var retriever retrieval.Retriever = retrieval.NoopRetriever{}
	if s.weaviateClient != nil {
		retriever = retrieval.NewWeaviateRetriever(s.weaviateClient)
	}

	s.pipeline = orchestration.NewPipeline(
		s.gate,
		classifier.NewClassifier(s.llmClient, classifier.DefaultClassifyTimeout),
		responders.NewMathResponder(s.llmClient, responders.DefaultResponderTimeout),
		responders.NewKnowledgeResponder(s.llmClient, retriever, responders.DefaultTopK, responders.DefaultResponderTimeout),
		responders.NewConverter(s.llmClient, responders.DefaultConvertTimeout),
		s.store,
		metrics,
	)

	s.initRouter()
	return s, nil
}

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting router server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "openai"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "otel-collector:4317"
	}
	if cfg.StorePath == "" {
		cfg.StorePath = "./data/conversations"
	}
	if cfg.ConversationTTL == 0 {
		cfg.ConversationTTL = conversation.DefaultTTL
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = ttl.DefaultSweepInterval
	}
	return cfg
}

// initTracer sets up the OTLP trace exporter for the configured collector.
// Uses an insecure gRPC connection, appropriate for internal networks.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("agent-router")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initWeaviate creates the Weaviate client if WeaviateURL is configured and
// ensures the article schema exists. An empty URL is not an error.
func (s *service) initWeaviate() error {
	weaviateURL := strings.Trim(s.config.WeaviateURL, "\"' ")

	if weaviateURL == "" || !strings.Contains(weaviateURL, "http") {
		slog.Info("Weaviate URL not configured, retrieval disabled")
		return nil
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("invalid Weaviate URL: %s", weaviateURL)
	}

	clientConf := weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	}

	s.weaviateClient, err = weaviate.NewClient(clientConf)
	if err != nil {
		return fmt.Errorf("failed to create Weaviate client: %w", err)
	}

	if err := retrieval.EnsureSchema(s.weaviateClient); err != nil {
		slog.Warn("Failed to ensure the retrieval schema", "error", err)
	}
	slog.Info("Weaviate client initialized", "url", weaviateURL)

	return nil
}

// initStore opens the conversation store and starts the sweep scheduler.
func (s *service) initStore() error {
	if s.config.StorePath == "memory" {
		s.store = conversation.NewMemoryStore(s.config.ConversationTTL)
		slog.Info("Using in-memory conversation store; history will not survive restarts")
	} else {
		store, err := conversation.NewBadgerStore(s.config.StorePath, s.config.ConversationTTL)
		if err != nil {
			return err
		}
		s.store = store
	}

	sweeper, ok := s.store.(ttl.Sweeper)
	if !ok {
		return nil
	}
	s.sweepScheduler = ttl.NewScheduler(sweeper, s.config.SweepInterval)
	if err := s.sweepScheduler.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start the sweep scheduler: %w", err)
	}
	return nil
}

// initLLMClient creates the completion backend.
func (s *service) initLLMClient() error {
	var err error

	switch s.config.LLMBackend {
	case "openai":
		s.llmClient, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI LLM backend")
	case "ollama":
		s.llmClient, err = llm.NewOllamaClient()
		slog.Info("Using Ollama LLM backend")
	default:
		slog.Warn("Unknown LLM backend, defaulting to openai", "backend", s.config.LLMBackend)
		s.llmClient, err = llm.NewOpenAIClient()
	}

	return err
}

// initRouter sets up the gin engine, middleware, and routes.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("agent-router"))

	routes.SetupRoutes(s.router, s.pipeline)
}

// cleanup releases all resources held by the service. Called when Run()
// exits or on initialization failure.
func (s *service) cleanup() {
	if s.sweepScheduler != nil {
		if err := s.sweepScheduler.Stop(); err != nil {
			slog.Warn("Sweep scheduler stop error", "error", err)
		}
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("Conversation store close error", "error", err)
		}
	}

	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
