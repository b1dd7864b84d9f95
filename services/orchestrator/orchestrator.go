// Copyright (C) 2025 Waypoint Labs (ktresler@waypointlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package orchestrator assembles the Waypoint decision service.
//
// This package contains the main service type that coordinates all
// components: HTTP routing, the LLM client, the decision and session
// engines, optional Weaviate persistence, and observability
// infrastructure.
//
// # Usage
//
//	cfg := orchestrator.Config{Port: 12210, LLMBackend: "openai"}
//	svc, err := orchestrator.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package orchestrator

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

	"github.com/ktresler/Waypoint/services/decision"
	"github.com/ktresler/Waypoint/services/llm"
	"github.com/ktresler/Waypoint/services/orchestrator/conversation"
	"github.com/ktresler/Waypoint/services/orchestrator/datatypes"
	"github.com/ktresler/Waypoint/services/orchestrator/handlers"
	"github.com/ktresler/Waypoint/services/orchestrator/observability"
	"github.com/ktresler/Waypoint/services/orchestrator/routes"
	"github.com/ktresler/Waypoint/services/orchestrator/services"
	"github.com/ktresler/Waypoint/services/session"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the orchestrator service.
//
// # Description
//
// Service abstracts the service lifecycle, enabling testing and
// alternative implementations. Only essential lifecycle methods are
// exposed.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and
// should only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine, primarily for
	// integration testing where direct HTTP calls are needed.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds orchestrator configuration options.
//
// # Description
//
// Config centralizes all configuration for the service. Values can be
// populated from environment variables, config files, or
// programmatically for testing. All fields are optional with defaults
// applied by New().
type Config struct {
	// Port is the HTTP server port. Default: 12210
	Port int

	// LLMBackend specifies the LLM provider.
	// Valid values: "openai", "claude", "anthropic"
	// Default: "openai"
	LLMBackend string

	// WeaviateURL is the Weaviate vector database URL.
	// If empty, persistence and recent-decision context are disabled.
	// Example: "http://localhost:8080"
	WeaviateURL string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "waypoint-otel-collector:4317"
	OTelEndpoint string

	// APIKey enables static bearer-token auth on /v1 when non-empty.
	APIKey string

	// EnableMetrics exposes the Prometheus /metrics endpoint.
	EnableMetrics bool

	// GinMode sets the Gin framework mode.
	// Valid values: "debug", "release", "test"
	// Default: uses GIN_MODE env var or "debug"
	GinMode string

	// SweepInterval is how often the idle-session sweeper runs.
	// Default: 1 hour
	SweepInterval time.Duration

	// SessionMaxIdle is how long a session may go without activity
	// before the sweeper removes it. Default: 24 hours
	SessionMaxIdle time.Duration

	// SweepDisabled turns off the background idle-session sweeper.
	SweepDisabled bool
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Description
//
// service coordinates:
//   - HTTP routing via Gin
//   - LLM client selection
//   - Decision and session engines
//   - Optional Weaviate persistence
//   - OpenTelemetry tracing and Prometheus metrics
//   - Background idle-session sweeping
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New()
// returns.
type service struct {
	config         Config
	router         *gin.Engine
	llmClient      llm.LLMClient
	llmBackend     string
	weaviateClient *weaviate.Client
	metrics        *observability.Metrics
	sessionStore   *session.MemoryStore
	sweeper        *session.Sweeper
	tracerCleanup  func(context.Context)
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a new orchestrator Service with the given configuration.
//
// # Description
//
// New initializes all components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing
//  3. Initializes Prometheus metrics
//  4. Creates a Weaviate client if a URL is provided
//  5. Creates the LLM client based on backend type
//  6. Builds the decision and session engines and the session store
//  7. Starts the idle-session sweeper
//  8. Sets up HTTP routes
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//
// # Outputs
//
//   - Service: Ready-to-run service
//   - error: Non-nil if initialization fails
//
// # Limitations
//
//   - LLM client creation fails if provider credentials are missing
//   - Weaviate connection is optional but schema check runs if connected
//
// # Assumptions
//
//   - Environment variables are set for LLM providers (API keys, URLs)
func New(cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	if s.config.EnableMetrics {
		s.metrics = observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics")
	}

	// Weaviate is optional. Without it the service runs in lightweight
	// mode: no decision persistence, no recent-decision context.
	if err := s.initWeaviate(); err != nil {
		slog.Warn("Weaviate initialization failed, running in lightweight mode",
			"error", err)
	}

	if err := s.initLLMClient(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	if err := s.initRouter(); err != nil {
		s.cleanup()
		return nil, err
	}

	if !s.config.SweepDisabled {
		s.initSweeper()
	}

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
// Cleanup is automatic on return.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting orchestrator server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing. Callers must
// not modify routes after construction.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12210
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "openai"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "waypoint-otel-collector:4317"
	}
	sweepDefaults := session.DefaultSweeperConfig()
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = sweepDefaults.Interval
	}
	if cfg.SessionMaxIdle == 0 {
		cfg.SessionMaxIdle = sweepDefaults.MaxIdle
	}
	return cfg
}

// initTracer initializes OpenTelemetry distributed tracing.
//
// # Description
//
// Sets up an OTLP trace exporter sending spans to the configured
// collector over an insecure gRPC connection, appropriate for internal
// networks. The connection is lazy, so an unreachable collector does
// not block startup.
//
// # Outputs
//
//   - func(context.Context): Cleanup function to call on shutdown
//   - error: Non-nil if tracer setup fails
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
		resource.WithAttributes(semconv.ServiceNameKey.String("waypoint-orchestrator")))
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

// initWeaviate initializes the Weaviate client when a URL is configured.
//
// # Outputs
//
//   - error: Non-nil if the URL is invalid or the client cannot be
//     created. Nil when WeaviateURL is empty.
func (s *service) initWeaviate() error {
	weaviateURL := strings.Trim(s.config.WeaviateURL, "\"' ")

	if weaviateURL == "" || !strings.Contains(weaviateURL, "http") {
		slog.Info("Weaviate URL not configured, running in lightweight mode")
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

	datatypes.EnsureWeaviateSchema(s.weaviateClient)
	slog.Info("Weaviate client initialized", "url", weaviateURL)

	return nil
}

// initLLMClient initializes the LLM provider client.
func (s *service) initLLMClient() error {
	var err error

	switch s.config.LLMBackend {
	case "openai":
		s.llmClient, err = llm.NewOpenAIClient()
		s.llmBackend = "openai"
		slog.Info("Using OpenAI LLM backend")
	case "claude", "anthropic":
		s.llmClient, err = llm.NewAnthropicClient()
		s.llmBackend = "anthropic"
		slog.Info("Using Anthropic (Claude) LLM backend")
	default:
		slog.Warn("Unknown LLM backend, defaulting to openai", "backend", s.config.LLMBackend)
		s.llmClient, err = llm.NewOpenAIClient()
		s.llmBackend = "openai"
	}

	return err
}

// initRouter builds the engines, store, and route tree.
func (s *service) initRouter() error {
	policy, err := session.NewPolicy()
	if err != nil {
		return fmt.Errorf("failed to load phase policy: %w", err)
	}

	s.sessionStore = session.NewMemoryStore()

	var mirror conversation.Mirror = conversation.NopMirror{}
	if s.weaviateClient != nil {
		mirror = conversation.NewWeaviateMirror(s.weaviateClient)
	}

	store := services.NewDecisionStoreService(s.weaviateClient, s.metrics)

	decisionEngine := decision.NewEngine(s.llmClient)
	sessionEngine := session.NewEngine(s.llmClient, policy, nil)
	if s.metrics != nil {
		decisionEngine.WithMetrics(s.metrics, s.llmBackend)
		sessionEngine.WithMetrics(s.metrics, s.llmBackend)
	}

	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("waypoint-orchestrator"))

	routes.SetupRoutes(s.router, routes.Deps{
		Decision: &handlers.DecisionDeps{
			Engine:    decisionEngine,
			Context:   store,
			Persister: store,
			Metrics:   s.metrics,
		},
		Session: &handlers.SessionDeps{
			Store:   s.sessionStore,
			Engine:  sessionEngine,
			Mirror:  mirror,
			Metrics: s.metrics,
		},
		Engine:        decisionEngine,
		APIKey:        s.config.APIKey,
		EnableMetrics: s.config.EnableMetrics,
	})

	return nil
}

// initSweeper starts the background idle-session sweeper.
func (s *service) initSweeper() {
	s.sweeper = session.NewSweeper(s.sessionStore, session.SweeperConfig{
		Interval: s.config.SweepInterval,
		MaxIdle:  s.config.SessionMaxIdle,
	}, func(sess datatypes.Session) {
		if s.metrics != nil {
			s.metrics.SessionRemoved()
		}
	})

	if err := s.sweeper.Start(context.Background()); err != nil {
		slog.Warn("Idle session sweeper failed to start", "error", err)
		return
	}

	slog.Info("Idle session sweeper started",
		"interval", s.config.SweepInterval.String(),
		"max_idle", s.config.SessionMaxIdle.String(),
	)
}

// cleanup releases all resources held by the service. Called when Run()
// exits or on initialization failure.
func (s *service) cleanup() {
	if s.sweeper != nil {
		if err := s.sweeper.Stop(); err != nil {
			slog.Warn("Sweeper stop error", "error", err)
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
