// Package main is the entry point for the tiered staking service. It exposes
// the staking engine over HTTP.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/yourorg/tiered-staking/internal/circuitbreaker"
	"github.com/yourorg/tiered-staking/internal/config"
	"github.com/yourorg/tiered-staking/internal/events"
	"github.com/yourorg/tiered-staking/internal/host"
	"github.com/yourorg/tiered-staking/internal/ledger"
	"github.com/yourorg/tiered-staking/internal/otel"
	"github.com/yourorg/tiered-staking/internal/security"
	"github.com/yourorg/tiered-staking/internal/staking"
	"github.com/yourorg/tiered-staking/internal/store"
)

// startTime records when the service was initialized for uptime reporting
var startTime = time.Now()

// Server represents the staking service instance
type Server struct {
	config config.Config

	host     *host.Host
	store    *store.Store
	registry *prometheus.Registry

	// Set when the in-memory ledger is in use
	devLedger *ledger.Memory

	// Set when a remote ledger is configured
	breaker *circuitbreaker.CircuitBreaker

	exporter  *events.WebhookExporter
	verifier  *security.Verifier
	rateLimit *rate.Limiter

	server *http.Server
}

// main is the entry point for the application
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg.LogFile)

	shutdownTracer := otel.InitTracer(cfg)
	defer shutdownTracer()

	server, err := NewServer(context.Background(), cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize server: %v", err)
	}
	server.Start()
}

// setupLogging configures the logging for the application
func setupLogging(logFile string) {
	logFormat := strings.ToLower(os.Getenv("LOG_FORMAT"))
	logLevel := strings.ToLower(os.Getenv("LOG_LEVEL"))

	// Set log formatter based on environment
	switch logFormat {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	// Set log level based on environment
	switch logLevel {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	if logFile != "" {
		logrus.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}))
	}

	logrus.Info("Logging configured")
}

// NewServer wires the store, ledger, event sinks and engine together
func NewServer(ctx context.Context, cfg config.Config) (*Server, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	st, err := store.Open(cfg.StoreBackend, cfg.StorePath)
	if err != nil {
		return nil, err
	}

	verifier, err := security.NewVerifier(security.VerificationOptions{
		Required: cfg.RequireSignatures,
		MaxTTL:   cfg.SignatureMaxTTL,
	})
	if err != nil {
		st.Close()
		return nil, err
	}
	if !cfg.RequireSignatures {
		logrus.Warn("REQUIRE_SIGNATURES is off, X-Actor is trusted without proof")
	}

	s := &Server{
		config:   cfg,
		store:    st,
		registry: registry,
		verifier: verifier,
	}

	var l ledger.Ledger
	if cfg.LedgerURL != "" {
		breakerState := prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "staking_ledger_breaker_state",
			Help: "Ledger circuit breaker state (0=closed, 1=open, 2=half-open)",
		})
		breakerTrips := prometheus.NewCounter(prometheus.CounterOpts{
			Name: "staking_ledger_breaker_trips_total",
			Help: "Number of times the ledger circuit breaker opened",
		})
		registry.MustRegister(breakerState, breakerTrips)

		s.breaker = circuitbreaker.New(circuitbreaker.Thresholds{MaxFailures: cfg.BreakerFailures}).
			WithResetDelay(cfg.BreakerCooldown).
			WithSuccessThreshold(cfg.BreakerSuccesses).
			WithStateCallback(func(state circuitbreaker.State) { breakerState.Set(float64(state)) }).
			WithTripCallback(func(reason string) {
				breakerTrips.Inc()
				logrus.WithField("reason", reason).Error("Ledger circuit opened, staking operations will fail fast")
			})

		client, err := ledger.NewHTTPClient(ledger.ClientConfig{
			BaseURL: cfg.LedgerURL,
			APIKey:  cfg.LedgerAPIKey,
			Timeout: cfg.LedgerTimeout,
		}, s.breaker)
		if err != nil {
			st.Close()
			return nil, err
		}
		l = client
		logrus.WithField("url", cfg.LedgerURL).Info("Remote ledger configured")
	} else {
		s.devLedger = ledger.NewMemory()
		l = s.devLedger
		logrus.Warn("No LEDGER_URL configured, using the in-memory ledger")
	}

	sinks := events.Multi{events.NewLogSink(), events.NewMetricsSink(registry)}
	if cfg.WebhookURL != "" {
		exporter, err := events.NewWebhookExporter(events.WebhookConfig{
			URL:       cfg.WebhookURL,
			APIKey:    cfg.WebhookAPIKey,
			BatchSize: cfg.WebhookBatchSize,
			Interval:  cfg.WebhookInterval,
		})
		if err != nil {
			logrus.Warnf("Failed to initialize event exporter: %v", err)
		} else {
			s.exporter = exporter
			sinks = append(sinks, exporter)
		}
	}

	engine := staking.New(st, l, staking.WithSink(sinks))
	s.host = host.New(engine, host.NewMetrics(registry))

	if err := s.host.Bootstrap(ctx, cfg.Pools); err != nil {
		s.close(ctx)
		return nil, fmt.Errorf("bootstrap pools: %w", err)
	}

	if cfg.RateLimitRPS > 0 {
		s.rateLimit = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
		logrus.Infof("Rate limiting initialized: %v req/s, burst: %d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	logrus.WithFields(logrus.Fields{
		"port":               cfg.Port,
		"store":              cfg.StoreBackend,
		"remote_ledger":      cfg.LedgerURL != "",
		"require_signatures": cfg.RequireSignatures,
		"webhook":            s.exporter != nil,
		"pools":              len(cfg.Pools),
	}).Info("Server initialized")

	return s, nil
}

// Start begins the HTTP server and sets up graceful shutdown
func (s *Server) Start() {
	s.server = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start the server in a goroutine
	go func() {
		logrus.Infof("Server starting on port %s", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Error starting server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server shutdown failed: %v", err)
	}
	s.close(ctx)

	logrus.Info("Server stopped")
}

// close flushes pending events and releases the store
func (s *Server) close(ctx context.Context) {
	if s.exporter != nil {
		if err := s.exporter.Stop(ctx); err != nil {
			logrus.Warnf("Failed to flush events: %v", err)
		}
	}
	if err := s.store.Close(); err != nil {
		logrus.Warnf("Failed to close store: %v", err)
	}
}
