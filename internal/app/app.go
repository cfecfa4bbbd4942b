package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"loanrecovery/internal/config"
	apierrors "loanrecovery/internal/errors"
	"loanrecovery/internal/exporter"
	"loanrecovery/internal/infrastructure"
	customMiddleware "loanrecovery/internal/middleware"
	"loanrecovery/internal/operations"
	"loanrecovery/internal/publisher"
	"loanrecovery/internal/services"
	"loanrecovery/internal/session"
	handlers "loanrecovery/internal/transport/http"
	ws "loanrecovery/internal/websocket"
	"loanrecovery/pkg/contracts"
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	ErrorHandler  *apierrors.ErrorHandler
	Services      *ServiceContainer

	otel     *customMiddleware.OTelMiddleware
	listener net.Listener
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Sessions  *session.Store
	Manager   *operations.Manager
	Recovery  *services.RecoveryService
	Health    *services.HealthService
	Exporter  *exporter.Exporter
	WebSocket *ws.Hub
	Publisher *publisher.KafkaPublisher
}

// NewApplication loads the configuration, initializes the global logger and
// builds the application.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(cfg, logger)
}

// New wires every component from an already loaded configuration
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.String("environment", cfg.Telemetry.Environment))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(otelProviders, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenTelemetry middleware: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		ErrorHandler:  apierrors.NewErrorHandler(logger, false),
		otel:          otelMiddleware,
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	hub := ws.NewHub(a.Config.WebSocket, a.OTelProviders.Meter, a.Logger)
	hub.Start()

	manager := operations.NewManager(hub, operations.ConfigFromPipeline(a.Config.Pipeline), a.Logger)
	tracer, err := operations.NewOperationTracer(a.OTelProviders)
	if err != nil {
		hub.Stop()
		return fmt.Errorf("failed to initialize operation tracer: %w", err)
	}
	manager.SetTracer(tracer)

	var kafkaPublisher *publisher.KafkaPublisher
	if a.Config.Kafka.Enabled {
		kafkaPublisher = publisher.NewKafkaPublisher(a.Config.Kafka, a.otel.Metrics(), a.Logger)
		manager.SetPublisher(kafkaPublisher)
		a.Logger.Info("Publishing risk assessments to Kafka",
			slog.Any("brokers", a.Config.Kafka.Brokers),
			slog.String("topic", a.Config.Kafka.Topic))
	}

	store := session.NewStore()

	a.Services = &ServiceContainer{
		Sessions:  store,
		Manager:   manager,
		Recovery:  services.NewRecoveryService(store, manager, a.Config.Pipeline, a.Logger),
		Health:    services.NewHealthService(contracts.Version, store, manager, hub, a.Logger),
		Exporter:  exporter.NewExporter(a.Config.Export, a.Logger),
		WebSocket: hub,
		Publisher: kafkaPublisher,
	}
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Only middleware that leaves the ResponseWriter alone may run in front
	// of the WebSocket upgrade.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.StripSlashes)

	wsHandler := ws.NewHandler(a.Services.WebSocket, a.Config.Security.AllowedOrigins, a.ErrorHandler, a.Logger)
	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).Handle("/ws", wsHandler)

	r.Group(func(r chi.Router) {
		// RequestID → RealIP → StripSlashes → OTel → Logger → Recoverer → Timeout
		r.Use(a.otel.Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.ErrorHandler))
		r.Use(customMiddleware.SecurityHeaders)

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.getCORSConfig()))
		}

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))

		a.setupAPIRoutes(r)
	})

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)
	reportHandler := handlers.NewReportHandler(a.Services.Recovery, a.Services.Exporter, a.ErrorHandler, a.Logger)
	sessionHandler := handlers.NewSessionHandler(a.Services.Recovery, reportHandler,
		a.Config.Server.MaxUploadBytes, a.ErrorHandler, a.Logger)
	runsHandler := handlers.NewRunsHandler(a.Services.Manager.GetBroadcaster(),
		a.Services.Manager.GetRegistry(), a.ErrorHandler, a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Mount("/health", healthHandler.Routes())
		r.Get("/version", healthHandler.Version)
		r.Mount("/sessions", sessionHandler.Routes())
		r.Mount("/runs", runsHandler.Routes())
	})
}

// getCORSConfig returns the CORS settings. The development environment also
// admits a local frontend dev server.
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	cors := customMiddleware.CORSConfig{
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
			"Content-Disposition",
		},
		MaxAge:         300,
		AllowedOrigins: append([]string(nil), a.Config.Security.AllowedOrigins...),
		Logger:         a.Logger,
	}

	if a.isDevelopmentMode() {
		cors.AllowedOrigins = append(cors.AllowedOrigins,
			"http://localhost:3000",
			"http://127.0.0.1:3000",
		)
	}

	a.Logger.Info("CORS configured",
		slog.Bool("development", a.isDevelopmentMode()),
		slog.Any("allowed_origins", cors.AllowedOrigins))
	return cors
}

// isDevelopmentMode detects if we're running in development mode
func (a *Application) isDevelopmentMode() bool {
	if a.Config.Telemetry.Environment == "development" {
		return true
	}
	return os.Getenv("GO_ENV") == "development"
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Addr(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Addr returns the address the server listens on once started
func (a *Application) Addr() string {
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return a.Server.Addr
}

// Start binds the listener and serves in the background. A serve failure
// calls cancel so Run can shut down.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	a.listener = ln

	go func() {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.String("address", a.Addr()),
		slog.Bool("kafka", a.Services.Publisher != nil))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	a.Services.WebSocket.Stop()
	a.Services.Manager.Close()

	if a.Services.Publisher != nil {
		if err := a.Services.Publisher.Close(); err != nil {
			a.Logger.ErrorContext(ctx, "Error closing Kafka publisher", slog.String("error", err.Error()))
		}
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case sig := <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		a.Logger.WarnContext(ctx, "Server stopped unexpectedly")
	}

	return a.Stop(context.Background())
}
