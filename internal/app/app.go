package app

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"google.golang.org/api/option"

	"noisereports/internal/cache"
	"noisereports/internal/config"
	"noisereports/internal/dataprocessing"
	"noisereports/internal/drive"
	apierrors "noisereports/internal/errors"
	"noisereports/internal/infrastructure"
	customMiddleware "noisereports/internal/middleware"
	"noisereports/internal/packaging"
	"noisereports/internal/services"
	handlers "noisereports/internal/transport/http"
)

const (
	VERSION = "v1.0.0"
	AppName = "Noise Reports"
)

var (
	// BuildTime is set at compile time
	BuildTime = time.Now().Format(time.RFC3339)
	// BuildID is a unique identifier for this build
	BuildID = generateBuildID()
)

func generateBuildID() string {
	h := sha256.New()
	h.Write([]byte(VERSION))
	h.Write([]byte(time.Now().Format("2006-01-02")))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics
	Services      *ServiceContainer

	listener net.Listener
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Drive      *drive.Client
	Bytes      *cache.ByteCache
	Tables     *cache.TableSetCache
	Aggregator *dataprocessing.Aggregator
	Builder    *packaging.Builder
	Reports    *services.ReportService
	Health     *services.HealthService
}

// NewApplication wires every component. A nil cfg is loaded from the
// environment and config file. driveOpts are passed to the Drive client.
func NewApplication(ctx context.Context, cfg *config.Config, driveOpts ...option.ClientOption) (*Application, error) {
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.InfoContext(ctx, "Application starting",
		slog.String("name", AppName),
		slog.String("version", VERSION),
		slog.String("build_id", BuildID))

	otelProviders, err := infrastructure.InitializeOTel(otelConfig(cfg.Observability), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
	}

	if err := app.initializeServices(ctx, driveOpts); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

func otelConfig(cfg config.ObservabilityConfig) *infrastructure.OTelConfig {
	oc := infrastructure.DefaultOTelConfig()
	oc.EnableMetrics = cfg.EnableMetrics
	oc.EnableTracing = cfg.EnableTracing
	if cfg.TraceExporter != "" {
		oc.TraceExporter = cfg.TraceExporter
	}
	if cfg.MetricExporter != "" {
		oc.MetricExporter = cfg.MetricExporter
	}
	if cfg.SampleRatio > 0 {
		oc.SampleRatio = cfg.SampleRatio
	}
	if cfg.Environment != "" {
		oc.Environment = cfg.Environment
	}
	return oc
}

// initializeServices builds the read-through pipeline: Drive client, byte
// cache, table cache, aggregator, archive builder and the services on top.
func (a *Application) initializeServices(ctx context.Context, driveOpts []option.ClientOption) error {
	driveClient, err := drive.NewClient(ctx, drive.Options{
		CredentialsFile:        a.Config.Drive.CredentialsFile,
		RequestTimeout:         a.Config.Drive.RequestTimeout,
		PageSize:               a.Config.Drive.PageSize,
		MaxConcurrentDownloads: a.Config.Drive.MaxConcurrentDownloads,
		ClientOptions:          driveOpts,
	}, a.Logger)
	if err != nil {
		return err
	}

	cacheOpts := []cache.Option{
		cache.WithRemoteTimeout(a.Config.Cache.RemoteTimeout),
		cache.WithLogger(a.Logger),
		cache.WithMetrics(a.Metrics),
	}
	byteCache := cache.NewByteCache(driveClient, cacheOpts...)
	tableCache := cache.NewTableSetCache(driveClient, byteCache, dataprocessing.ParseWorkbook, cacheOpts...)

	aggregator := dataprocessing.NewAggregator(dataprocessing.TableSourceFunc(tableCache.Get), a.Logger, a.Metrics)
	builder := packaging.NewBuilder(byteCache, aggregator, driveClient, a.Logger, a.Metrics)

	reports := services.NewReportService(driveClient, builder, byteCache, tableCache, services.ReportServiceConfig{
		ParentFolderID: a.Config.Drive.ParentFolderID,
		MaxFiles:       a.Config.Archive.MaxFiles,
		DefaultOptions: a.Config.Archive.DefaultOptions,
		ArchiveName:    a.Config.Archive.FileName,
	}, a.Logger)

	checks := map[string]services.ReadinessCheck{}
	if parentID := a.Config.Drive.ParentFolderID; parentID != "" {
		checks["drive"] = func(ctx context.Context) error {
			_, err := driveClient.Name(ctx, parentID)
			return err
		}
	}
	health := services.NewHealthService(VERSION, BuildTime, BuildID, checks, a.Logger)

	a.Services = &ServiceContainer{
		Drive:      driveClient,
		Bytes:      byteCache,
		Tables:     tableCache,
		Aggregator: aggregator,
		Builder:    builder,
		Reports:    reports,
		Health:     health,
	}
	return nil
}

// setupRouter configures the HTTP router with all routes.
// Order: RequestID, RealIP, OTel, Logger, Recoverer, then the rest.
func (a *Application) setupRouter() {
	r := chi.NewRouter()
	errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Level == "debug")
	validation := customMiddleware.NewValidationMiddleware(a.Logger, errorHandler)

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics).Handler)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(errorHandler))
	r.Use(customMiddleware.SecurityHeaders)

	if a.Config.Security.EnableCORS {
		r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
			AllowedOrigins: a.Config.Security.AllowedOrigins,
			ExposedHeaders: []string{"Content-Disposition", handlers.OverviewFailuresHeader, customMiddleware.RequestIDHeader},
		}))
	}

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	r.Method(http.MethodGet, "/metrics", handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP, errorHandler))

	r.Route("/api", func(r chi.Router) {
		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout))
		r.Use(validation.BodyLimit)
		r.Use(customMiddleware.ContentTypeValidator("application/json", "application/x-www-form-urlencoded", "multipart/form-data"))

		healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)
		r.Mount("/health", healthHandler.Routes())
		r.With(render.SetContentType(render.ContentTypeJSON)).Get("/version", healthHandler.Version)

		reportsHandler := handlers.NewReportsHandler(a.Services.Reports, validation, a.Logger, errorHandler)
		r.Mount("/", reportsHandler.Routes())
	})

	a.Router = r
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start binds the listen address and serves in the background. A serve
// failure calls cancel so Run can shut down.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	a.listener = ln

	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", VERSION),
		slog.String("address", ln.Addr().String()),
		slog.String("level", a.Config.Logging.Level),
		slog.Bool("parent_folder_configured", a.Config.Drive.ParentFolderID != ""))

	go func() {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	return nil
}

// Addr returns the bound address once Start has succeeded
func (a *Application) Addr() string {
	if a.listener == nil {
		return a.Server.Addr
	}
	return a.listener.Addr().String()
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete",
		slog.Any("byte_cache", a.Services.Bytes.Stats()),
		slog.Any("table_cache", a.Services.Tables.Stats()))
	return infrastructure.CloseLogFile()
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	<-ctx.Done()
	a.Logger.Info("Received shutdown signal")

	return a.Stop(context.Background())
}
