package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"opineeo/survey-widget/internal"
	"opineeo/survey-widget/internal/bundle"
	"opineeo/survey-widget/internal/config"
	"opineeo/survey-widget/internal/cors"
	"opineeo/survey-widget/internal/element"
	"opineeo/survey-widget/internal/host"
	"opineeo/survey-widget/internal/metrics"
	"opineeo/survey-widget/internal/remote"
	"opineeo/survey-widget/internal/style"
	"opineeo/survey-widget/internal/trace"
	"opineeo/survey-widget/internal/widget"

	"github.com/NYCU-SDC/summer/pkg/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	socketPath      = "/ws"
	shutdownTimeout = 5 * time.Second
)

func newServeCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the widget runtime, page websocket and preview api",
		Long: `Serve the browser runtime at /opineeo.js and run widgets for connected pages over /ws.
When a survey directory is configured the reference survey api is served as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := loadConfig(cmd, f)
			return serve(cmd.Context(), cfg, logger, true)
		},
	}
}

func newAPICommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "api",
		Short: "Serve only the reference survey api",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := loadConfig(cmd, f)
			if !cfg.SurveyAPIEnabled() {
				logger.Fatal("The api command needs a survey directory, set SURVEY_DIR or --surveys")
			}
			return serve(cmd.Context(), cfg, logger, false)
		},
	}
}

func serve(parent context.Context, cfg config.Config, logger *zap.Logger, withHost bool) error {
	logger.Info("Starting application...")

	shutdown, err := initOpenTelemetry(AppName, Version, BuildTime, CommitHash, Environment, cfg.OtelCollectorUrl)
	if err != nil {
		logger.Fatal("Failed to initialize OpenTelemetry", zap.Error(err))
	}

	prom, err := metrics.NewPrometheus()
	if err != nil {
		logger.Fatal("Failed to initialize metrics", zap.Error(err))
	}

	validator := internal.NewValidator()
	problemWriter := internal.NewProblemWriter()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ============================================
	// Service
	// ============================================

	scoper, err := style.NewScoper(cfg.ScopeCacheSize)
	if err != nil {
		logger.Fatal("Failed to initialize css scoper", zap.Error(err))
	}

	remoteClient := remote.NewClient(logger, validator, cfg.APIBaseURL, remote.WithRetry(cfg.SubmitRetries, 500*time.Millisecond))
	loader := bundle.NewLoader(logger, bundle.Params{SocketPath: socketPath, Version: Version}, nil)

	handlers := element.NewRegistry(validator)
	err = handlers.Register("opineeo.log", func(detail any, elementID string) {
		logger.Info("Survey element event", zap.String("element_id", elementID), zap.Any("detail", detail))
	})
	if err != nil {
		logger.Fatal("Failed to register element handler", zap.Error(err))
	}

	sessions := host.NewRegistry(logger, validator, cfg.SessionTTL, handlers, loader, prom.Recorder,
		widget.WithClient(remoteClient),
		widget.WithLogger(logger),
		widget.WithRecorder(prom.Recorder),
		widget.WithScoper(scoper),
	)

	var api *surveyAPI
	if cfg.SurveyAPIEnabled() {
		api, err = newSurveyAPI(ctx, cfg, logger, validator, problemWriter)
		if err != nil {
			logger.Fatal("Failed to initialize survey api", zap.Error(err))
		}
		defer api.Close()
	}

	// ============================================
	// Handler
	// ============================================

	hostHandler := host.NewHandler(logger, validator, problemWriter, sessions, loader, scoper, prom.Recorder, cfg.AllowOrigins)

	// ============================================
	// Middleware
	// ============================================

	traceMiddleware := trace.NewMiddleware(logger, cfg.Debug)
	corsMiddleware := cors.NewMiddleware(logger, cfg.AllowOrigins)

	// Basic Middleware (Tracing and Recovery)
	basicMiddleware := middleware.NewSet(traceMiddleware.RecoverMiddleware)
	basicMiddleware = basicMiddleware.Append(traceMiddleware.TraceMiddleware)

	// HTTP Server
	mux := http.NewServeMux()

	// Health check route
	mux.Handle("GET /api/healthz", basicMiddleware.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte("OK"))
		if err != nil {
			logger.Error("Failed to write response", zap.Error(err))
		}
	}))
	mux.Handle("GET /metrics", prom.Handler)

	// ============================================
	// Widget host routes
	// ============================================

	if withHost {
		mux.Handle("GET /"+bundle.FileName, basicMiddleware.HandlerFunc(hostHandler.ServeBundle))
		mux.Handle("GET "+socketPath, basicMiddleware.HandlerFunc(hostHandler.ServeSocket))
		mux.Handle("POST /api/preview", basicMiddleware.HandlerFunc(hostHandler.Preview))
	}

	// ============================================
	// Survey API routes
	// ============================================

	if api != nil {
		apiMiddleware := basicMiddleware.Append(api.auth.Middleware)

		mux.Handle("GET /api/survey/v0", apiMiddleware.HandlerFunc(api.handler.GetSurveyHandler))
		mux.Handle("POST /api/survey/v0", apiMiddleware.HandlerFunc(api.handler.SubmitHandler))
		mux.Handle("GET /api/survey/v0/export", apiMiddleware.HandlerFunc(api.handler.ExportHandler))
	}

	// End of API routes
	// ============================================

	// CORS and Entry Point
	entrypoint := corsMiddleware.HandlerFunc(mux.ServeHTTP)

	srv := &http.Server{
		Addr:              cfg.Host + ":" + cfg.Port,
		Handler:           entrypoint,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting listening request", zap.String("host", cfg.Host), zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		// wait for context close
		<-gctx.Done()
		logger.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
	}

	sessions.Close()

	otelCtx, otelCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer otelCancel()
	if err := prom.Shutdown(otelCtx); err != nil {
		logger.Error("Forced to shutdown metrics", zap.Error(err))
	}
	if err := shutdown(otelCtx); err != nil {
		logger.Error("Forced to shutdown OpenTelemetry", zap.Error(err))
	}

	logger.Info("Successfully shutdown")
	return err
}
