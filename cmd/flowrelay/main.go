package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	app "github.com/kode4food/flowrelay"
	"github.com/kode4food/flowrelay/internal/client"
	"github.com/kode4food/flowrelay/internal/config"
	"github.com/kode4food/flowrelay/internal/observability"
	"github.com/kode4food/flowrelay/internal/server"
	"github.com/kode4food/flowrelay/pkg/log"
)

type flowrelay struct {
	cfg        *config.Config
	metrics    *observability.Metrics
	client     *client.Client
	apiServer  *server.Server
	httpServer *http.Server
	quit       chan os.Signal
}

var (
	ErrCreateClient = errors.New("failed to create upstream client")
)

func main() {
	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}

	s := &flowrelay{
		cfg:  cfg,
		quit: make(chan os.Signal, 1),
	}
	s.setupLogging()

	if err := s.run(); err != nil {
		slog.Error("Failed to start application", log.Error(err))
		os.Exit(1)
	}
}

func (s *flowrelay) run() error {
	if err := s.initializeClient(); err != nil {
		return err
	}
	s.startServer()

	signal.Notify(s.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(s.quit)
	<-s.quit

	s.shutdown()
	return nil
}

func (s *flowrelay) setupLogging() {
	level, ok := log.ParseLevel(s.cfg.LogLevel)
	env := os.Getenv("ENV")
	logger := log.NewWithLevel(app.Name, env, app.Version, level)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)

	if !ok && s.cfg.LogLevel != "" {
		slog.Warn("Unknown log level, using info",
			slog.String("log_level", s.cfg.LogLevel))
	}

	slog.Info("Flow relay starting",
		slog.String("log_level", s.cfg.LogLevel))

	slog.Info("Configuration loaded",
		slog.String("base_url", s.cfg.BaseURL),
		log.FlowID(s.cfg.FlowID),
		log.CollectionID(s.cfg.CollectionID),
		slog.Int("tweaks", len(s.cfg.Tweaks)),
		slog.Duration("request_timeout", s.cfg.RequestTimeout),
		slog.Int("retry_max_attempts", s.cfg.MaxAttempts),
		slog.Duration("retry_base_delay", s.cfg.RetryBaseDelay),
		slog.String("api_host", s.cfg.APIHost),
		slog.Int("api_port", s.cfg.APIPort))
}

func (s *flowrelay) initializeClient() error {
	s.metrics = observability.NewMetrics()

	cl, err := client.New(s.cfg, client.Dependencies{
		Observer: client.Observers{client.LogObserver{}, s.metrics},
		Sessions: s.metrics,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateClient, err)
	}
	s.client = cl
	return nil
}

func (s *flowrelay) startServer() {
	s.apiServer = server.NewServer(s.cfg, s.client, s.metrics)
	mux := s.apiServer.SetupRoutes()

	s.httpServer = &http.Server{
		Addr:    s.cfg.Addr(),
		Handler: mux,
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", s.httpServer.Addr))
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", log.Error(err))
			s.quit <- syscall.SIGTERM
		}
	}()
}

func (s *flowrelay) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), s.cfg.ShutdownTimeout,
	)
	defer cancel()

	s.apiServer.CloseWebSockets()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", log.Error(err))
	}

	slog.Info("Server exited")
}
