package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"mercator-hq/localchat/pkg/api/handlers"
	"mercator-hq/localchat/pkg/api/middleware"
	"mercator-hq/localchat/pkg/config"
	"mercator-hq/localchat/pkg/relay"
	"mercator-hq/localchat/pkg/store"
	"mercator-hq/localchat/pkg/store/backup"
	"mercator-hq/localchat/pkg/telemetry/health"
	"mercator-hq/localchat/pkg/telemetry/metrics"
	"mercator-hq/localchat/pkg/telemetry/tracing"
)

// Deps are the components the server routes requests to.
type Deps struct {
	Store store.Store
	Relay *relay.Controller

	// Metrics is optional. When set, /metrics is served and requests are
	// counted.
	Metrics *metrics.Collector

	// Backups is optional.
	Backups *backup.Scheduler

	// Health holds the readiness checks. When nil, readiness pings the
	// store only.
	Health *health.Checker

	// ConfigPath enables hot reload of the given file.
	ConfigPath string
}

// Server is the localchat HTTP server.
type Server struct {
	config       *config.Config
	deps         Deps
	version      string
	httpServer   *http.Server
	listener     net.Listener
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
	logger       *slog.Logger
}

// New creates a server. It does not listen until Start.
func New(cfg *config.Config, deps Deps, version string) *Server {
	return &Server{
		config:       cfg,
		deps:         deps,
		version:      version,
		shutdownChan: make(chan struct{}),
		logger:       slog.Default().With("component", "server"),
	}
}

// Start listens on the configured address and blocks until ctx is done, a
// shutdown signal arrives, or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.Server.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.Server.ListenAddress, err)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler:        s.Handler(),
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		IdleTimeout:    s.config.Server.IdleTimeout,
		MaxHeaderBytes: s.config.Server.MaxHeaderBytes,
	}
	s.isRunning = true
	cfg := s.config
	s.mu.Unlock()

	bgCtx, cancelBackground := context.WithCancel(ctx)
	defer cancelBackground()

	if s.deps.Backups != nil {
		if err := s.deps.Backups.Start(bgCtx); err != nil {
			_ = s.Shutdown(context.Background())
			return fmt.Errorf("failed to start backup scheduler: %w", err)
		}
	}
	if s.deps.ConfigPath != "" {
		go func() {
			err := config.Watch(bgCtx, s.deps.ConfigPath, config.DefaultWatchDebounce, func(cfg *config.Config) {
				if err := s.Reload(cfg); err != nil {
					s.logger.Error("failed to apply reloaded configuration", "error", err)
				}
			})
			if err != nil {
				s.logger.Error("configuration watcher exited", "error", err)
			}
		}()
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting localchat server",
			"address", ln.Addr().String(),
			"version", s.version,
			"storage", cfg.Storage.Backend,
			"default_backend", cfg.Backends.Default,
		)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		_ = s.Shutdown(context.Background())
		return err
	case <-s.shutdownChan:
		s.logger.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Addr returns the listening address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// RequestShutdown makes a blocked Start return after a graceful shutdown.
func (s *Server) RequestShutdown() {
	select {
	case <-s.shutdownChan:
	default:
		close(s.shutdownChan)
	}
}

// Shutdown stops accepting requests and waits for open streams up to the
// shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		timeout := s.Config().Server.ShutdownTimeout
		s.logger.Info("initiating graceful shutdown", "timeout", timeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown, closing open streams", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			if cerr := s.httpServer.Close(); cerr != nil {
				s.logger.Error("failed to close server", "error", cerr)
			}
		}
		if s.deps.Backups != nil {
			s.deps.Backups.Stop()
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("localchat server stopped")
	})

	return shutdownErr
}

// Reload applies a new configuration to the running relay.
func (s *Server) Reload(cfg *config.Config) error {
	opts, err := relay.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	if err := s.deps.Relay.SetOptions(opts); err != nil {
		return err
	}

	// The bound address stays in effect until a restart.
	next := *cfg
	s.mu.Lock()
	current := s.config.Server.ListenAddress
	next.Server.ListenAddress = current
	s.config = &next
	s.mu.Unlock()

	if cfg.Server.ListenAddress != current {
		s.logger.Warn("listen address change requires a restart",
			"current", current,
			"configured", cfg.Server.ListenAddress,
		)
	}
	s.logger.Info("relay configuration applied",
		"default_backend", cfg.Backends.Default,
		"model", cfg.Generation.Model,
	)
	return nil
}

// Config returns the configuration currently in effect.
func (s *Server) Config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// readyTimeout bounds each readiness check.
const readyTimeout = 2 * time.Second

func (s *Server) checker() *health.Checker {
	if s.deps.Health != nil {
		return s.deps.Health
	}
	c := health.New(readyTimeout)
	c.Register("store", s.deps.Store.Ping)
	return c
}

// Handler returns the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	maxBody := s.config.Server.MaxBodyBytes

	threads := handlers.NewThreadsHandler(s.deps.Store, s.config.Relay.PlaceholderTitle, maxBody)
	storage := handlers.NewStorageHandler(s.deps.Store, maxBody)
	settings := handlers.NewSettingsHandler(s.deps.Store, maxBody)

	r := mux.NewRouter()

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Handle("/chat", handlers.NewChatHandler(s.deps.Relay, maxBody)).Methods(http.MethodPost)
	apiRouter.HandleFunc("/threads", threads.List).Methods(http.MethodGet)
	apiRouter.HandleFunc("/threads", threads.Create).Methods(http.MethodPost)
	apiRouter.HandleFunc("/threads/{id}", threads.Get).Methods(http.MethodGet)
	apiRouter.HandleFunc("/threads/{id}", threads.Rename).Methods(http.MethodPatch)
	apiRouter.HandleFunc("/threads/{id}", threads.Delete).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/storage/export", storage.Export).Methods(http.MethodGet)
	apiRouter.HandleFunc("/storage/import", storage.Import).Methods(http.MethodPost)
	apiRouter.HandleFunc("/settings", settings.Get).Methods(http.MethodGet)
	apiRouter.HandleFunc("/settings", settings.Put).Methods(http.MethodPost)

	r.Handle("/health", handlers.NewHealthHandler(s.version)).Methods(http.MethodGet)
	r.Handle("/ready", handlers.NewReadyHandler(s.checker())).Methods(http.MethodGet)

	if s.deps.Metrics != nil && s.config.Telemetry.Metrics.Enabled {
		r.Handle(s.config.Telemetry.Metrics.Path, s.deps.Metrics.Handler()).Methods(http.MethodGet)
	}

	r.Use(tracing.HTTPMiddleware)
	if s.deps.Metrics != nil {
		r.Use(middleware.MetricsMiddleware(s.deps.Metrics))
	}

	var handler http.Handler = r
	handler = middleware.CORSMiddleware(s.config.Server.CORS)(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.RecoveryMiddleware(handler)

	return handler
}
