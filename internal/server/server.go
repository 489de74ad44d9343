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
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Smeet2005/PHISHSCAN/internal/api"
	"github.com/Smeet2005/PHISHSCAN/internal/config"
	"github.com/Smeet2005/PHISHSCAN/pkg/observability"
)

// Version is reported in trace resources; the CLI overrides it at link time.
var Version = "dev"

type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	comps      *Components
	httpServer *http.Server
	httpLn     net.Listener

	shutdownTracing func(context.Context) error

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = observability.Discard()
	}
	readTimeout, err := time.ParseDuration(cfg.Server.HTTP.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse server.http.read_timeout: %w", err)
	}
	writeTimeout, err := time.ParseDuration(cfg.Server.HTTP.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse server.http.write_timeout: %w", err)
	}
	maxBytes, err := config.ParseByteSize(cfg.Server.HTTP.MaxRequestSize)
	if err != nil {
		return nil, fmt.Errorf("parse server.http.max_request_size: %w", err)
	}

	s := &Server{cfg: cfg, logger: logger}
	if cfg.Tracing.Enabled {
		s.shutdownTracing = observability.InstallTracing(observability.TracingOptions{
			ServiceName: "phishscan",
			Version:     Version,
			SampleRatio: cfg.Tracing.SampleRatio,
		})
	}

	comps, err := BuildComponents(cfg, logger)
	if err != nil {
		return nil, err
	}
	s.comps = comps

	deps := api.Deps{
		Orchestrator: comps.Orchestrator,
		Scanner:      comps.Scanner,
		Store:        comps.Store,
		Feed:         comps.Feed,
		Shortener:    comps.Shortener,
		Metrics:      comps.Metrics,
		Auth:         comps.Auth,
		Quotas:       comps.Quotas,
		Logger:       logger.With("component", "api"),
	}
	if comps.Syncer != nil {
		deps.Syncer = comps.Syncer
	}
	app := api.NewApp(cfg, deps)

	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTP.Addr,
		Handler:           withRequestBodyLimit(app.Router(), maxBytes),
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
	}
	return s, nil
}

func withRequestBodyLimit(next http.Handler, maxBytes int64) http.Handler {
	if maxBytes <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// Components exposes the assembled pipeline, mainly for tests.
func (s *Server) Components() *Components { return s.comps }

// Addr returns the bound listen address once Start has run.
func (s *Server) Addr() string {
	if s.httpLn != nil {
		return s.httpLn.Addr().String()
	}
	return s.httpServer.Addr
}

// Start binds the listener and launches the HTTP server and the background
// workers. Serve errors are delivered on the returned channel.
func (s *Server) Start(ctx context.Context) (<-chan error, error) {
	ln, err := s.listenHTTP()
	if err != nil {
		return nil, err
	}
	s.httpLn = ln

	bgCtx, cancel := context.WithCancel(ctx)
	s.bgCancel = cancel
	s.startBackground(bgCtx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("phishscan listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh, nil
}

func (s *Server) startBackground(ctx context.Context) {
	if s.comps.Syncer != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.comps.Syncer.Run(ctx)
		}()
	}
	if retention := s.cfg.Storage.SnapshotRetention; retention > 0 && s.comps.Pruner != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.pruneSnapshots(ctx, retention)
		}()
	}
	if interval := s.cfg.Reputation.CacheSweepInterval; interval > 0 && s.comps.Cache != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case now := <-ticker.C:
					if n := s.comps.Cache.Sweep(now); n > 0 {
						s.logger.Debug("verdict cache swept", "expired", n)
					}
				}
			}
		}()
	}
}

// pruneSnapshots drops expired snapshots now and then hourly.
func (s *Server) pruneSnapshots(ctx context.Context, retention time.Duration) {
	prune := func() {
		n, err := s.comps.Pruner.PruneSnapshots(ctx, time.Now().Add(-retention))
		if err != nil {
			s.logger.Warn("snapshot prune failed", "error", err)
			return
		}
		if n > 0 {
			s.logger.Info("pruned old scan snapshots", "removed", n)
		}
	}
	prune()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

func (s *Server) listenHTTP() (net.Listener, error) {
	addr := s.httpServer.Addr
	if s.comps.Auth == nil && !isLoopbackListenAddr(addr) {
		return nil, fmt.Errorf("refusing to listen on non-loopback address %q without auth (set auth.type=api_key)", addr)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}

func isLoopbackListenAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Run serves until ctx is cancelled or the process receives SIGINT/SIGTERM.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh, err := s.Start(ctx)
	if err != nil {
		_ = s.Close()
		return fmt.Errorf("server: %w", err)
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		_ = s.Close()
		return fmt.Errorf("server: %w", err)
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown", "error", err)
	}
	return s.Close()
}

// Close stops background workers, flushes the caches and releases the store.
// It is safe to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		if s.bgCancel != nil {
			s.bgCancel()
		}
		if s.httpServer != nil {
			_ = s.httpServer.Close()
		}
		s.bgWG.Wait()
		if s.comps != nil {
			s.closeErr = s.comps.Close()
		}
		if s.shutdownTracing != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.shutdownTracing(ctx); err != nil && s.closeErr == nil {
				s.closeErr = err
			}
		}
	})
	return s.closeErr
}
