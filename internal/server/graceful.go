// Package server provides graceful shutdown for the decision service
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Shutdownable is a component that can be gracefully shut down
type Shutdownable interface {
	Shutdown(ctx context.Context) error
	Name() string
}

// ShutdownFunc wraps a function to implement Shutdownable
type ShutdownFunc struct {
	name string
	fn   func(context.Context) error
}

func NewShutdownFunc(name string, fn func(context.Context) error) *ShutdownFunc {
	return &ShutdownFunc{name: name, fn: fn}
}

func (s *ShutdownFunc) Name() string { return s.name }

func (s *ShutdownFunc) Shutdown(ctx context.Context) error { return s.fn(ctx) }

// GracefulShutdown drains the HTTP server first, then shuts down the
// registered components concurrently.
type GracefulShutdown struct {
	server          *http.Server
	logger          *zap.Logger
	shutdownables   []Shutdownable
	shutdownTimeout time.Duration
	signalChan      chan os.Signal
	mu              sync.Mutex
}

// Config holds configuration for graceful shutdown
type Config struct {
	Server          *http.Server
	Logger          *zap.Logger
	Shutdownables   []Shutdownable
	ShutdownTimeout time.Duration
}

func New(cfg Config) *GracefulShutdown {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	return &GracefulShutdown{
		server:          cfg.Server,
		logger:          cfg.Logger,
		shutdownables:   cfg.Shutdownables,
		shutdownTimeout: cfg.ShutdownTimeout,
		signalChan:      make(chan os.Signal, 1),
	}
}

// AddShutdownFunc registers a shutdown function as a component
func (g *GracefulShutdown) AddShutdownFunc(name string, fn func(context.Context) error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.shutdownables = append(g.shutdownables, NewShutdownFunc(name, fn))
}

// Start blocks until a shutdown signal arrives, then runs the shutdown
// sequence.
func (g *GracefulShutdown) Start() {
	signal.Notify(g.signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-g.signalChan
	g.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	g.shutdown()
}

func (g *GracefulShutdown) shutdown() {
	g.logger.Info("Starting graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), g.shutdownTimeout)
	defer cancel()

	// stop accepting new requests before touching dependencies
	if g.server != nil {
		if err := g.server.Shutdown(shutdownCtx); err != nil {
			if err == context.DeadlineExceeded {
				g.logger.Warn("Server shutdown timed out, forcing close")
				g.server.Close()
			} else {
				g.logger.Error("Error during server shutdown", zap.Error(err))
			}
		}
	}

	g.mu.Lock()
	shutdownables := make([]Shutdownable, len(g.shutdownables))
	copy(shutdownables, g.shutdownables)
	g.mu.Unlock()

	var wg sync.WaitGroup
	for _, component := range shutdownables {
		wg.Add(1)
		go func(s Shutdownable) {
			defer wg.Done()

			componentCtx, componentCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
			defer componentCancel()

			if err := s.Shutdown(componentCtx); err != nil {
				g.logger.Error("Error shutting down component",
					zap.String("component", s.Name()),
					zap.Error(err))
				return
			}
			g.logger.Info("Component shutdown complete", zap.String("component", s.Name()))
		}(component)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		g.logger.Info("Graceful shutdown complete")
	case <-shutdownCtx.Done():
		g.logger.Warn("Shutdown timed out waiting for components")
	}
}

// ListenAndServe starts the HTTP server and waits for shutdown signals
func (g *GracefulShutdown) ListenAndServe() error {
	go func() {
		g.logger.Info(fmt.Sprintf("Server listening on %s", g.server.Addr))
		if err := g.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			g.logger.Error("Server error", zap.Error(err))
		}
	}()

	g.Start()
	return nil
}

// Shutdown triggers a manual shutdown
func (g *GracefulShutdown) Shutdown() {
	select {
	case g.signalChan <- syscall.SIGTERM:
	default:
		g.logger.Info("Shutdown already in progress")
	}
}

// CloseDB returns a Shutdownable for a database pool
func CloseDB(db interface{ Close() error }) Shutdownable {
	return NewShutdownFunc("database", func(ctx context.Context) error {
		return db.Close()
	})
}

// CloseRedis returns a Shutdownable for a Redis client
func CloseRedis(redis interface{ Close() error }) Shutdownable {
	return NewShutdownFunc("redis", func(ctx context.Context) error {
		return redis.Close()
	})
}
