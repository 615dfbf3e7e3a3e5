// Package gateway exposes the agent over HTTP: session creation, message
// submission with SSE fragment streaming, a WebSocket chat endpoint, and
// health, metrics, and admin surfaces.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/casahub/concierge/internal/agent"
	"github.com/casahub/concierge/internal/config"
	"github.com/casahub/concierge/internal/conversation"
	"github.com/casahub/concierge/internal/provider"
)

const shutdownTimeout = 10 * time.Second

// Gateway is the HTTP server wrapping the orchestration loop.
type Gateway struct {
	config   config.ServerConfig
	loop     *agent.Loop
	sessions *conversation.Store
	provider provider.Provider
	logger   *slog.Logger
	metrics  *Metrics
	server   *http.Server
}

// New creates a Gateway. Call Start to begin serving.
func New(cfg config.ServerConfig, loop *agent.Loop, sessions *conversation.Store, p provider.Provider, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		config:   cfg,
		loop:     loop,
		sessions: sessions,
		provider: p,
		logger:   logger,
		metrics:  NewMetrics(sessions),
	}
}

// Start binds the listen address and serves in a background goroutine.
func (g *Gateway) Start() error {
	g.server = &http.Server{
		Addr:        g.config.Listen,
		Handler:     g.buildRouter(),
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: SSE responses stay open for the life of a stream.
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Listen)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.config.Listen)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
