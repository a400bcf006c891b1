// Package api provides the HTTP front door for IRHub.
//
// It serves the assistant fulfillment endpoint (SYNC/QUERY/EXECUTE intents),
// the OAuth account-linking endpoints, the HomeGraph relay endpoints, and a
// WebSocket stream of pipeline execution events.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hiroag/irhub-core/internal/auth"
	"github.com/hiroag/irhub-core/internal/infrastructure/config"
	"github.com/hiroag/irhub-core/internal/infrastructure/logging"
	"github.com/hiroag/irhub-core/internal/queue"
	"github.com/hiroag/irhub-core/internal/registry"
	"github.com/hiroag/irhub-core/internal/state"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// DeviceDirectory lists the devices an authenticated user may address.
// Satisfied by *registry.Resolver.
type DeviceDirectory interface {
	ListForUser(ctx context.Context, userID string) ([]registry.OwnedDevice, error)
}

// CommandSink accepts command batches for asynchronous execution.
// Satisfied by *queue.Queue.
type CommandSink interface {
	Set(aliasID string, commands []queue.Command) error
}

// TokenService is the OAuth surface the HTTP handlers need.
// Satisfied by *auth.Service.
type TokenService interface {
	Authorize(ctx context.Context, clientID, redirectURI, identityToken string) (string, error)
	Exchange(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*auth.TokenPair, error)
	Refresh(ctx context.Context, clientID, clientSecret, refreshToken string) (*auth.TokenPair, error)
	Authenticate(ctx context.Context, accessToken string) (string, error)
}

// GraphRelay forwards request-sync and report-state calls to the assistant
// platform. Satisfied by *homegraph.Client.
type GraphRelay interface {
	RequestSync(ctx context.Context, agentUserID string) error
	ReportState(ctx context.Context, agentUserID string, devices map[string]map[string]any) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Devices DeviceDirectory
	States  state.Store
	Queue   CommandSink
	Tokens  TokenService
	Graph   GraphRelay // optional; nil disables the relay endpoints
	Version string
}

// Server is the IRHub HTTP server.
//
// It manages the HTTP listener, routes, middleware, and the WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg     config.APIConfig
	wsCfg   config.WebSocketConfig
	logger  *logging.Logger
	devices DeviceDirectory
	states  state.Store
	queue   CommandSink
	tokens  TokenService
	graph   GraphRelay
	version string
	server  *http.Server
	hub     *Hub
	cancel  context.CancelFunc // stops the hub on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, registry, stores, tokens)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device directory is required")
	}
	if deps.States == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if deps.Queue == nil {
		return nil, fmt.Errorf("command queue is required")
	}
	if deps.Tokens == nil {
		return nil, fmt.Errorf("token service is required")
	}

	return &Server{
		cfg:     deps.Config,
		wsCfg:   deps.WS,
		logger:  deps.Logger,
		devices: deps.Devices,
		states:  deps.States,
		queue:   deps.Queue,
		tokens:  deps.Tokens,
		graph:   deps.Graph,
		version: deps.Version,
		hub:     NewHub(deps.WS, deps.Logger),
	}, nil
}

// Hub returns the WebSocket hub so the pipeline can broadcast run events.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
