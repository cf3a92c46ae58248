// Package api provides the HTTP REST API and WebSocket server for Karen.
//
// It exposes current property state, reconciled history, aggregates and
// presence transitions to user interfaces, and streams property-changed
// events over WebSocket.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mattlunn/karen-sub001/internal/capability"
	"github.com/mattlunn/karen-sub001/internal/event"
	"github.com/mattlunn/karen-sub001/internal/infrastructure/config"
	"github.com/mattlunn/karen-sub001/internal/infrastructure/logging"
	"github.com/mattlunn/karen-sub001/internal/presence"
)

// gracefulShutdownTimeout is the maximum wait for in-flight requests on
// shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Store   *event.Store
	Tracker *presence.Tracker

	// Registry resolves provider handlers for the command endpoint;
	// Capabilities maps capability names to their property descriptors.
	Registry     *capability.Registry
	Capabilities map[string][]capability.PropertyDescriptor

	Version string
}

// Server is the HTTP API server for Karen.
type Server struct {
	cfg          config.APIConfig
	wsCfg        config.WebSocketConfig
	logger       *logging.Logger
	store        *event.Store
	tracker      *presence.Tracker
	registry     *capability.Registry
	capabilities map[string][]capability.PropertyDescriptor
	version      string

	server *http.Server
	hub    *Hub
	cancel context.CancelFunc
}

// New creates the API server. It is not listening until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("event store is required")
	}
	if deps.Tracker == nil {
		return nil, fmt.Errorf("presence tracker is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("capability registry is required")
	}

	return &Server{
		cfg:          deps.Config,
		wsCfg:        deps.WS,
		logger:       deps.Logger,
		store:        deps.Store,
		tracker:      deps.Tracker,
		registry:     deps.Registry,
		capabilities: deps.Capabilities,
		version:      deps.Version,
	}, nil
}

// Start builds the router, starts the WebSocket hub, registers the
// property-changed relay, and launches the HTTP listener in a background
// goroutine. Stop with Close.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	// Relay property changes to subscribed WebSocket clients.
	s.store.OnPropertyChanged(func(subjectID, propertyKey string) {
		s.hub.Broadcast(ChannelPropertyChanged, map[string]string{
			"subjectId":   subjectID,
			"propertyKey": propertyKey,
		})
	})

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", "error", err)
		}
	}()

	s.logger.Info("api server started", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the server, waiting for in-flight requests
// up to the shutdown timeout.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("api server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down api server: %w", err)
	}
	return nil
}

// HealthCheck verifies the server has been started.
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
