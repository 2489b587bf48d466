package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/glestaris/ice/pkg/events"
	"github.com/glestaris/ice/pkg/log"
	"github.com/glestaris/ice/pkg/metrics"
	"github.com/glestaris/ice/pkg/storage"
	"github.com/glestaris/ice/pkg/types"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/rs/zerolog"
)

// APIVersion is the path prefix every route is also served under
const APIVersion = "/v2"

// Public IP policies
const (
	// PublicIPFallback validates a supplied public_ip_addr and fills in the
	// observed peer address when none is supplied
	PublicIPFallback = "fallback"
	// PublicIPObserved always overwrites public_ip_addr with the observed
	// peer address
	PublicIPObserved = "observed"
)

// Config holds the registry server settings
type Config struct {
	// TrustForwardedFor takes the caller address from the first
	// X-Forwarded-For value. Only enable behind a trusted load balancer.
	TrustForwardedFor bool
	PublicIPPolicy    string
	Metrics           bool
}

// Server is the registry HTTP server. It holds no state between requests
// besides its collaborators.
type Server struct {
	store   storage.Store
	broker  *events.Broker
	config  Config
	logger  zerolog.Logger
	handler http.Handler

	mu   sync.Mutex
	http *http.Server
}

// NewServer creates a new registry server. broker may be nil.
func NewServer(store storage.Store, broker *events.Broker, cfg Config) *Server {
	if cfg.PublicIPPolicy == "" {
		cfg.PublicIPPolicy = PublicIPFallback
	}

	s := &Server{
		store:  store,
		broker: broker,
		config: cfg,
		logger: log.WithComponent("api"),
	}

	router := mux.NewRouter()
	router.StrictSlash(true)
	router.Use(s.metricsMiddleware)

	s.registerRoutes(router)
	s.registerRoutes(router.PathPrefix(APIVersion).Subrouter())

	router.HandleFunc("/health", metrics.HealthHandler()).Methods(http.MethodGet)
	router.HandleFunc("/ready", s.readyHandler).Methods(http.MethodGet)
	router.HandleFunc("/live", metrics.LivenessHandler()).Methods(http.MethodGet)
	if cfg.Metrics {
		router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}

	chain := alice.New(
		func(h http.Handler) http.Handler {
			return handlers.RecoveryHandler(
				handlers.RecoveryLogger(recoveryLogger{s.logger}),
				handlers.PrintRecoveryStack(true),
			)(h)
		},
		s.loggingMiddleware,
		handlers.CompressHandler,
	)
	if cfg.TrustForwardedFor {
		chain = chain.Append(forwardedFor)
	}
	s.handler = chain.Then(router)

	return s
}

func (s *Server) registerRoutes(r *mux.Router) {
	r.HandleFunc("/", s.root).Methods(http.MethodGet)
	r.HandleFunc("/my_ip", s.myIP).Methods(http.MethodGet)

	r.HandleFunc("/sessions", s.listSessions).Methods(http.MethodGet)
	r.HandleFunc("/sessions", s.createSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}", s.getSession).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}", s.deleteSession).Methods(http.MethodDelete)

	r.HandleFunc("/instances", s.listInstances).Methods(http.MethodGet)
	r.HandleFunc("/instances", s.createInstance).Methods(http.MethodPost)
	r.HandleFunc("/instances/{id}", s.getInstance).Methods(http.MethodGet)
	r.HandleFunc("/instances/{id}", s.deleteInstance).Methods(http.MethodDelete)
}

// Handler returns the HTTP handler for embedding in other servers
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on addr and serves until Shutdown is called
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

// Serve serves requests on lis until Shutdown is called
func (s *Server) Serve(lis net.Listener) error {
	server := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.mu.Lock()
	s.http = server
	s.mu.Unlock()

	metrics.RegisterComponent(metrics.ComponentAPI, true, "")
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("Registry API listening")

	err := server.Serve(lis)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	metrics.UpdateComponent(metrics.ComponentAPI, false, "shutting down")

	s.mu.Lock()
	server := s.http
	s.mu.Unlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

func (s *Server) publish(eventType events.EventType, message string, metadata map[string]string) {
	if s.broker == nil {
		return
	}
	s.broker.Publish(events.NewEvent(eventType, message, metadata))
}

// sessionExists resolves the instances.session_id data relation
func (s *Server) sessionExists(resource, id string) (bool, error) {
	if resource != types.ResourceSessions {
		return false, fmt.Errorf("unknown resource %q", resource)
	}
	_, err := s.store.GetSession(id)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
