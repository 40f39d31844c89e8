package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rgnets/wlanpi-netctl/internal/log"
)

// Server wraps the chi router and HTTP server for the agent's API.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	handler    *Handler
}

// NewServer creates the API server. metricsHandler serves /metrics; pass nil
// to leave the endpoint unmounted.
func NewServer(bindAddr string, handler *Handler, metricsHandler http.Handler) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		handler: handler,
	}

	s.router.Use(Recovery)
	s.router.Use(Logger)
	s.router.Use(PrivateSubnetOnly)
	s.router.Use(JSONContentType)

	s.setupRoutes(metricsHandler)

	s.httpServer = &http.Server{
		Addr:        bindAddr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// setupRoutes configures all API routes. The SSE stream and /metrics have no
// write timeout on the server, so plain handlers must bound their own work.
func (s *Server) setupRoutes(metricsHandler http.Handler) {
	h := s.handler

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", h.GetStatus)

		r.Route("/interfaces", func(r chi.Router) {
			r.Get("/", h.ListInterfaces)
			r.Get("/{name}", h.GetInterface)
			r.Post("/{name}/configure", h.ConfigureInterface)
			r.Post("/{name}/remove", h.RemoveInterface)
			r.Post("/{name}/dhcp/renew", h.RenewLease)
			r.Post("/{name}/dhcp/release", h.ReleaseLease)
			r.Get("/{name}/lease", h.GetLease)
		})

		r.Route("/routes", func(r chi.Router) {
			r.Post("/host", h.AddHostRoute)
			r.Delete("/host", h.RemoveHostRoute)
			r.Post("/flush/{table}", h.FlushRoutes)
		})

		r.Get("/events", h.StreamEvents)
		r.Get("/health", h.CheckHealth)
	})

	if metricsHandler != nil {
		s.router.Handle("/metrics", metricsHandler)
	}

	// Plain liveness probe at root
	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

// Router exposes the configured router, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the API server and blocks until it stops.
func (s *Server) Start() error {
	log.Infof("[API] Starting server on %s", s.httpServer.Addr)
	log.Infof("[API] Example: curl http://%s/api/v1/status", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Stop gracefully stops the API server.
func (s *Server) Stop(ctx context.Context) error {
	log.Infof("[API] Shutting down server...")
	return s.httpServer.Shutdown(ctx)
}
