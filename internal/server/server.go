// Package server provides the HTTP server for the post-it overlay and API.
package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/aei/innovision/internal/server/api"
	"github.com/aei/innovision/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir  string
	Store      *store.Store
	Controller api.Controller
	Preview    PreviewSource
	Hub        *Hub
}

// Server represents the HTTP server.
type Server struct {
	config Config
	router *mux.Router
	start  time.Time
}

// New creates a new Server with the given configuration. Routes whose
// dependencies are missing from config are not registered.
func New(config Config) *Server {
	s := &Server{
		config: config,
		router: mux.NewRouter(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)

	if s.config.Controller != nil {
		api.NewTracksHandler(s.config.Controller).Register(s.router)
		api.NewSettingsHandler(s.config.Controller).Register(s.router)
	}

	if s.config.Store != nil {
		api.NewNotesHandler(s.config.Store).Register(s.router)
	}

	if s.config.Preview != nil {
		s.router.Handle("/api/stream", NewStreamHandler(s.config.Preview)).Methods(http.MethodGet)
	}

	if s.config.Hub != nil {
		s.router.Handle("/api/detections", s.config.Hub)
	}

	if s.config.StaticDir != "" {
		s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Hub != nil {
		response["clients"] = s.config.Hub.Clients()
	}

	writeJSON(w, http.StatusOK, response)
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return s.HTTPServer(addr).ListenAndServe()
}

// HTTPServer returns an http.Server for s with sane timeouts. The write
// timeout is left open for the MJPEG stream.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
