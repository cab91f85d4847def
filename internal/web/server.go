package web

import (
	"context"
	"log"
	"net/http"
	"time"
)

// Server wraps the HTTP server and handlers.
type Server struct {
	addr     string
	handlers *Handlers
}

// NewServer creates a server configured for the given address and dependencies.
// ctx bounds background capture sequences; Run's ctx stops the listener.
func NewServer(ctx context.Context, addr string, broadcaster *StatusBroadcaster, camera Controller, preview FrameSource) *Server {
	return &Server{
		addr:     addr,
		handlers: NewHandlers(ctx, broadcaster, camera, preview),
	}
}

// Mux returns an http.Handler with all routes registered.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()
	h := s.handlers

	mux.HandleFunc("GET /status", h.HandleStatus)
	mux.HandleFunc("GET /status/stream", h.HandleStatusStream)
	mux.HandleFunc("GET /config", h.HandleConfig)
	mux.HandleFunc("POST /config", h.HandleSetField)
	mux.HandleFunc("POST /scene", h.HandleScene)
	mux.HandleFunc("POST /reset", h.HandleReset)
	mux.HandleFunc("POST /focus", h.HandleFocus)
	mux.HandleFunc("POST /zoom", h.HandleZoom)
	mux.HandleFunc("POST /flash", h.HandleFlash)
	mux.HandleFunc("POST /session/start", h.HandleStart)
	mux.HandleFunc("POST /session/stop", h.HandleStop)
	mux.HandleFunc("POST /capture", h.HandleCapture)
	mux.HandleFunc("POST /burst", h.HandleBurst)
	mux.HandleFunc("POST /timer", h.HandleTimer)
	mux.HandleFunc("GET /preview", h.HandlePreview)

	return mux
}

// Run starts the server and blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Mux()}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("web server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
