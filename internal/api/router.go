// Package api exposes page sessions over HTTP.
package api

import (
	"net/http"
	"time"

	"codeberg.org/mutker/plantsim/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the page control API, health check and WebSocket
// endpoint.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)

	r.Route("/api/pages", func(r chi.Router) {
		r.Get("/", h.ListPages)
		r.Route("/{page}", func(r chi.Router) {
			r.Get("/", h.GetPage)
			r.Post("/toggle", h.Toggle)
			r.Post("/start", h.Start)
			r.Post("/stop", h.Stop)
			r.Post("/clear", h.Clear)
			r.Put("/cadence", h.SetCadence)
		})
	})

	if h.hub != nil {
		r.Get("/ws", h.WebSocket)
	}

	return r
}

// requestLogger logs one line per request at debug level, or warn for
// server errors.
func requestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			ev := log.Debug()
			if ww.Status() >= http.StatusInternalServerError {
				ev = log.Warn()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("HTTP request")
		})
	}
}
