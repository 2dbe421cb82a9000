// Package main provides the API router setup.
package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/spherical/pdf-viewer/cmd/pdf-viewer-api/handlers"
	"github.com/spherical/pdf-viewer/cmd/pdf-viewer-api/middleware"
	"github.com/spherical/pdf-viewer/internal/observability"
)

// RouterConfig holds the settings the router needs.
type RouterConfig struct {
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger *observability.Logger, cfg RouterConfig, app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	if cfg.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"pdf-viewer"}`))
	})

	documentHandler := handlers.NewDocumentHandler(logger, app.Lister, app.Store, app.Recorder, app.Notifier, handlers.DocumentConfig{
		MaxUploadBytes:  app.Config.Storage.MaxUploadBytes,
		ValidateUploads: app.Config.Storage.ValidateUploads,
	})
	chatHandler := handlers.NewChatHandler(logger, app.Chat)
	viewerHandler := handlers.NewViewerHandler(logger, app.Registry)

	r.Get("/pdfs", documentHandler.ListNames)
	r.Post("/upload", documentHandler.Upload)
	r.Get("/data/{filename}", documentHandler.Serve)
	r.Post("/chat", chatHandler.Chat)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/documents", documentHandler.List)

		r.Route("/viewers", func(r chi.Router) {
			r.Get("/", viewerHandler.List)
			r.Post("/", viewerHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", viewerHandler.Delete)

				r.Put("/session", viewerHandler.OpenSession)
				r.Get("/session", viewerHandler.GetSession)
				r.Delete("/session", viewerHandler.TeardownSession)

				r.Post("/intersections", viewerHandler.Intersections)
				r.Post("/scroll", viewerHandler.Scroll)
				r.Get("/elements", viewerHandler.Elements)

				r.Get("/pages/{page}", viewerHandler.Page)
				r.Post("/pages/{page}/retry", viewerHandler.Retry)
			})
		})
	})

	return r
}
