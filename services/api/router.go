package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes constructs the chi router containing all API endpoints.
func (a *API) Routes() (http.Handler, error) {
	if a == nil {
		return nil, errors.New("nil api")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Route("/activity", func(r chi.Router) {
			r.Post("/refresh", a.handleRefresh)
			r.Get("/summary", a.handleSummary)
			r.Get("/assets/{type}/{id}", a.handleAssetActivity)
			r.Post("/assets/{type}/counts", a.handleAssetActivityCounts)
			r.Get("/users/{name}", a.handleUserActivity)
			r.Post("/users/counts", a.handleUserActivityCounts)
		})

		r.Route("/cache", func(r chi.Router) {
			r.Get("/master", a.handleMasterCache)
			r.Post("/rebuild", a.handleRebuild)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/index", a.handleGetJobIndex)
			r.Put("/index", a.handleUpdateJobIndex)
			r.Post("/index/persist", a.handlePersistJobIndex)
		})

		r.Get("/assets/{type}/{id}/export", a.handleExportDownload)
	})

	return r, nil
}
