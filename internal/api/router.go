// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/playwarden/internal/config"
)

// NewRouter builds the local operator API.
//
// Read routes are unthrottled. Routes that change the active playlist or
// the player are limited per client IP by cfg.WriteRateLimit requests per
// minute (0 disables the limit).
func NewRouter(cfg config.APIConfig, h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(requestContext)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(observe)

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/state", h.GetState)
		r.Get("/playlists", h.ListPlaylists)
		r.Get("/channels", h.GetChannels)

		r.Group(func(r chi.Router) {
			if cfg.WriteRateLimit > 0 {
				r.Use(httprate.LimitByIP(cfg.WriteRateLimit, time.Minute))
			}
			r.Put("/active-playlist", h.SetActivePlaylist)
			r.Delete("/active-playlist", h.ClearActivePlaylist)
			r.Post("/player/start", h.StartPlayer)
			r.Post("/player/stop", h.StopPlayer)
			r.Post("/player/restart", h.RestartPlayer)
		})
	})

	return r
}
