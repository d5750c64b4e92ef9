// Discoveryd - Art Discovery Feed and Preference Engine
// Copyright 2026 Kaleidorium
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaleidorium/discoveryd

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes builds the service router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogger())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", viewerIDHeader},
		AllowCredentials: false,
		MaxAge:           86400,
	}))

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, time.Minute))
		r.Get("/", h.Health)
		r.Get("/live", h.Health)
		r.Get("/ready", h.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(300, time.Minute))

		r.Get("/feed", h.Feed)
		r.Post("/feedback", h.Feedback)
		r.Post("/filter", h.Filter)
		r.Post("/session/teardown", h.Teardown)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
