package api

import (
	"github.com/go-chi/chi/v5"
)

// setupAPIRoutes sets up API v1 routes
func (s *RESTServer) setupAPIRoutes(r chi.Router) {
	// Health check
	r.Get("/health", s.HandleHealth)
	r.Get("/", s.HandleRoot)

	// Auth routes (public)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.HandleLogin)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.HandleListDevices)
			r.Route("/{device_id}", func(r chi.Router) {
				r.Get("/", s.HandleGetDeviceState)

				r.Route("/nodes", func(r chi.Router) {
					r.Get("/", s.HandleListNodes)
					r.Post("/", s.HandleInjectNode)
					r.Get("/{num}", s.HandleGetNode)
				})

				r.Route("/messages", func(r chi.Router) {
					r.Get("/", s.HandleListMessages)
					r.Get("/unread", s.HandleListUnread)
					r.Post("/read", s.HandleMarkRead)
				})
			})
		})
	})
}
