// SPDX-License-Identifier: MIT

// Package api exposes the REST surface: registration, token handling and
// room management. Realtime traffic lives in the ws package; everything
// here rides the canonical middleware stack.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/parleyhq/parley/internal/api/middleware"
	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/health"
	"github.com/parleyhq/parley/internal/mail"
	"github.com/parleyhq/parley/internal/otp"
	"github.com/parleyhq/parley/internal/store"
	"github.com/parleyhq/parley/internal/ws"
)

// Server holds the REST handlers and their dependencies.
type Server struct {
	cfg    config.AppConfig
	logger zerolog.Logger

	users    *store.Users
	rooms    *store.Rooms
	messages *store.Messages
	tokens   *auth.Tokens
	otp      *otp.Store
	mailer   mail.Mailer
	hub      *ws.Hub
	sockets  *ws.Service
	health   *health.Manager
}

// Deps bundles everything the server needs.
type Deps struct {
	Config   config.AppConfig
	Logger   zerolog.Logger
	Users    *store.Users
	Rooms    *store.Rooms
	Messages *store.Messages
	Tokens   *auth.Tokens
	OTP      *otp.Store
	Mailer   mail.Mailer
	Hub      *ws.Hub
	Sockets  *ws.Service
	Health   *health.Manager
}

// New creates the server.
func New(d Deps) *Server {
	return &Server{
		cfg:      d.Config,
		logger:   d.Logger,
		users:    d.Users,
		rooms:    d.Rooms,
		messages: d.Messages,
		tokens:   d.Tokens,
		otp:      d.OTP,
		mailer:   d.Mailer,
		hub:      d.Hub,
		sockets:  d.Sockets,
		health:   d.Health,
	}
}

// Router builds the full route tree with the canonical middleware stack.
func (s *Server) Router() *chi.Mux {
	r := middleware.NewRouter(middleware.StackConfig{
		AllowedOrigins: s.cfg.AllowedOrigins,
		EnableMetrics:  true,
		EnableLogging:  true,
		RateLimitRPM:   s.cfg.RateLimitRPM,
	})

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)

	requireAuth := auth.Require(s.tokens, false)

	r.Route("/api/users", func(r chi.Router) {
		// Tighter limit on the credential endpoints.
		authLimit := middleware.RateLimit(s.cfg.AuthRateLimitPM)
		r.With(authLimit).Post("/request-otp", s.handleRequestOTP)
		r.With(authLimit).Post("/register", s.handleRegister)
		r.With(authLimit).Post("/token", s.handleToken)
		r.With(authLimit).Post("/token/refresh", s.handleTokenRefresh)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/profile", s.handleGetProfile)
			r.Put("/profile", s.handleUpdateProfile)
		})
	})

	r.Route("/api/chat", func(r chi.Router) {
		r.Use(requireAuth)

		r.Get("/rooms", s.handleListRooms)
		r.Post("/rooms", s.handleCreateGroup)
		r.Get("/rooms/{roomID}", s.handleGetRoom)
		r.Delete("/rooms/{roomID}", s.handleLeaveRoom)
		r.Get("/rooms/{roomID}/messages", s.handleListMessages)
		r.Post("/rooms/{roomID}/messages", s.handleCreateMessage)

		r.Post("/rooms/{roomID}/members", s.handleAddMember)
		r.Put("/rooms/{roomID}/members/{userID}", s.handleUpdateRole)
		r.Delete("/rooms/{roomID}/members/{userID}", s.handleRemoveMember)

		r.Post("/direct/{userID}", s.handleDirectRoom)

		r.Delete("/messages/{messageID}", s.handleDeleteMessage)
		r.Post("/messages/{messageID}/reactions", s.handleAddReaction)
		r.Delete("/messages/{messageID}/reactions", s.handleRemoveReaction)
	})

	r.Get("/ws/chat/{roomID}", s.sockets.HandleChat)
	r.Get("/ws/notifications", s.sockets.HandleNotifications)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeNotFound(w)
	})
	return r
}
