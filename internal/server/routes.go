package server

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, logger *slog.Logger, opts Options) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Quizfire API", "/openapi.json", "/docs"))
	r.Get("/healthz", handleHealth(logger, opts.DB))

	// Contestant surface.
	r.Post("/api/join", handleJoin(opts.Engine, opts.Hub))
	r.Get("/api/join/qr", handleJoinQR(opts.PublicURL))
	r.Get("/api/buzzer/ws", opts.Hub.HandleWS())

	// Views.
	r.Get("/api/game/state", handleGameState(opts.Engine, opts.Auth))
	r.Get("/api/game/events", handleEvents(opts.Broker))

	// Judge surface.
	r.Post("/api/host/login", opts.Auth.HandleLogin())
	r.Route("/api/host", func(r chi.Router) {
		r.Use(opts.Auth.Middleware)
		r.Post("/key", handleHostKey(opts.Engine))
		r.Post("/select", handleHostSelect(opts.Engine))
	})
}
