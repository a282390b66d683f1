package main

import (
	"net/http"

	"github.com/HammerMeetNail/friendsync/internal/handlers"
	"github.com/HammerMeetNail/friendsync/internal/middleware"
)

type routerDeps struct {
	health     *handlers.HealthHandler
	directory  *handlers.DirectoryHandler
	friends    *handlers.FriendHandler
	invites    *handlers.InviteHandler
	auth       *middleware.AuthMiddleware
	apiLimit   *middleware.RateLimiter
	matchLimit *middleware.RateLimiter
	metrics    *middleware.Metrics
	security   *middleware.SecurityHeaders
	logger     *middleware.RequestLogger
}

func newRouter(d routerDeps) http.Handler {
	// Authenticated and rate limited per user.
	protected := func(h http.HandlerFunc) http.Handler {
		return d.auth.RequireAuth(d.apiLimit.Middleware(h))
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", d.health.Health)
	mux.HandleFunc("GET /ready", d.health.Ready)
	mux.HandleFunc("GET /live", d.health.Live)
	mux.Handle("GET /metrics", d.metrics.Handler())

	mux.Handle("POST /api/directory/match", d.auth.RequireAuth(d.matchLimit.Middleware(http.HandlerFunc(d.directory.Match))))

	mux.Handle("GET /api/friends", protected(d.friends.List))
	mux.Handle("GET /api/friends/requests", protected(d.friends.Requests))
	mux.Handle("POST /api/friends/request", protected(d.friends.SendRequest))
	mux.Handle("PUT /api/friends/{id}/accept", protected(d.friends.AcceptRequest))
	mux.Handle("PUT /api/friends/{id}/reject", protected(d.friends.RejectRequest))

	mux.Handle("POST /api/invites/sms", protected(d.invites.SendSMS))

	// Wrapped inside out: metrics see the mux pattern, the logger sees the user.
	var handler http.Handler = mux
	handler = d.metrics.Apply(handler)
	handler = d.logger.Apply(handler)
	handler = d.auth.Authenticate(handler)
	handler = d.security.Apply(handler)
	return handler
}
