package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/tendant/simple-vault/pkg/simplevault"
)

// Config holds the HTTP-facing settings
type Config struct {
	MaxUploadSize int64
	PresignTTL    time.Duration
	// CheckOrigin decides which WebSocket origins are accepted; nil applies
	// gorilla's same-origin check.
	CheckOrigin func(r *http.Request) bool
}

// Routes builds the authenticated API router, meant to be mounted at /api/v1
func Routes(service simplevault.Service, tokenAuth *jwtauth.JWTAuth, cfg Config) chi.Router {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Use(Authenticate(tokenAuth))

	r.Mount("/files", NewFilesHandler(service, cfg.MaxUploadSize).Routes())
	r.Mount("/versions", NewVersionsHandler(service, cfg.PresignTTL).Routes())
	r.Method(http.MethodGet, "/events", NewFeedHandler(service, cfg.CheckOrigin))
	return r
}
