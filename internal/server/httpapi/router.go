// Package httpapi exposes the sync protocol over HTTP: login, the delta
// pull, the idempotent batch push, and the multipart photo upload.
package httpapi

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fieldops/techsync/internal/logging"
	"github.com/fieldops/techsync/internal/server/models"
	"github.com/fieldops/techsync/internal/server/repositories/photos"
)

// Service is the application surface the handlers dispatch to.
type Service interface {
	Login(ctx context.Context, email, password string) (string, error)
	Pull(ctx context.Context, technicianID int64, since time.Time) (*models.PullPayload, error)
	ApplyBatch(ctx context.Context, technicianID int64, muts []models.BatchMutation) (*models.BatchOutcome, error)
	StorePhoto(ctx context.Context, technicianID int64, p *photos.Photo, contentType string, body io.Reader) error
}

// Server holds the handler dependencies.
type Server struct {
	svc    Service
	secret []byte
	log    logging.Logger
}

func NewServer(svc Service, secret []byte, log logging.Logger) *Server {
	return &Server{svc: svc, secret: secret, log: log.With("component", "http")}
}

// Router assembles the chi router with the public and authenticated routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/tech/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.bearerAuth)
		r.Get("/tech/sync", s.handlePull)
		r.Post("/tech/sync/batch", s.handleBatch)
		r.Post("/tech/sync/photo", s.handlePhoto)
	})

	return r
}
