package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/fieldops/techsync/internal/server/auth"
)

type contextKey string

const technicianIDKey contextKey = "technician_id"

// bearerAuth validates the Authorization header and stores the technician id
// in the request context.
func (s *Server) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		technicianID, err := auth.GetTechnicianIDFromToken(token, s.secret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), technicianIDKey, technicianID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// technicianID extracts the authenticated technician from the context; the
// auth middleware guarantees it is present on protected routes.
func technicianID(ctx context.Context) int64 {
	id, _ := ctx.Value(technicianIDKey).(int64)
	return id
}
