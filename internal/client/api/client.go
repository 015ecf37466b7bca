// Package api implements the client side of the sync protocol: the delta
// pull, the batch mutation push, and the per-photo upload, all JSON over
// HTTP against a fixed server contract.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fieldops/techsync/internal/client/models"
)

// TokenFunc supplies the bearer token for a request. Returning an empty
// string sends the request unauthenticated.
type TokenFunc func(ctx context.Context) (string, error)

// SyncAPI is the engine's view of the remote server.
type SyncAPI interface {
	// Login exchanges credentials for a bearer token.
	Login(ctx context.Context, email, password string) (string, error)

	// Ping probes server reachability; used by the connectivity watcher.
	Ping(ctx context.Context) error

	// Pull fetches all server-side changes since the given cursor.
	Pull(ctx context.Context, since time.Time) (*PullResponse, error)

	// PushBatch submits queued mutations in order. The response may be a
	// bulk accept or an itemized accept/reject list.
	PushBatch(ctx context.Context, muts []BatchMutation) (*BatchResponse, error)

	// UploadPhoto pushes one blob attachment. The photo's ULID is the
	// idempotency key; resending after a lost acknowledgment is safe.
	UploadPhoto(ctx context.Context, p *models.Photo) error
}

// Error is a non-2xx response from the server.
type Error struct {
	Status int
	Body   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Body)
}

// IsTransient reports whether err is worth retrying with backoff: transport
// failures and 5xx responses are; 4xx rejections are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Status >= http.StatusInternalServerError
	}
	// Anything that never produced an HTTP status (timeout, refused
	// connection, DNS failure) is transient by definition.
	return true
}
