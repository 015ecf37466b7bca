// Package services implements the server side of the sync protocol: login,
// the delta pull, the idempotent batch apply, and photo storage.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/fieldops/techsync/internal/common"
	"github.com/fieldops/techsync/internal/dbx"
	"github.com/fieldops/techsync/internal/logging"
	"github.com/fieldops/techsync/internal/server/auth"
	"github.com/fieldops/techsync/internal/server/blob"
	sc "github.com/fieldops/techsync/internal/server/config"
	"github.com/fieldops/techsync/internal/server/models"
	"github.com/fieldops/techsync/internal/server/repositories/catalog"
	"github.com/fieldops/techsync/internal/server/repositories/mutations"
	"github.com/fieldops/techsync/internal/server/repositories/photos"
	"github.com/fieldops/techsync/internal/server/repositories/records"
	"github.com/fieldops/techsync/internal/server/repositories/technicians"
	"github.com/fieldops/techsync/internal/server/repositories/workorders"
)

// SyncService applies the sync protocol's semantics over the repositories.
type SyncService struct {
	db     *sql.DB
	blob   blob.Store
	config *sc.Config
	log    logging.Logger
}

func NewSyncService(db *sql.DB, blobStore blob.Store, cfg *sc.Config, log logging.Logger) *SyncService {
	return &SyncService{db: db, blob: blobStore, config: cfg, log: log.With("component", "sync")}
}

// Login exchanges credentials for a bearer token.
func (s *SyncService) Login(ctx context.Context, email, password string) (string, error) {
	tech, err := technicians.NewPostgresRepository(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", common.ErrUnauthorized
		}
		return "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(tech.PasswordHash), []byte(password)) != nil {
		return "", common.ErrUnauthorized
	}

	return auth.GenerateToken(tech.ID, []byte(s.config.SecretKey), s.config.TokenValidityDuration)
}

// Pull returns everything assigned to the technician that changed since the
// client's cursor, plus the server time the client should persist as its
// next cursor.
func (s *SyncService) Pull(ctx context.Context, technicianID int64, since time.Time) (*models.PullPayload, error) {
	// Captured before the reads so records committed mid-pull are seen again
	// on the next cycle rather than skipped.
	now := time.Now().UTC()

	orders, err := workorders.NewPostgresRepository(s.db).ListUpdatedSince(ctx, technicianID, since)
	if err != nil {
		return nil, err
	}

	catalogRepo := catalog.NewPostgresRepository(s.db)
	equipment, err := catalogRepo.ListUpdatedSince(ctx, "equipment", since)
	if err != nil {
		return nil, err
	}
	checklists, err := catalogRepo.ListUpdatedSince(ctx, "checklists", since)
	if err != nil {
		return nil, err
	}
	weights, err := catalogRepo.ListUpdatedSince(ctx, "standard_weights", since)
	if err != nil {
		return nil, err
	}

	return &models.PullPayload{
		WorkOrders:      orders,
		Equipment:       equipment,
		Checklists:      checklists,
		StandardWeights: weights,
		UpdatedAt:       now,
	}, nil
}

// ApplyBatch applies mutations strictly in batch order, each in its own
// transaction together with its ledger entry. Replayed mutation ids are
// acknowledged without side effects; refused mutations are itemized and the
// rest of the batch continues.
func (s *SyncService) ApplyBatch(ctx context.Context, technicianID int64, muts []models.BatchMutation) (*models.BatchOutcome, error) {
	outcome := &models.BatchOutcome{
		Conflicts: []models.BatchIssue{},
		Errors:    []models.BatchIssue{},
	}

	ledger := mutations.NewPostgresRepository(s.db)
	for _, m := range muts {
		done, err := ledger.WasProcessed(ctx, m.MutationID)
		if err != nil {
			return nil, err
		}
		if done {
			// Resend after a lost acknowledgment.
			outcome.Processed++
			continue
		}

		err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			if err := s.applyMutation(ctx, tx, technicianID, m); err != nil {
				return err
			}
			return mutations.NewPostgresRepository(tx).MarkProcessed(ctx, m.MutationID, technicianID, m.Type)
		})
		if err != nil {
			issue := models.BatchIssue{
				MutationID: m.MutationID,
				Type:       m.Type,
				ID:         entityIDOf(m.Data),
				Message:    err.Error(),
			}
			if errors.Is(err, common.ErrConflict) {
				outcome.Conflicts = append(outcome.Conflicts, issue)
				continue
			}
			if errors.Is(err, common.ErrNotFound) || errors.Is(err, common.ErrUnknownMutation) || isValidationError(err) {
				outcome.Errors = append(outcome.Errors, issue)
				continue
			}
			// Infrastructure failure: stop, the client will resend the rest.
			return nil, err
		}
		outcome.Processed++
	}
	return outcome, nil
}

func (s *SyncService) applyMutation(ctx context.Context, tx dbx.DBTX, technicianID int64, m models.BatchMutation) error {
	switch m.Type {
	case "status_change":
		var data struct {
			ID     int64  `json:"id"`
			Status string `json:"status"`
		}
		if err := json.Unmarshal(m.Data, &data); err != nil {
			return errValidation(fmt.Errorf("malformed status_change payload: %w", err))
		}
		switch data.Status {
		case models.StatusPending, models.StatusInProgress, models.StatusCompleted:
		default:
			return errValidation(fmt.Errorf("unknown status %q", data.Status))
		}
		return workorders.NewPostgresRepository(tx).ChangeStatus(ctx, technicianID, data.ID, data.Status)

	case "photo":
		// Blobs travel on their own endpoint; a photo mutation in the JSON
		// batch is a client bug.
		return fmt.Errorf("%w: photo mutations must use the upload endpoint", common.ErrUnknownMutation)

	default:
		return records.NewPostgresRepository(tx).Insert(ctx, m.Type, workOrderIDOf(m.Data), technicianID, m.Data)
	}
}

// StorePhoto uploads the blob and records its metadata. The client-minted
// photo id makes the whole operation idempotent.
func (s *SyncService) StorePhoto(ctx context.Context, technicianID int64, p *photos.Photo, contentType string, body io.Reader) error {
	if p.ID == "" || p.FileName == "" {
		return errValidation(errors.New("photo id and file name are required"))
	}

	photoRepo := photos.NewPostgresRepository(s.db)
	exists, err := photoRepo.Exists(ctx, p.ID)
	if err != nil {
		return err
	}
	if exists {
		// Resend after a lost acknowledgment.
		return nil
	}

	p.TechnicianID = technicianID
	p.StorageKey = blob.StorageKey(p.ID, p.FileName)
	if err := s.blob.Put(ctx, p.StorageKey, contentType, body); err != nil {
		return err
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return photos.NewPostgresRepository(tx).Insert(ctx, p)
	})
}

// validationError marks client mistakes that must 4xx / itemize instead of
// aborting the batch.
type validationError struct{ err error }

func (e *validationError) Error() string { return e.err.Error() }
func (e *validationError) Unwrap() error { return e.err }

func errValidation(err error) error { return &validationError{err: err} }

// IsValidation reports whether err is a client-input problem.
func IsValidation(err error) bool { return isValidationError(err) }

func isValidationError(err error) bool {
	var ve *validationError
	return errors.As(err, &ve)
}

// entityIDOf extracts the record id a mutation targets, for itemized issues.
// Server-assigned ids are numbers, locally minted ones are ULID strings.
func entityIDOf(data json.RawMessage) string {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return ""
	}
	switch v := fields["id"].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	}
	return ""
}

func workOrderIDOf(data json.RawMessage) sql.NullInt64 {
	var fields struct {
		WorkOrderID *int64 `json:"work_order_id"`
	}
	if err := json.Unmarshal(data, &fields); err != nil || fields.WorkOrderID == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *fields.WorkOrderID, Valid: true}
}
