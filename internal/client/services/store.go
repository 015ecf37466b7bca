// Package services wires the local repositories, the sync protocol client,
// and the scheduler into the offline-first engine the UI talks to.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/fieldops/techsync/internal/client/models"
	"github.com/fieldops/techsync/internal/client/repositories/entities"
	"github.com/fieldops/techsync/internal/client/repositories/metadata"
	"github.com/fieldops/techsync/internal/client/repositories/mutations"
	"github.com/fieldops/techsync/internal/client/repositories/photos"
	"github.com/fieldops/techsync/internal/common"
	"github.com/fieldops/techsync/internal/dbx"
	"github.com/fieldops/techsync/internal/logging"
	"github.com/fieldops/techsync/internal/ulidx"
)

// Event notifies subscribers that records of a collection changed. An empty
// Collection means "anything" (queue counters, photo flags).
type Event struct {
	Collection models.Collection
}

// SyncStatus feeds the UI's badges: a non-blocking "N changes pending" and a
// blocking "M items need attention".
type SyncStatus struct {
	PendingMutations int
	RejectedCount    int
	UnsyncedPhotos   int
	LastPulledAt     time.Time
}

// Store is the UI boundary of the engine. Reads hit only the local SQLite
// database; writes apply optimistically and enqueue the matching mutation in
// the same transaction, so the local view and the queue can never diverge.
type Store struct {
	db  *sql.DB
	log logging.Logger

	mu     sync.Mutex
	nextID int
	subs   map[int]func(Event)
}

// NewStore builds a Store over an initialized local database.
func NewStore(db *sql.DB, log logging.Logger) *Store {
	return &Store{db: db, log: log, subs: make(map[int]func(Event))}
}

// Subscribe registers a listener invoked after every committed change.
// The returned function unsubscribes.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) notify(ev Event) {
	s.mu.Lock()
	listeners := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

// Get is a point lookup in the local cache.
func (s *Store) Get(ctx context.Context, collection models.Collection, id string) (*models.Entity, error) {
	return entities.NewSQLiteRepository(s.db).GetByID(ctx, collection, id)
}

// List returns every cached record of a collection without touching the
// network.
func (s *Store) List(ctx context.Context, collection models.Collection) ([]models.Entity, error) {
	return entities.NewSQLiteRepository(s.db).List(ctx, collection)
}

// Apply performs the optimistic pair: upsert the entity and enqueue the
// mutation atomically. If either fails both roll back.
func (s *Store) Apply(ctx context.Context, e *models.Entity, m *models.Mutation) error {
	if !m.Kind.IsValid() {
		return fmt.Errorf("%w: %q", common.ErrUnknownMutation, m.Kind)
	}
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		e.Synced = false
		if err := entities.NewSQLiteRepository(tx).Put(ctx, e); err != nil {
			return err
		}
		return mutations.NewSQLiteRepository(tx).Enqueue(ctx, m)
	})
	if err != nil {
		return err
	}
	s.notify(Event{Collection: e.Collection})
	return nil
}

// Remove tombstones a record locally and enqueues the delete mutation.
func (s *Store) Remove(ctx context.Context, collection models.Collection, id string, m *models.Mutation) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := entities.NewSQLiteRepository(tx).Remove(ctx, collection, id); err != nil {
			return err
		}
		if m == nil {
			return nil
		}
		return mutations.NewSQLiteRepository(tx).Enqueue(ctx, m)
	})
	if err != nil {
		return err
	}
	s.notify(Event{Collection: collection})
	return nil
}

// ChangeStatus transitions a work order locally and queues the status_change
// mutation. The mutation payload carries only the fields the user touched,
// so a later pull can preserve exactly those over the server snapshot.
func (s *Store) ChangeStatus(ctx context.Context, workOrderID string, newStatus string) (*models.Mutation, error) {
	repo := entities.NewSQLiteRepository(s.db)
	e, err := repo.GetByID(ctx, models.CollectionWorkOrders, workOrderID)
	if err != nil {
		return nil, err
	}

	var fields map[string]any
	if err := json.Unmarshal(e.Payload, &fields); err != nil {
		return nil, fmt.Errorf("malformed work order payload: %w", err)
	}
	fields["status"] = newStatus
	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	mutPayload, err := json.Marshal(map[string]any{
		"id":         jsonID(workOrderID),
		"status":     newStatus,
		"changed_at": now.Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	m := &models.Mutation{
		ID:         ulidx.New(),
		Kind:       models.KindStatusChange,
		Collection: models.CollectionWorkOrders,
		EntityID:   workOrderID,
		Payload:    mutPayload,
		CreatedAt:  now,
		Status:     models.MutationPending,
	}
	e.Payload = payload
	e.UpdatedAt = now
	if err := s.Apply(ctx, e, m); err != nil {
		return nil, err
	}
	return m, nil
}

// AddExpense creates an expense record offline, identified by a ULID until
// the server assigns its own id.
func (s *Store) AddExpense(ctx context.Context, workOrderID string, amount float64, description string) (*models.Entity, error) {
	now := time.Now().UTC()
	id := ulidx.New()
	payload, err := json.Marshal(map[string]any{
		"id":            id,
		"work_order_id": jsonID(workOrderID),
		"amount":        amount,
		"description":   description,
		"created_at":    now.Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	e := &models.Entity{
		Collection: models.CollectionExpenses,
		ID:         id,
		Payload:    payload,
		UpdatedAt:  now,
	}
	m := &models.Mutation{
		ID:         ulidx.New(),
		Kind:       models.KindExpense,
		Collection: models.CollectionExpenses,
		EntityID:   id,
		Payload:    payload,
		CreatedAt:  now,
		Status:     models.MutationPending,
	}
	if err := s.Apply(ctx, e, m); err != nil {
		return nil, err
	}
	return e, nil
}

// AddPhoto stores the blob and queues its upload atomically, so killing the
// app before reconnecting loses nothing.
func (s *Store) AddPhoto(ctx context.Context, workOrderID int64, fileName string, blob []byte) (*models.Photo, error) {
	now := time.Now().UTC()
	p := &models.Photo{
		ID:          ulidx.New(),
		WorkOrderID: workOrderID,
		EntityType:  "work_order",
		FileName:    fileName,
		Blob:        blob,
		CreatedAt:   now,
	}
	mutPayload, err := json.Marshal(map[string]any{
		"photo_id":      p.ID,
		"work_order_id": workOrderID,
		"file_name":     fileName,
	})
	if err != nil {
		return nil, err
	}
	m := &models.Mutation{
		ID:         ulidx.New(),
		Kind:       models.KindPhoto,
		Collection: models.CollectionPhotos,
		EntityID:   p.ID,
		Payload:    mutPayload,
		CreatedAt:  now,
		Status:     models.MutationPending,
	}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := photos.NewSQLiteRepository(tx).Insert(ctx, p); err != nil {
			return err
		}
		return mutations.NewSQLiteRepository(tx).Enqueue(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	s.notify(Event{Collection: models.CollectionPhotos})
	return p, nil
}

// Status returns the counters behind the sync badges.
func (s *Store) Status(ctx context.Context) (*SyncStatus, error) {
	mutRepo := mutations.NewSQLiteRepository(s.db)
	pending, err := mutRepo.PendingCount(ctx)
	if err != nil {
		return nil, err
	}
	rejected, err := mutRepo.RejectedCount(ctx)
	if err != nil {
		return nil, err
	}
	unsyncedPhotos, err := photos.NewSQLiteRepository(s.db).UnsyncedCount(ctx)
	if err != nil {
		return nil, err
	}
	cursor, err := metadata.NewSQLiteRepository(s.db).Cursor(ctx)
	if err != nil {
		return nil, err
	}
	return &SyncStatus{
		PendingMutations: pending,
		RejectedCount:    rejected,
		UnsyncedPhotos:   unsyncedPhotos,
		LastPulledAt:     cursor,
	}, nil
}

// Rejected lists the mutations waiting on a user decision.
func (s *Store) Rejected(ctx context.Context) ([]*models.Mutation, error) {
	return mutations.NewSQLiteRepository(s.db).ListRejected(ctx)
}

// RetryMutation puts a rejected mutation back on the queue (the user chose
// to try again).
func (s *Store) RetryMutation(ctx context.Context, id string) error {
	if err := mutations.NewSQLiteRepository(s.db).Reset(ctx, id); err != nil {
		return err
	}
	s.notify(Event{})
	return nil
}

// DiscardMutation drops a rejected mutation and restores the server baseline
// for its entity, provided no other mutation still touches it.
func (s *Store) DiscardMutation(ctx context.Context, id string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		mutRepo := mutations.NewSQLiteRepository(tx)
		m, err := mutRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := mutRepo.Delete(ctx, id); err != nil {
			return err
		}

		remaining, err := mutRepo.PendingFor(ctx, m.Collection, m.EntityID)
		if err != nil {
			return err
		}
		if len(remaining) > 0 {
			return nil
		}

		entRepo := entities.NewSQLiteRepository(tx)
		e, err := entRepo.GetByID(ctx, m.Collection, m.EntityID)
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if e.ServerPayload != nil {
			e.Payload = e.ServerPayload
			e.Synced = true
			return entRepo.Put(ctx, e)
		}
		// A locally created record with no server baseline disappears with
		// its mutation.
		return entRepo.Remove(ctx, m.Collection, m.EntityID)
	})
	if err != nil {
		return err
	}
	s.notify(Event{})
	return nil
}

// jsonID renders a work order id for a wire payload: server ids are decimal
// integers, locally minted ids stay strings.
func jsonID(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}
