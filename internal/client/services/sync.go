package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/fieldops/techsync/internal/client/api"
	"github.com/fieldops/techsync/internal/client/models"
	"github.com/fieldops/techsync/internal/client/repositories/entities"
	"github.com/fieldops/techsync/internal/client/repositories/metadata"
	"github.com/fieldops/techsync/internal/client/repositories/mutations"
	"github.com/fieldops/techsync/internal/client/repositories/photos"
	"github.com/fieldops/techsync/internal/common"
	"github.com/fieldops/techsync/internal/dbx"
	"github.com/fieldops/techsync/internal/logging"
	"github.com/sethvargo/go-retry"
)

// EngineOptions tune a sync engine. Zero values fall back to defaults.
type EngineOptions struct {
	BatchSize   int           // mutations per push batch
	MaxAttempts int           // transient failures before a mutation is parked
	RetryBase   time.Duration // first backoff step for a failed HTTP call
	MaxRetries  uint64        // backoff attempts within one cycle
}

func (o *EngineOptions) withDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.RetryBase <= 0 {
		o.RetryBase = 500 * time.Millisecond
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
}

// CycleResult summarizes one sync cycle for the UI.
type CycleResult struct {
	Pushed   int
	Pulled   int
	Rejected int
	Errors   []string
}

// Engine runs the pull/push cycle and the reconciliation policy. At most one
// cycle is in flight at a time; a second caller gets ErrSyncInProgress and
// the scheduler coalesces the trigger instead.
type Engine struct {
	db    *sql.DB
	api   api.SyncAPI
	store *Store
	log   logging.Logger
	opts  EngineOptions

	mu      sync.Mutex
	running bool
}

// NewEngine builds a sync engine over the store's database.
func NewEngine(db *sql.DB, apiClient api.SyncAPI, store *Store, log logging.Logger, opts EngineOptions) *Engine {
	opts.withDefaults()
	return &Engine{db: db, api: apiClient, store: store, log: log.With("component", "sync"), opts: opts}
}

// RunCycle executes one full synchronization: push pending mutations first
// when there are any (so the pull cannot overwrite what they are about to
// change), then upload photo blobs, then pull the server delta.
func (e *Engine) RunCycle(ctx context.Context) (*CycleResult, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, common.ErrSyncInProgress
	}
	e.running = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	res := &CycleResult{}
	start := time.Now()

	pending, err := mutations.NewSQLiteRepository(e.db).PendingCount(ctx)
	if err != nil {
		return nil, err
	}

	if pending > 0 {
		if err := e.push(ctx, res); err != nil {
			// Transient push failure after retries: yield the cycle, the
			// queue is untouched and the next trigger re-sends.
			res.Errors = append(res.Errors, err.Error())
		}
	}
	if err := e.pushPhotos(ctx, res); err != nil {
		res.Errors = append(res.Errors, err.Error())
	}
	if err := e.pull(ctx, res); err != nil {
		res.Errors = append(res.Errors, err.Error())
	}

	e.log.Info(ctx, "sync cycle finished",
		"pushed", res.Pushed, "pulled", res.Pulled, "rejected", res.Rejected,
		"errors", len(res.Errors), "elapsed", time.Since(start).String())
	return res, nil
}

// push drains the mutation queue in FIFO windows until it is empty or a
// transient failure yields the cycle.
func (e *Engine) push(ctx context.Context, res *CycleResult) error {
	mutRepo := mutations.NewSQLiteRepository(e.db)

	for {
		batch, err := mutRepo.PeekBatch(ctx, e.opts.BatchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		wire := make([]api.BatchMutation, len(batch))
		for i, m := range batch {
			wire[i] = api.BatchMutation{MutationID: m.ID, Type: string(m.Kind), Data: m.Payload}
		}

		var resp *api.BatchResponse
		err = e.withRetry(ctx, func(ctx context.Context) error {
			var callErr error
			resp, callErr = e.api.PushBatch(ctx, wire)
			return callErr
		})
		if err != nil {
			// Transient failure after retries: the queue stays untouched
			// and the next trigger re-sends the same window, same ids.
			if api.IsTransient(err) {
				return fmt.Errorf("push yielded: %w", err)
			}
			return err
		}

		if err := e.settleBatch(ctx, batch, resp, res); err != nil {
			return err
		}
		if len(batch) < e.opts.BatchSize {
			return nil
		}
	}
}

// settleBatch applies a batch response atomically: acknowledge exactly what
// the server confirmed, park what it rejected, and flip entity synced flags
// for entities whose queues drained.
func (e *Engine) settleBatch(ctx context.Context, batch []*models.Mutation, resp *api.BatchResponse, res *CycleResult) error {
	rejectedByID := make(map[string]api.BatchIssue)
	for _, issue := range resp.Rejected() {
		if issue.MutationID != "" {
			rejectedByID[issue.MutationID] = issue
			continue
		}
		// Older servers itemize by (type, entity id) only.
		for _, m := range batch {
			if string(m.Kind) == issue.Type && m.EntityID == issue.ID {
				rejectedByID[m.ID] = issue
				break
			}
		}
	}

	err := dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		mutRepo := mutations.NewSQLiteRepository(tx)
		entRepo := entities.NewSQLiteRepository(tx)

		var accepted []string
		type entityKey struct {
			collection models.Collection
			id         string
		}
		touched := make(map[entityKey]struct{})

		for _, m := range batch {
			if issue, rejected := rejectedByID[m.ID]; rejected {
				msg := issue.Message
				if msg == "" {
					msg = "rejected by server"
				}
				if err := mutRepo.Reject(ctx, m.ID, msg); err != nil {
					return err
				}
				res.Rejected++
				continue
			}
			accepted = append(accepted, m.ID)
			touched[entityKey{m.Collection, m.EntityID}] = struct{}{}
		}

		if err := mutRepo.Acknowledge(ctx, accepted); err != nil {
			return err
		}
		res.Pushed += len(accepted)

		for key := range touched {
			if key.collection == models.CollectionPhotos {
				continue
			}
			remaining, err := mutRepo.PendingFor(ctx, key.collection, key.id)
			if err != nil {
				return err
			}
			if len(remaining) == 0 {
				if err := entRepo.MarkSynced(ctx, key.collection, key.id, true); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.store.notify(Event{})
	return nil
}

// pushPhotos uploads unsynced blobs one by one; each upload is its own
// single-mutation push with the photo ULID as the idempotency key.
func (e *Engine) pushPhotos(ctx context.Context, res *CycleResult) error {
	photoRepo := photos.NewSQLiteRepository(e.db)
	unsynced, err := photoRepo.ListUnsynced(ctx)
	if err != nil {
		return err
	}

	mutRepo := mutations.NewSQLiteRepository(e.db)
	for _, p := range unsynced {
		p := p
		pend, err := mutRepo.PendingFor(ctx, models.CollectionPhotos, p.ID)
		if err != nil {
			return err
		}
		if len(pend) == 0 {
			// Parked by a rejection; the upload waits for the user's call.
			continue
		}

		err = e.withRetry(ctx, func(ctx context.Context) error {
			return e.api.UploadPhoto(ctx, p)
		})
		if err != nil {
			for _, m := range pend {
				var merr error
				if api.IsTransient(err) {
					merr = mutRepo.MarkFailed(ctx, m.ID, err.Error(), e.opts.MaxAttempts)
				} else {
					merr = mutRepo.Reject(ctx, m.ID, err.Error())
					res.Rejected++
				}
				if merr != nil {
					return merr
				}
			}
			if api.IsTransient(err) {
				return fmt.Errorf("photo upload yielded: %w", err)
			}
			continue
		}

		err = dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			if err := photos.NewSQLiteRepository(tx).MarkSynced(ctx, p.ID); err != nil {
				return err
			}
			mutRepo := mutations.NewSQLiteRepository(tx)
			pend, err := mutRepo.PendingFor(ctx, models.CollectionPhotos, p.ID)
			if err != nil {
				return err
			}
			ids := make([]string, len(pend))
			for i, m := range pend {
				ids[i] = m.ID
			}
			return mutRepo.Acknowledge(ctx, ids)
		})
		if err != nil {
			return err
		}
		res.Pushed++
		e.store.notify(Event{Collection: models.CollectionPhotos})
	}
	return nil
}

// pull fetches the server delta since the cursor and merges it. The merge
// and the cursor advance share one transaction: a crash mid-merge re-pulls
// the same window instead of skipping records.
func (e *Engine) pull(ctx context.Context, res *CycleResult) error {
	metaRepo := metadata.NewSQLiteRepository(e.db)
	since, err := metaRepo.Cursor(ctx)
	if err != nil {
		return err
	}

	var resp *api.PullResponse
	err = e.withRetry(ctx, func(ctx context.Context) error {
		var callErr error
		resp, callErr = e.api.Pull(ctx, since)
		return callErr
	})
	if err != nil {
		return fmt.Errorf("pull yielded: %w", err)
	}

	byCollection := map[models.Collection][]api.Record{
		models.CollectionWorkOrders:      resp.WorkOrders,
		models.CollectionEquipment:       resp.Equipment,
		models.CollectionChecklists:      resp.Checklists,
		models.CollectionStandardWeights: resp.StandardWeights,
	}

	err = dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		entRepo := entities.NewSQLiteRepository(tx)
		mutRepo := mutations.NewSQLiteRepository(tx)

		for _, collection := range models.Collections {
			for _, rec := range byCollection[collection] {
				if err := e.mergeRecord(ctx, entRepo, mutRepo, collection, rec); err != nil {
					return err
				}
			}
		}

		cursor := resp.UpdatedAt
		if cursor.IsZero() {
			cursor = time.Now().UTC()
		}
		return metadata.NewSQLiteRepository(tx).SetCursor(ctx, cursor)
	})
	if err != nil {
		return err
	}

	res.Pulled += resp.Count()
	if resp.Count() > 0 {
		e.store.notify(Event{})
	}
	return nil
}

// mergeRecord applies one authoritative server record. With no pending local
// mutation the server wins wholesale. With pending mutations, the server
// snapshot becomes the new baseline while the visible payload keeps the
// fields those mutations touched, so optimistic state survives until the
// mutation resolves.
func (e *Engine) mergeRecord(ctx context.Context, entRepo *entities.SQLiteRepository, mutRepo *mutations.SQLiteRepository, collection models.Collection, rec api.Record) error {
	pend, err := mutRepo.PendingFor(ctx, collection, rec.ID)
	if err != nil {
		return err
	}

	entity := &models.Entity{
		Collection:    collection,
		ID:            rec.ID,
		Payload:       rec.Raw,
		ServerPayload: rec.Raw,
		UpdatedAt:     rec.UpdatedAt,
		Synced:        true,
	}

	if len(pend) > 0 {
		overlays := make([]json.RawMessage, len(pend))
		for i, m := range pend {
			overlays[i] = m.Payload
		}
		visible, err := overlayFields(rec.Raw, overlays)
		if err != nil {
			// Unmergeable payloads: keep whatever the user currently sees.
			existing, gerr := entRepo.GetByID(ctx, collection, rec.ID)
			if gerr == nil {
				visible = existing.Payload
			} else {
				visible = rec.Raw
			}
		}
		entity.Payload = visible
		entity.Synced = false
	}

	return entRepo.Put(ctx, entity)
}

// overlayFields merges the mutations' own fields over the server snapshot,
// in queue order. The server snapshot defines the entity's schema: only keys
// it already carries are overlaid, so mutation bookkeeping (timestamps, the
// mutation's own id) never leaks into the visible payload. The id field
// always comes from the server.
func overlayFields(server json.RawMessage, overlays []json.RawMessage) (json.RawMessage, error) {
	var base map[string]any
	if err := json.Unmarshal(server, &base); err != nil {
		return nil, fmt.Errorf("server payload is not an object: %w", err)
	}
	serverID, hasID := base["id"]

	for _, overlay := range overlays {
		var fields map[string]any
		if err := json.Unmarshal(overlay, &fields); err != nil {
			return nil, fmt.Errorf("mutation payload is not an object: %w", err)
		}
		for k, v := range fields {
			if _, ok := base[k]; ok {
				base[k] = v
			}
		}
	}
	if hasID {
		base["id"] = serverID
	}
	return json.Marshal(base)
}

func (e *Engine) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(e.opts.MaxRetries, retry.NewExponential(e.opts.RetryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := op(ctx); err != nil {
			if api.IsTransient(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
}
