package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/fieldops/techsync/internal/client/api"
	"github.com/fieldops/techsync/internal/client/config"
	"github.com/fieldops/techsync/internal/client/repositories/metadata"
	"github.com/fieldops/techsync/internal/client/services"
	"github.com/fieldops/techsync/internal/common"
	"github.com/fieldops/techsync/internal/logging"
)

// App wires the local database, the sync engine, and the REPL together.
type App struct {
	config    *config.Config
	db        *sql.DB
	store     *services.Store
	engine    *services.Engine
	scheduler *services.Scheduler
	api       api.SyncAPI
	meta      metadata.Repository
	log       logging.Logger
	reader    *bufio.Reader
	loggedIn  bool
}

// NewApp opens the local database and builds the full client stack on top of
// it. The database (and everything queued in it) survives across runs.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	db, err := services.OpenDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	meta := metadata.NewSQLiteRepository(db)
	deviceID, err := meta.DeviceID(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	tokenFn := func(ctx context.Context) (string, error) {
		token, err := meta.Token(ctx)
		if errors.Is(err, common.ErrNotFound) {
			return "", nil
		}
		return token, err
	}
	apiClient := api.NewHTTPClient(cfg.ServerURL, deviceID, tokenFn, cfg.HTTPTimeout)

	store := services.NewStore(db, log)
	engine := services.NewEngine(db, apiClient, store, log, services.EngineOptions{
		BatchSize:   cfg.BatchSize,
		MaxAttempts: cfg.MaxAttempts,
	})
	checker := services.CheckerFunc(func(ctx context.Context) bool {
		return apiClient.Ping(ctx) == nil
	})
	scheduler := services.NewScheduler(engine, checker, log, services.SchedulerOptions{
		ProbeInterval: cfg.OnlineCheckInterval,
		SyncInterval:  cfg.SyncInterval,
	})

	return &App{
		config:    cfg,
		db:        db,
		store:     store,
		engine:    engine,
		scheduler: scheduler,
		api:       apiClient,
		meta:      meta,
		log:       log,
		reader:    bufio.NewReader(os.Stdin),
	}, nil
}

// Run starts the background scheduler and blocks in the REPL until the user
// exits or ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	fmt.Println("Field service console (type 'help' for commands)")

	if token, err := a.meta.Token(ctx); err == nil && token != "" {
		a.loggedIn = true
	} else {
		_ = a.Login(ctx)
	}

	a.scheduler.OnResult(func(res *services.CycleResult) {
		if res.Rejected > 0 {
			fmt.Printf("sync: %d change(s) need attention, run 'pending'\n", res.Rejected)
		}
	})
	go a.scheduler.Run(ctx)

	runREPL(ctx, a, a.getStatus, bufio.NewScanner(os.Stdin))
}

// Close releases the local database.
func (a *App) Close() error {
	return a.db.Close()
}

func (a *App) isLoggedIn() bool {
	return a.loggedIn
}

func (a *App) getStatus() string {
	s := string(a.scheduler.Mode())
	if st, err := a.store.Status(context.Background()); err == nil {
		if st.PendingMutations > 0 {
			s += fmt.Sprintf(", %d pending", st.PendingMutations)
		}
		if st.RejectedCount > 0 {
			s += fmt.Sprintf(", %d need attention", st.RejectedCount)
		}
	}
	return "(" + s + ")"
}
