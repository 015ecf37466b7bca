package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fieldops/techsync/internal/client/models"
	"github.com/fieldops/techsync/internal/common"
)

// Sync runs one cycle immediately and prints the outcome. A cycle already in
// flight is not an error from the user's point of view.
func (a *App) Sync(ctx context.Context) error {
	res, err := a.engine.RunCycle(ctx)
	if err != nil {
		if errors.Is(err, common.ErrSyncInProgress) {
			fmt.Println("Sync already running")
			return nil
		}
		return err
	}
	fmt.Printf("Pushed %d, pulled %d, rejected %d\n", res.Pushed, res.Pulled, res.Rejected)
	for _, msg := range res.Errors {
		fmt.Println("  warning:", msg)
	}
	return nil
}

// List prints the cached work orders. Works entirely offline.
func (a *App) List(ctx context.Context) error {
	list, err := a.store.List(ctx, models.CollectionWorkOrders)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No work orders cached yet, try 'sync'")
		return nil
	}
	for _, e := range list {
		var view models.WorkOrderView
		if err := json.Unmarshal(e.Payload, &view); err != nil {
			continue
		}
		marker := " "
		if !e.Synced {
			marker = "*"
		}
		fmt.Printf("%s %-8s %-12s %-12s %s\n", marker, e.ID, view.Number, view.Status, view.CustomerName)
	}
	return nil
}

// Show pretty-prints one cached work order payload.
func (a *App) Show(ctx context.Context, id string) error {
	e, err := a.store.Get(ctx, models.CollectionWorkOrders, id)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, e.Payload, "", "  "); err != nil {
		return err
	}
	fmt.Println(buf.String())
	if !e.Synced {
		fmt.Println("(has local changes not yet confirmed by the server)")
	}
	return nil
}

// Start marks a work order in progress.
func (a *App) Start(ctx context.Context, id string) error {
	return a.changeStatus(ctx, id, models.StatusInProgress)
}

// Complete marks a work order completed.
func (a *App) Complete(ctx context.Context, id string) error {
	return a.changeStatus(ctx, id, models.StatusCompleted)
}

func (a *App) changeStatus(ctx context.Context, id, status string) error {
	if _, err := a.store.ChangeStatus(ctx, id, status); err != nil {
		return err
	}
	fmt.Printf("Work order %s is now %s locally\n", id, status)
	a.scheduler.Kick()
	return nil
}

// Expense records an expense against a work order: expense <id> <amount> <desc>.
func (a *App) Expense(ctx context.Context, args []string) error {
	amount, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("amount %q is not a number", args[1])
	}
	description := ""
	for i, w := range args[2:] {
		if i > 0 {
			description += " "
		}
		description += w
	}
	if _, err := a.store.AddExpense(ctx, args[0], amount, description); err != nil {
		return err
	}
	fmt.Println("Expense recorded")
	a.scheduler.Kick()
	return nil
}

// Photo attaches an image file to a work order: photo <id> <file>.
func (a *App) Photo(ctx context.Context, args []string) error {
	workOrderID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("work order id %q is not a number", args[0])
	}
	blob, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}
	if _, err := a.store.AddPhoto(ctx, workOrderID, filepath.Base(args[1]), blob); err != nil {
		return err
	}
	fmt.Println("Photo queued for upload")
	a.scheduler.Kick()
	return nil
}

// Pending shows what is still queued and what the server refused.
func (a *App) Pending(ctx context.Context) error {
	st, err := a.store.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Queued: %d change(s), %d photo(s)\n", st.PendingMutations, st.UnsyncedPhotos)

	rejected, err := a.store.Rejected(ctx)
	if err != nil {
		return err
	}
	if len(rejected) == 0 {
		return nil
	}
	fmt.Println("Needs attention (retry <mutation> or discard <mutation>):")
	for _, m := range rejected {
		fmt.Printf("  %s  %-16s %s/%s  %s\n", m.ID, m.Kind, m.Collection, m.EntityID, m.LastError)
	}
	return nil
}

// Retry requeues a rejected change.
func (a *App) Retry(ctx context.Context, id string) error {
	if err := a.store.RetryMutation(ctx, id); err != nil {
		return err
	}
	fmt.Println("Change requeued")
	a.scheduler.Kick()
	return nil
}

// Discard drops a rejected change and restores the server's version.
func (a *App) Discard(ctx context.Context, id string) error {
	if err := a.store.DiscardMutation(ctx, id); err != nil {
		return err
	}
	fmt.Println("Change discarded, server version restored")
	return nil
}

// Status prints connectivity and queue counters.
func (a *App) Status(ctx context.Context) error {
	st, err := a.store.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Mode: %s\n", a.scheduler.Mode())
	fmt.Printf("Pending changes: %d\n", st.PendingMutations)
	fmt.Printf("Pending photos:  %d\n", st.UnsyncedPhotos)
	fmt.Printf("Need attention:  %d\n", st.RejectedCount)
	if st.LastPulledAt.Equal(common.EpochCursor) {
		fmt.Println("Last pull: never")
	} else {
		fmt.Printf("Last pull: %s\n", st.LastPulledAt.Local())
	}
	return nil
}
