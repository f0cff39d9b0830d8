package synckit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	syncErrors "github.com/c0deZ3R0/quotesync/errors"
)

// Registry holds the conflicts produced by the most recent merge until they
// are resolved. Its lock also serialises merges against resolutions so that
// readers only ever see the state before or after a whole operation.
type Registry struct {
	store    *RecordStore
	clock    func() time.Time
	logger   *slog.Logger
	metrics  MetricsCollector
	notifier Notifier

	mu        sync.Mutex
	conflicts []Conflict
}

func newRegistry(store *RecordStore, clock func() time.Time, logger *slog.Logger, metrics MetricsCollector, notifier Notifier) *Registry {
	return &Registry{
		store:    store,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
		notifier: notifier,
	}
}

// List returns the open conflicts in detection order.
func (r *Registry) List() []Conflict {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Conflict(nil), r.conflicts...)
}

// Len returns the number of open conflicts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conflicts)
}

// Resolve applies choice to the conflict with id and removes it. Unknown ids
// fail with KindNotFound and change nothing.
func (r *Registry) Resolve(ctx context.Context, id string, choice Choice) error {
	if !choice.valid() {
		return syncErrors.E(syncErrors.OpResolve, syncErrors.Component("registry"), syncErrors.KindInvalid, fmt.Errorf("invalid choice %v", choice))
	}

	if err := r.resolve(ctx, id, choice); err != nil {
		if syncErrors.IsKind(err, syncErrors.KindNotFound) {
			r.notifier.Notify(ctx, Notification{
				Kind:    NotifyResolveFailed,
				Message: fmt.Sprintf("No open conflict for %s", id),
				Error:   err.Error(),
			})
		}
		return err
	}

	r.notifier.Notify(ctx, Notification{
		Kind:    NotifyConflictResolved,
		Message: fmt.Sprintf("Conflict %s resolved (%s)", id, choice),
	})
	return nil
}

// resolve does the locked part of Resolve. Notifications go out after the
// lock is released so a Notifier may call back into the registry.
func (r *Registry) resolve(ctx context.Context, id string, choice Choice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, c := range r.conflicts {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return syncErrors.NewNotFoundError(syncErrors.OpResolve, id)
	}

	conflict := r.conflicts[idx]
	if err := r.apply(ctx, []Conflict{conflict}, choice); err != nil {
		return syncErrors.E(syncErrors.OpResolve, syncErrors.Component("registry"), err)
	}

	r.conflicts = append(r.conflicts[:idx:idx], r.conflicts[idx+1:]...)
	r.metrics.RecordResolutions(choice.String(), 1)
	r.logger.Info("Conflict resolved", "id", id, "choice", choice.String(), "remaining", len(r.conflicts))
	return nil
}

// ResolveAll applies choice to every open conflict in one persisted write and
// empties the registry. It returns the number of conflicts resolved.
func (r *Registry) ResolveAll(ctx context.Context, choice Choice) (int, error) {
	if !choice.valid() {
		return 0, syncErrors.E(syncErrors.OpResolveAll, syncErrors.Component("registry"), syncErrors.KindInvalid, fmt.Errorf("invalid choice %v", choice))
	}

	n, err := r.resolveAll(ctx, choice)
	if err != nil || n == 0 {
		return n, err
	}
	r.notifier.Notify(ctx, Notification{
		Kind:    NotifyConflictsResolved,
		Message: fmt.Sprintf("%d conflict(s) resolved (%s)", n, choice),
	})
	return n, nil
}

func (r *Registry) resolveAll(ctx context.Context, choice Choice) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.conflicts)
	if n == 0 {
		return 0, nil
	}
	if err := r.apply(ctx, r.conflicts, choice); err != nil {
		return 0, syncErrors.E(syncErrors.OpResolveAll, syncErrors.Component("registry"), err)
	}

	r.conflicts = nil
	r.metrics.RecordResolutions(choice.String(), n)
	r.logger.Info("All conflicts resolved", "count", n, "choice", choice.String())
	return n, nil
}

// apply writes the chosen side of each conflict to the store. The store is
// persisted once even when nothing changes, so every successful resolution
// leaves the persisted collection in step with memory. Caller holds r.mu.
func (r *Registry) apply(ctx context.Context, conflicts []Conflict, choice Choice) error {
	now := r.clock()
	return r.store.update(ctx, func(next *recordSet) error {
		for _, c := range conflicts {
			if rec, changed := choice.resolution(c, now); changed {
				next.put(rec)
			}
		}
		return nil
	})
}

// replace swaps in the conflicts of a new merge. Caller holds r.mu.
func (r *Registry) replace(conflicts []Conflict) {
	r.conflicts = append([]Conflict(nil), conflicts...)
}
