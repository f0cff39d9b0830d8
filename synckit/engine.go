package synckit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	syncErrors "github.com/c0deZ3R0/quotesync/errors"
	"github.com/c0deZ3R0/quotesync/quote"
)

// DefaultFetchTimeout bounds a single remote fetch when no timeout is set.
const DefaultFetchTimeout = 30 * time.Second

// Source produces the remote snapshot.
type Source interface {
	Fetch(ctx context.Context) ([]quote.Record, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]quote.Record, error)

func (f SourceFunc) Fetch(ctx context.Context) ([]quote.Record, error) { return f(ctx) }

// Publisher is implemented by sources that accept new local records.
type Publisher interface {
	Send(ctx context.Context, r quote.Record) (quote.Record, error)
}

// SyncResult describes one completed merge pass.
type SyncResult struct {
	NewIDs     []string      `json:"newIds"`
	UpdatedIDs []string      `json:"updatedIds"`
	Conflicts  []Conflict    `json:"conflicts"`
	StartTime  time.Time     `json:"startTime"`
	Duration   time.Duration `json:"duration"`
}

// Engine merges remote snapshots into the RecordStore and refreshes the
// Registry. Callers must not run Synchronize concurrently; the Scheduler
// provides that guarantee.
type Engine struct {
	source       Source
	store        *RecordStore
	registry     *Registry
	fetchTimeout time.Duration
	logger       *slog.Logger
	metrics      MetricsCollector
	notifier     Notifier
}

// Synchronize fetches the snapshot and merges it. A failed fetch or persist
// leaves the store and registry untouched.
func (e *Engine) Synchronize(ctx context.Context) (*SyncResult, error) {
	return e.synchronize(ctx, func(State) {})
}

func (e *Engine) synchronize(ctx context.Context, phase func(State)) (*SyncResult, error) {
	start := time.Now()
	result := &SyncResult{StartTime: start.UTC()}

	phase(StateFetching)
	e.logger.Debug("Fetching remote snapshot")
	snapshot, err := e.fetch(ctx)
	if err != nil {
		phase(StateFailed)
		e.metrics.RecordSyncErrors("fetch", classifyError(err))
		e.metrics.RecordSyncDuration("sync", time.Since(start))
		e.logger.Warn("Fetch failed, store left unchanged", "error", err)
		e.notifier.Notify(ctx, Notification{
			Kind:    NotifySyncFailed,
			Message: "Failed to sync with server",
			Error:   err.Error(),
		})
		return nil, err
	}

	phase(StateMerging)
	outcome, err := e.merge(ctx, snapshot)
	result.Duration = time.Since(start)
	e.metrics.RecordSyncDuration("sync", result.Duration)
	if err != nil {
		phase(StateFailed)
		e.metrics.RecordSyncErrors("merge", classifyError(err))
		e.logger.Error("Merge could not be persisted, store left unchanged", "error", err)
		e.notifier.Notify(ctx, Notification{
			Kind:    NotifySyncFailed,
			Message: "Failed to save synced quotes",
			Error:   err.Error(),
		})
		return nil, err
	}

	result.NewIDs = outcome.NewIDs
	result.UpdatedIDs = outcome.UpdatedIDs
	result.Conflicts = outcome.Conflicts

	for _, id := range outcome.Duplicates {
		e.logger.Warn("Duplicate id in remote snapshot ignored", "id", id)
	}
	e.metrics.RecordSyncRecords(len(result.NewIDs), len(result.UpdatedIDs))
	if len(result.Conflicts) > 0 {
		e.metrics.RecordConflicts(len(result.Conflicts))
	}
	e.logger.Info("Sync completed",
		"new", len(result.NewIDs),
		"updated", len(result.UpdatedIDs),
		"conflicts", len(result.Conflicts),
		"duration", result.Duration)
	e.notifier.Notify(ctx, Notification{
		Kind:    NotifySyncCompleted,
		Message: result.Message(),
		Result:  result,
	})
	return result, nil
}

func (e *Engine) fetch(ctx context.Context) ([]quote.Record, error) {
	fetchCtx, cancel := e.withTimeout(ctx)
	defer cancel()

	snapshot, err := e.source.Fetch(fetchCtx)
	if err != nil {
		var se *syncErrors.SyncError
		if errors.As(err, &se) && se.Kind == syncErrors.KindFetch {
			return nil, err
		}
		return nil, syncErrors.NewFetchError(err)
	}
	return snapshot, nil
}

// merge holds the registry lock across computing, persisting and publishing
// the new state so resolutions never interleave with a merge.
func (e *Engine) merge(ctx context.Context, snapshot []quote.Record) (MergeOutcome, error) {
	e.registry.mu.Lock()
	defer e.registry.mu.Unlock()

	var outcome MergeOutcome
	err := e.store.update(ctx, func(next *recordSet) error {
		outcome = mergeInto(next, snapshot)
		return nil
	})
	if err != nil {
		return MergeOutcome{}, syncErrors.E(syncErrors.OpMerge, syncErrors.Component("engine"), err)
	}
	e.registry.replace(outcome.Conflicts)
	return outcome, nil
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.fetchTimeout > 0 {
		return context.WithTimeout(ctx, e.fetchTimeout)
	}
	return context.WithTimeout(ctx, DefaultFetchTimeout)
}

// Message is the user-facing summary of the pass.
func (r *SyncResult) Message() string {
	if len(r.NewIDs) == 0 && len(r.UpdatedIDs) == 0 {
		return "Already up to date with server"
	}
	msg := fmt.Sprintf("Synced with server: %d new, %d updated", len(r.NewIDs), len(r.UpdatedIDs))
	if n := len(r.Conflicts); n > 0 {
		msg += fmt.Sprintf(", %d conflict(s) resolved with server data", n)
	}
	return msg
}

func classifyError(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "context_canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	if k := syncErrors.KindOf(err); k != syncErrors.KindUnknown {
		return string(k)
	}
	return "generic"
}
