// Package synckit reconciles a locally persisted quote collection with
// snapshots from a remote authority.
//
// A Library owns the RecordStore, the conflict Registry, the merge Engine and
// the Scheduler. Merges apply server content on conflict and record the
// divergence in the Registry, where it can be reverted with KeepLocal.
package synckit

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	syncErrors "github.com/c0deZ3R0/quotesync/errors"
	"github.com/c0deZ3R0/quotesync/quote"
	"github.com/c0deZ3R0/quotesync/storage"
)

// Library is the explicit context object that owns all sync state.
type Library struct {
	kv        storage.KV
	source    Source
	store     *RecordStore
	registry  *Registry
	engine    *Engine
	scheduler *Scheduler
	settings  settings
	logger    *slog.Logger
	notifier  Notifier
	clock     func() time.Time

	syncInterval time.Duration
	closed       atomic.Bool
}

func (l *Library) closedErr(op syncErrors.Operation) error {
	if l.closed.Load() {
		return syncErrors.E(op, syncErrors.Component("library"), syncErrors.KindClosed, fmt.Errorf("library is closed"))
	}
	return nil
}

// Open loads the persisted collection and resumes auto sync when the stored
// flag is set and a sync interval is configured.
func (l *Library) Open(ctx context.Context) error {
	if err := l.closedErr(syncErrors.OpLoad); err != nil {
		return err
	}
	if err := l.store.Load(ctx); err != nil {
		return err
	}
	enabled, err := l.settings.autoSync(ctx)
	if err != nil {
		return err
	}
	l.logger.Info("Library opened", "records", l.store.Len(), "auto_sync", enabled)
	if enabled && l.syncInterval > 0 {
		return l.scheduler.Start(l.syncInterval)
	}
	return nil
}

// Store exposes the record store for read access.
func (l *Library) Store() *RecordStore { return l.store }

// Registry exposes the conflict registry.
func (l *Library) Registry() *Registry { return l.registry }

// Scheduler exposes the sync scheduler.
func (l *Library) Scheduler() *Scheduler { return l.scheduler }

// Add validates and stores a new local record.
func (l *Library) Add(ctx context.Context, text, category string) (quote.Record, error) {
	if err := l.closedErr(syncErrors.OpAdd); err != nil {
		return quote.Record{}, err
	}
	r, err := quote.NewLocal(text, category, l.clock())
	if err != nil {
		return quote.Record{}, err
	}
	if err := l.store.Put(ctx, r); err != nil {
		return quote.Record{}, syncErrors.E(syncErrors.OpAdd, syncErrors.Component("library"), err)
	}
	l.notifier.Notify(ctx, Notification{
		Kind:    NotifyRecordAdded,
		Message: fmt.Sprintf("Quote added to %s", r.Category),
	})
	return r, nil
}

// Records returns every record in store order.
func (l *Library) Records() []quote.Record { return l.store.All() }

// Categories returns the sorted distinct categories in the store.
func (l *Library) Categories() []string { return quote.Categories(l.store.All()) }

// ByCategory returns the records in category; "" and "all" match everything.
func (l *Library) ByCategory(category string) []quote.Record {
	return quote.Filter(l.store.All(), category)
}

// Random picks a record from category and remembers it as the last viewed
// record for this session.
func (l *Library) Random(ctx context.Context, category string) (quote.Record, error) {
	candidates := l.ByCategory(category)
	if len(candidates) == 0 {
		return quote.Record{}, syncErrors.E(syncErrors.Op("random"), syncErrors.Component("library"), syncErrors.KindNotFound,
			fmt.Errorf("no quotes in category %q", category))
	}
	r := candidates[rand.IntN(len(candidates))]
	if err := l.settings.setLastViewed(ctx, r); err != nil {
		return quote.Record{}, err
	}
	return r, nil
}

// LastViewed returns the record most recently returned by Random in this
// session. An entry whose record is no longer in the store is cleared.
func (l *Library) LastViewed(ctx context.Context) (quote.Record, bool, error) {
	r, ok, err := l.settings.lastViewed(ctx)
	if err != nil || !ok {
		return r, ok, err
	}
	if _, exists := l.store.Get(r.ID); !exists {
		return quote.Record{}, false, l.settings.clearLastViewed(ctx)
	}
	return r, true, nil
}

// Synchronize runs a merge through the scheduler's guard.
func (l *Library) Synchronize(ctx context.Context) (*SyncResult, error) {
	if err := l.closedErr(syncErrors.OpSync); err != nil {
		return nil, err
	}
	return l.scheduler.TriggerNow(ctx)
}

// Conflicts lists the open conflicts.
func (l *Library) Conflicts() []Conflict { return l.registry.List() }

func (l *Library) Resolve(ctx context.Context, id string, choice Choice) error {
	if err := l.closedErr(syncErrors.OpResolve); err != nil {
		return err
	}
	return l.registry.Resolve(ctx, id, choice)
}

func (l *Library) ResolveAll(ctx context.Context, choice Choice) (int, error) {
	if err := l.closedErr(syncErrors.OpResolveAll); err != nil {
		return 0, err
	}
	return l.registry.ResolveAll(ctx, choice)
}

// AutoSync reports the persisted auto sync flag.
func (l *Library) AutoSync(ctx context.Context) (bool, error) {
	return l.settings.autoSync(ctx)
}

// SetAutoSync persists the flag and starts or stops the scheduler. A zero
// interval falls back to the configured sync interval; a negative one is
// rejected with KindInvalid.
func (l *Library) SetAutoSync(ctx context.Context, enabled bool, interval time.Duration) error {
	if err := l.closedErr(syncErrors.OpSchedule); err != nil {
		return err
	}
	if interval < 0 {
		return syncErrors.E(syncErrors.OpSchedule, syncErrors.Component("library"), syncErrors.KindInvalid,
			fmt.Errorf("auto sync interval must be positive, got %s", interval))
	}
	if interval == 0 {
		interval = l.syncInterval
	}
	if enabled && interval <= 0 {
		return syncErrors.E(syncErrors.OpSchedule, syncErrors.Component("library"), syncErrors.KindInvalid,
			fmt.Errorf("auto sync needs a positive interval"))
	}
	if err := l.settings.setAutoSync(ctx, enabled); err != nil {
		return err
	}

	msg := "Auto sync disabled"
	if enabled {
		if err := l.scheduler.Start(interval); err != nil {
			return err
		}
		msg = fmt.Sprintf("Auto sync enabled every %s", interval)
	} else {
		l.scheduler.Stop()
	}
	l.notifier.Notify(ctx, Notification{Kind: NotifyAutoSyncChanged, Message: msg})
	return nil
}

// Import replaces or appends records by id in one persisted write. Every
// record must be valid; otherwise nothing is stored.
func (l *Library) Import(ctx context.Context, records []quote.Record) (int, error) {
	if err := l.closedErr(syncErrors.OpImport); err != nil {
		return 0, err
	}
	for _, r := range records {
		if err := quote.Validate(r); err != nil {
			return 0, syncErrors.E(syncErrors.OpImport, syncErrors.Component("library"), err)
		}
	}
	if err := l.store.Put(ctx, records...); err != nil {
		return 0, syncErrors.E(syncErrors.OpImport, syncErrors.Component("library"), err)
	}
	l.notifier.Notify(ctx, Notification{
		Kind:    NotifyRecordsImported,
		Message: fmt.Sprintf("Quotes imported successfully (%d)", len(records)),
	})
	return len(records), nil
}

// Export returns a copy of the collection for serialisation.
func (l *Library) Export() []quote.Record { return l.store.All() }

// Publish sends a local record to the remote authority when the source
// accepts writes.
func (l *Library) Publish(ctx context.Context, r quote.Record) (quote.Record, error) {
	if err := l.closedErr(syncErrors.OpPublish); err != nil {
		return quote.Record{}, err
	}
	pub, ok := l.source.(Publisher)
	if !ok {
		return quote.Record{}, syncErrors.E(syncErrors.OpPublish, syncErrors.Component("library"), syncErrors.KindInvalid,
			fmt.Errorf("source %T does not accept new records", l.source))
	}
	sent, err := pub.Send(ctx, r)
	if err != nil {
		l.logger.Warn("Publish failed", "id", r.ID, "error", err)
		return quote.Record{}, err
	}
	l.logger.Info("Quote published", "id", r.ID, "server_id", sent.ID)
	return sent, nil
}

// Close stops the scheduler and closes the key-value store.
func (l *Library) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	if err := l.scheduler.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := l.kv.Close(); err != nil {
		l.logger.Error("Error closing store", "error", err)
		errs = append(errs, syncErrors.NewWithComponent(syncErrors.OpClose, "store", err))
	}
	if len(errs) > 0 {
		return syncErrors.New(syncErrors.OpClose, fmt.Errorf("close errors: %v", errs))
	}
	l.logger.Info("Library closed")
	return nil
}
