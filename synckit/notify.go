package synckit

import (
	"context"
	"log/slog"
	"time"
)

// NotificationKind names the outcome being reported.
type NotificationKind string

const (
	NotifySyncCompleted     NotificationKind = "sync_completed"
	NotifySyncFailed        NotificationKind = "sync_failed"
	NotifySyncSkipped       NotificationKind = "sync_skipped"
	NotifyConflictResolved  NotificationKind = "conflict_resolved"
	NotifyConflictsResolved NotificationKind = "conflicts_resolved"
	NotifyResolveFailed     NotificationKind = "resolve_failed"
	NotifyRecordAdded       NotificationKind = "record_added"
	NotifyRecordsImported   NotificationKind = "records_imported"
	NotifyAutoSyncChanged   NotificationKind = "autosync_changed"
)

// Notification is a human-readable outcome of an operation.
type Notification struct {
	Kind    NotificationKind `json:"kind"`
	Message string           `json:"message"`
	Time    time.Time        `json:"time"`
	Result  *SyncResult      `json:"result,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// Notifier receives outcomes. Implementations must not block for long; they
// are called on the goroutine that performed the operation, with no library
// lock held, so they may call back into the Library.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// LogNotifier writes notifications to a slog.Logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(ctx context.Context, n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if n.Error != "" {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, n.Message, "kind", n.Kind, "error", n.Error)
}

// fanout delivers each notification to every notifier. A panicking notifier
// is logged and does not affect the others.
type fanout struct {
	notifiers []Notifier
	logger    *slog.Logger
}

func (f *fanout) Notify(ctx context.Context, n Notification) {
	if n.Time.IsZero() {
		n.Time = time.Now().UTC()
	}
	for _, notifier := range f.notifiers {
		func(nt Notifier) {
			defer func() {
				if r := recover(); r != nil {
					f.logger.Error("Notifier panic recovered",
						"panic", r,
						"kind", n.Kind)
				}
			}()
			nt.Notify(ctx, n)
		}(notifier)
	}
}
