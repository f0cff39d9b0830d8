package synckit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/quotesync/logging"
	"github.com/c0deZ3R0/quotesync/quote"
	"github.com/c0deZ3R0/quotesync/storage"
	"github.com/c0deZ3R0/quotesync/storage/memory"
)

// fakeSource returns a configurable snapshot or error.
type fakeSource struct {
	mu       sync.Mutex
	snapshot []quote.Record
	err      error
	calls    int
}

func (f *fakeSource) Fetch(ctx context.Context) ([]quote.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]quote.Record(nil), f.snapshot...), nil
}

func (f *fakeSource) set(snapshot []quote.Record, err error) {
	f.mu.Lock()
	f.snapshot = snapshot
	f.err = err
	f.mu.Unlock()
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// blockingSource signals entered and waits for release before returning.
type blockingSource struct {
	entered  chan struct{}
	release  chan struct{}
	snapshot []quote.Record
}

func newBlockingSource(snapshot []quote.Record) *blockingSource {
	return &blockingSource{
		entered:  make(chan struct{}, 16),
		release:  make(chan struct{}),
		snapshot: snapshot,
	}
}

func (b *blockingSource) Fetch(ctx context.Context) ([]quote.Record, error) {
	b.entered <- struct{}{}
	select {
	case <-b.release:
		return b.snapshot, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// flakyKV fails writes while failSet is true.
type flakyKV struct {
	storage.KV
	mu      sync.Mutex
	failSet bool
	sets    int
}

func (f *flakyKV) Set(ctx context.Context, scope storage.Scope, key string, value []byte) error {
	f.mu.Lock()
	fail := f.failSet
	f.sets++
	f.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return f.KV.Set(ctx, scope, key, value)
}

func (f *flakyKV) setFail(v bool) {
	f.mu.Lock()
	f.failSet = v
	f.mu.Unlock()
}

// recordingNotifier keeps every notification.
type recordingNotifier struct {
	mu   sync.Mutex
	seen []Notification
}

func (r *recordingNotifier) Notify(ctx context.Context, n Notification) {
	r.mu.Lock()
	r.seen = append(r.seen, n)
	r.mu.Unlock()
}

func (r *recordingNotifier) kinds() []NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]NotificationKind, 0, len(r.seen))
	for _, n := range r.seen {
		out = append(out, n.Kind)
	}
	return out
}

// countingMetrics records the calls the engine makes.
type countingMetrics struct {
	NoOpMetricsCollector
	mu          sync.Mutex
	errors      map[string]int
	conflicts   int
	resolutions map[string]int
	skipped     int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{errors: map[string]int{}, resolutions: map[string]int{}}
}

func (c *countingMetrics) RecordSyncErrors(op, errType string) {
	c.mu.Lock()
	c.errors[op+":"+errType]++
	c.mu.Unlock()
}

func (c *countingMetrics) RecordConflicts(n int) {
	c.mu.Lock()
	c.conflicts += n
	c.mu.Unlock()
}

func (c *countingMetrics) RecordResolutions(choice string, n int) {
	c.mu.Lock()
	c.resolutions[choice] += n
	c.mu.Unlock()
}

func (c *countingMetrics) RecordSkipped(string) {
	c.mu.Lock()
	c.skipped++
	c.mu.Unlock()
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func local(id, text, category string) quote.Record {
	return quote.Record{ID: id, Text: text, Category: category, Source: quote.SourceLocal, UpdatedAt: testNow.Add(-time.Hour)}
}

func server(id, text, category string) quote.Record {
	return quote.Record{ID: id, Text: text, Category: category, Source: quote.SourceServer, UpdatedAt: quote.ServerEpoch}
}

type testLib struct {
	*Library
	kv       *flakyKV
	source   Source
	notifier *recordingNotifier
	metrics  *countingMetrics
}

func newTestLibrary(t *testing.T, source Source, seed []quote.Record, opts ...Option) *testLib {
	t.Helper()
	kv := &flakyKV{KV: memory.New()}
	notifier := &recordingNotifier{}
	metrics := newCountingMetrics()

	all := append([]Option{
		WithStore(kv),
		WithSource(source),
		WithLogger(logging.Discard().Logger),
		WithNotifier(notifier),
		WithMetrics(metrics),
		WithClock(func() time.Time { return testNow }),
	}, opts...)
	lib, err := New(all...)
	require.NoError(t, err)

	ctx := context.Background()
	if len(seed) > 0 {
		require.NoError(t, lib.store.Put(ctx, seed...))
	}
	require.NoError(t, lib.Open(ctx))
	t.Cleanup(func() { lib.Close() })
	return &testLib{Library: lib, kv: kv, source: source, notifier: notifier, metrics: metrics}
}

func persisted(t *testing.T, kv storage.KV) []byte {
	t.Helper()
	raw, ok, err := kv.Get(context.Background(), storage.ScopeLocal, storage.KeyQuotes)
	require.NoError(t, err)
	require.True(t, ok)
	return raw
}

func ids(records []quote.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}
