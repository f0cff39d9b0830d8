package synckit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	syncErrors "github.com/c0deZ3R0/quotesync/errors"
	"github.com/c0deZ3R0/quotesync/quote"
	"github.com/c0deZ3R0/quotesync/storage"
)

// recordSet is an ordered id -> Record mapping. Replacing a record keeps its
// position; new records are appended.
type recordSet struct {
	order []string
	byID  map[string]quote.Record
}

func newRecordSet(records []quote.Record) *recordSet {
	s := &recordSet{
		order: make([]string, 0, len(records)),
		byID:  make(map[string]quote.Record, len(records)),
	}
	for _, r := range records {
		s.put(r)
	}
	return s
}

func (s *recordSet) clone() *recordSet {
	c := &recordSet{
		order: append([]string(nil), s.order...),
		byID:  make(map[string]quote.Record, len(s.byID)),
	}
	for id, r := range s.byID {
		c.byID[id] = r
	}
	return c
}

func (s *recordSet) get(id string) (quote.Record, bool) {
	r, ok := s.byID[id]
	return r, ok
}

func (s *recordSet) put(r quote.Record) {
	if _, ok := s.byID[r.ID]; !ok {
		s.order = append(s.order, r.ID)
	}
	s.byID[r.ID] = r
}

func (s *recordSet) records() []quote.Record {
	out := make([]quote.Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// RecordStore is the persisted collection of records keyed by id. Reads see
// the last committed state. Writers are serialised and each write is
// persisted before it becomes visible.
type RecordStore struct {
	kv storage.KV

	writeMu sync.Mutex
	mu      sync.RWMutex
	set     *recordSet
}

// NewRecordStore returns an empty store backed by kv. Call Load to read the
// persisted collection.
func NewRecordStore(kv storage.KV) *RecordStore {
	return &RecordStore{kv: kv, set: newRecordSet(nil)}
}

// Load replaces the in-memory collection with the one persisted under
// storage.KeyQuotes. A missing key yields an empty store.
func (s *RecordStore) Load(ctx context.Context) error {
	raw, ok, err := s.kv.Get(ctx, storage.ScopeLocal, storage.KeyQuotes)
	if err != nil {
		return syncErrors.NewStorageError(syncErrors.OpLoad, err)
	}
	var records []quote.Record
	if ok && len(raw) > 0 {
		if err := json.Unmarshal(raw, &records); err != nil {
			return syncErrors.NewStorageError(syncErrors.OpLoad, fmt.Errorf("decode %s: %w", storage.KeyQuotes, err))
		}
	}
	for i := range records {
		records[i].Source = quote.ParseSource(string(records[i].Source))
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	s.set = newRecordSet(records)
	s.mu.Unlock()
	return nil
}

// All returns the records in store order.
func (s *RecordStore) All() []quote.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set.records()
}

// Get returns the record with id.
func (s *RecordStore) Get(id string) (quote.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set.get(id)
}

func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.set.order)
}

// Put replaces or appends records as a single persisted write.
func (s *RecordStore) Put(ctx context.Context, records ...quote.Record) error {
	return s.update(ctx, func(next *recordSet) error {
		for _, r := range records {
			next.put(r)
		}
		return nil
	})
}

// update runs fn against a copy of the current state, persists the copy and
// then publishes it. If fn or the persist fails nothing changes.
func (s *RecordStore) update(ctx context.Context, fn func(next *recordSet) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	next := s.set.clone()
	s.mu.RUnlock()

	if err := fn(next); err != nil {
		return err
	}
	if err := s.persist(ctx, next); err != nil {
		return err
	}

	s.mu.Lock()
	s.set = next
	s.mu.Unlock()
	return nil
}

func (s *RecordStore) persist(ctx context.Context, set *recordSet) error {
	raw, err := json.Marshal(set.records())
	if err != nil {
		return syncErrors.NewStorageError(syncErrors.OpPersist, err)
	}
	if err := s.kv.Set(ctx, storage.ScopeLocal, storage.KeyQuotes, raw); err != nil {
		return syncErrors.NewStorageError(syncErrors.OpPersist, err)
	}
	return nil
}
