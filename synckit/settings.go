package synckit

import (
	"context"
	"encoding/json"
	"fmt"

	syncErrors "github.com/c0deZ3R0/quotesync/errors"
	"github.com/c0deZ3R0/quotesync/quote"
	"github.com/c0deZ3R0/quotesync/storage"
)

// settings stores the scalar values that live next to the collection.
type settings struct {
	kv storage.KV
}

func (s settings) autoSync(ctx context.Context) (bool, error) {
	raw, ok, err := s.kv.Get(ctx, storage.ScopeLocal, storage.KeyAutoSync)
	if err != nil {
		return false, syncErrors.NewStorageError(syncErrors.OpLoad, err)
	}
	if !ok {
		return false, nil
	}
	var enabled bool
	if err := json.Unmarshal(raw, &enabled); err != nil {
		return false, syncErrors.NewStorageError(syncErrors.OpLoad, fmt.Errorf("decode %s: %w", storage.KeyAutoSync, err))
	}
	return enabled, nil
}

func (s settings) setAutoSync(ctx context.Context, enabled bool) error {
	raw, _ := json.Marshal(enabled)
	if err := s.kv.Set(ctx, storage.ScopeLocal, storage.KeyAutoSync, raw); err != nil {
		return syncErrors.NewStorageError(syncErrors.OpPersist, err)
	}
	return nil
}

func (s settings) lastViewed(ctx context.Context) (quote.Record, bool, error) {
	raw, ok, err := s.kv.Get(ctx, storage.ScopeSession, storage.KeyLastViewed)
	if err != nil || !ok {
		if err != nil {
			err = syncErrors.NewStorageError(syncErrors.OpLoad, err)
		}
		return quote.Record{}, false, err
	}
	var r quote.Record
	if err := json.Unmarshal(raw, &r); err != nil {
		return quote.Record{}, false, syncErrors.NewStorageError(syncErrors.OpLoad, fmt.Errorf("decode %s: %w", storage.KeyLastViewed, err))
	}
	return r, true, nil
}

func (s settings) clearLastViewed(ctx context.Context) error {
	if err := s.kv.Delete(ctx, storage.ScopeSession, storage.KeyLastViewed); err != nil {
		return syncErrors.NewStorageError(syncErrors.OpPersist, err)
	}
	return nil
}

func (s settings) setLastViewed(ctx context.Context, r quote.Record) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return syncErrors.NewStorageError(syncErrors.OpPersist, err)
	}
	if err := s.kv.Set(ctx, storage.ScopeSession, storage.KeyLastViewed, raw); err != nil {
		return syncErrors.NewStorageError(syncErrors.OpPersist, err)
	}
	return nil
}
