package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	syncErrors "github.com/c0deZ3R0/quotesync/errors"
	"github.com/c0deZ3R0/quotesync/quote"
)

// StaticSource serves a fixed snapshot. Replace swaps it atomically.
type StaticSource struct {
	mu      sync.RWMutex
	records []quote.Record
}

func NewStaticSource(records []quote.Record) *StaticSource {
	return &StaticSource{records: append([]quote.Record(nil), records...)}
}

func (s *StaticSource) Fetch(ctx context.Context) ([]quote.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, syncErrors.NewFetchError(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]quote.Record(nil), s.records...), nil
}

func (s *StaticSource) Replace(records []quote.Record) {
	s.mu.Lock()
	s.records = append([]quote.Record(nil), records...)
	s.mu.Unlock()
}

// FileSource reads a JSON array of posts from a file on every fetch. It lets
// the CLI run against a snapshot without a server.
type FileSource struct {
	Path  string
	Limit int
}

func (f FileSource) Fetch(ctx context.Context) ([]quote.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, syncErrors.NewFetchError(err)
	}
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, syncErrors.NewFetchError(err)
	}
	var posts []Post
	if err := json.Unmarshal(raw, &posts); err != nil {
		fe := syncErrors.NewFetchError(fmt.Errorf("decode %s: %w", f.Path, err))
		fe.Retryable = false
		return nil, fe
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(posts) > limit {
		posts = posts[:limit]
	}
	records := make([]quote.Record, 0, len(posts))
	for _, p := range posts {
		records = append(records, p.ToRecord())
	}
	return records, nil
}
