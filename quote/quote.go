// Package quote defines the record synchronised between the local store and
// the remote authority.
package quote

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Source records where a Record's current content came from.
type Source string

const (
	SourceLocal  Source = "local"
	SourceServer Source = "server"
)

// ParseSource maps anything other than the literal "server" to SourceLocal.
func ParseSource(s string) Source {
	if s == string(SourceServer) {
		return SourceServer
	}
	return SourceLocal
}

func (s *Source) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = ParseSource(raw)
	return nil
}

// ServerIDPrefix is reserved for identifiers assigned by the remote authority.
const ServerIDPrefix = "srv-"

// ServerEpoch is the fixed UpdatedAt stamped on every remote record so that
// repeated fetches of unchanged data compare equal.
var ServerEpoch = time.Unix(0, 0).UTC()

// Record is an immutable quote. Changes are made by replacing the whole value
// under the same ID.
type Record struct {
	ID        string    `json:"id" validate:"required"`
	Text      string    `json:"text" validate:"required,notblank"`
	Category  string    `json:"category" validate:"required,notblank"`
	Source    Source    `json:"source" validate:"oneof=local server"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Equal compares content only: Text, Category and Source. UpdatedAt is ignored.
func Equal(a, b Record) bool {
	return a.Text == b.Text && a.Category == b.Category && a.Source == b.Source
}

// IsServerID reports whether id belongs to the remote id space.
func IsServerID(id string) bool {
	return strings.HasPrefix(id, ServerIDPrefix)
}

// ServerID builds a remote identifier from the remote's own key.
func ServerID(key string) string {
	return ServerIDPrefix + key
}

// NewID returns a fresh local identifier.
func NewID() string {
	return uuid.NewString()
}

// NewLocal validates text and category and returns a new local Record.
func NewLocal(text, category string, now time.Time) (Record, error) {
	r := Record{
		ID:        NewID(),
		Text:      strings.TrimSpace(text),
		Category:  strings.TrimSpace(category),
		Source:    SourceLocal,
		UpdatedAt: now.UTC(),
	}
	if err := Validate(r); err != nil {
		return Record{}, err
	}
	return r, nil
}

// Touch returns a copy of r with UpdatedAt set to now.
func (r Record) Touch(now time.Time) Record {
	r.UpdatedAt = now.UTC()
	return r
}

// Categories returns the sorted distinct categories of records.
func Categories(records []Record) []string {
	seen := make(map[string]struct{}, len(records))
	out := make([]string, 0)
	for _, r := range records {
		if _, ok := seen[r.Category]; ok {
			continue
		}
		seen[r.Category] = struct{}{}
		out = append(out, r.Category)
	}
	sort.Strings(out)
	return out
}

// Filter returns the records in category. An empty category or "all" matches everything.
func Filter(records []Record, category string) []Record {
	if category == "" || strings.EqualFold(category, "all") {
		return append([]Record(nil), records...)
	}
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Category == category {
			out = append(out, r)
		}
	}
	return out
}
