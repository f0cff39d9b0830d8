// Package bulk reads and writes the record collection as a JSON array.
package bulk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	syncErrors "github.com/c0deZ3R0/quotesync/errors"
	"github.com/c0deZ3R0/quotesync/quote"
)

// DefaultCategory is given to imported records that have none.
const DefaultCategory = "Uncategorized"

// MaxImportBytes caps the size of an import payload.
const MaxImportBytes = 8 << 20

const schemaURL = "https://quotesync.local/schema/records.json"

// The schema only pins the shape; text and category rules are enforced by
// quote.Validate after defaults are applied.
const recordsSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "id":        {"type": "string"},
      "text":      {"type": "string"},
      "category":  {"type": "string"},
      "source":    {"type": "string"},
      "updatedAt": {"type": "string"}
    },
    "required": ["text"]
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(recordsSchema))
		if err != nil {
			schemaErr = err
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

type item struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Category  string    `json:"category"`
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Decode parses an import payload. Missing ids are generated, a missing
// category becomes DefaultCategory and the source is local unless the payload
// says "server". Records without updatedAt are stamped with now.
//
// Any payload that is not an array of record-shaped objects yields a
// KindImportFormat error and no records.
func Decode(r io.Reader, now time.Time) ([]quote.Record, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxImportBytes+1))
	if err != nil {
		return nil, syncErrors.NewImportFormatError(fmt.Errorf("read payload: %w", err))
	}
	if len(raw) > MaxImportBytes {
		return nil, syncErrors.NewImportFormatError(fmt.Errorf("payload exceeds %d bytes", MaxImportBytes))
	}

	sch, err := compiledSchema()
	if err != nil {
		return nil, syncErrors.E(syncErrors.OpImport, syncErrors.Component("bulk"), syncErrors.KindInternal, err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, syncErrors.NewImportFormatError(fmt.Errorf("invalid JSON: %w", err))
	}
	if err := sch.Validate(inst); err != nil {
		return nil, syncErrors.NewImportFormatError(err)
	}

	var items []item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, syncErrors.NewImportFormatError(err)
	}

	records := make([]quote.Record, 0, len(items))
	for _, it := range items {
		rec := quote.Record{
			ID:        it.ID,
			Text:      it.Text,
			Category:  it.Category,
			Source:    quote.ParseSource(it.Source),
			UpdatedAt: it.UpdatedAt,
		}
		if strings.TrimSpace(rec.ID) == "" {
			rec.ID = quote.NewID()
		}
		if strings.TrimSpace(rec.Category) == "" {
			rec.Category = DefaultCategory
		}
		if rec.UpdatedAt.IsZero() {
			rec.UpdatedAt = now
		}
		records = append(records, rec)
	}
	return records, nil
}

// Encode writes records as an indented JSON array.
func Encode(w io.Writer, records []quote.Record) error {
	if records == nil {
		records = []quote.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return syncErrors.NewWithComponent(syncErrors.OpExport, "bulk", err)
	}
	return nil
}
