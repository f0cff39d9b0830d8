package synckit

import (
	"github.com/c0deZ3R0/quotesync/quote"
)

// MergeOutcome is the result of merging a snapshot into a set of records.
type MergeOutcome struct {
	// Records is the merged collection: the input order with conflicting
	// records replaced in place and new records appended in snapshot order.
	Records    []quote.Record
	NewIDs     []string
	UpdatedIDs []string
	Conflicts  []Conflict
	// Duplicates lists snapshot ids seen more than once. Only the first
	// occurrence is merged.
	Duplicates []string
}

// Merge applies snapshot to local with the server-wins policy. Records only
// present locally are kept unchanged. The outcome for each id depends only on
// the local and first snapshot record with that id.
func Merge(local, snapshot []quote.Record) MergeOutcome {
	set := newRecordSet(local)
	out := mergeInto(set, snapshot)
	out.Records = set.records()
	return out
}

func mergeInto(set *recordSet, snapshot []quote.Record) MergeOutcome {
	var out MergeOutcome
	seen := make(map[string]struct{}, len(snapshot))

	for _, r := range snapshot {
		if _, dup := seen[r.ID]; dup {
			out.Duplicates = append(out.Duplicates, r.ID)
			continue
		}
		seen[r.ID] = struct{}{}

		l, ok := set.get(r.ID)
		switch {
		case !ok:
			set.put(r)
			out.NewIDs = append(out.NewIDs, r.ID)
		case !quote.Equal(l, r):
			set.put(r)
			out.UpdatedIDs = append(out.UpdatedIDs, r.ID)
			out.Conflicts = append(out.Conflicts, Conflict{ID: r.ID, Local: l, Server: r})
		}
	}
	return out
}
