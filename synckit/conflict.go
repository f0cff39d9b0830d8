package synckit

import (
	"fmt"
	"strings"
	"time"

	syncErrors "github.com/c0deZ3R0/quotesync/errors"
	"github.com/c0deZ3R0/quotesync/quote"
)

// Conflict is a record whose local and server copies disagreed during the
// most recent merge. The store already holds Server.
type Conflict struct {
	ID     string       `json:"id"`
	Local  quote.Record `json:"local"`
	Server quote.Record `json:"server"`
}

// Choice selects which side of a Conflict to keep.
type Choice int

const (
	// KeepServer leaves the server value the merge already applied.
	KeepServer Choice = iota
	// KeepLocal restores the pre-merge local value with a fresh UpdatedAt.
	KeepLocal
)

func (c Choice) String() string {
	switch c {
	case KeepServer:
		return "keep_server"
	case KeepLocal:
		return "keep_local"
	default:
		return fmt.Sprintf("choice(%d)", int(c))
	}
}

// ParseChoice accepts "keep_server"/"server" and "keep_local"/"local".
func ParseChoice(s string) (Choice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "keep_server", "keepserver", "server":
		return KeepServer, nil
	case "keep_local", "keeplocal", "local":
		return KeepLocal, nil
	default:
		return 0, syncErrors.E(syncErrors.OpResolve, syncErrors.Component("registry"), syncErrors.KindInvalid,
			fmt.Errorf("unknown resolution choice %q", s))
	}
}

// resolution returns the record the store should hold after applying c to
// conflict, and whether the store changes at all.
func (c Choice) resolution(conflict Conflict, now time.Time) (quote.Record, bool) {
	if c == KeepLocal {
		return conflict.Local.Touch(now), true
	}
	return conflict.Server, false
}

func (c Choice) valid() bool {
	return c == KeepServer || c == KeepLocal
}
