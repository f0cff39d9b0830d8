package remote

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/c0deZ3R0/quotesync/quote"
)

// ServerCategory is the category given to every record fetched from the
// posts endpoint.
const ServerCategory = "Server"

// PostID accepts both numeric and string identifiers.
type PostID string

func (p *PostID) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*p = PostID(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("post id must be a number or string: %w", err)
	}
	*p = PostID(s)
	return nil
}

func (p PostID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(p), 10, 64); err == nil {
		return json.Marshal(n)
	}
	return json.Marshal(string(p))
}

// Post is the wire shape of the remote posts endpoint.
type Post struct {
	UserID int    `json:"userId,omitempty"`
	ID     PostID `json:"id,omitempty"`
	Title  string `json:"title"`
	Body   string `json:"body,omitempty"`
}

// ToRecord maps a post to a server record.
func (p Post) ToRecord() quote.Record {
	return quote.Record{
		ID:        quote.ServerID(string(p.ID)),
		Text:      p.Title,
		Category:  ServerCategory,
		Source:    quote.SourceServer,
		UpdatedAt: quote.ServerEpoch,
	}
}

// PostFromRecord builds the payload used to publish a record.
func PostFromRecord(r quote.Record) Post {
	return Post{UserID: 1, Title: r.Text, Body: r.Category}
}
