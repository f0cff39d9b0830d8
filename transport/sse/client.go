package sse

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"

	kiterr "github.com/c0deZ3R0/quotesync/errors"
)

// Client reads a notification stream.
type Client struct {
	URL    string
	Client *http.Client
}

// NewClient creates a new SSE client for the stream at url.
func NewClient(url string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		URL:    url,
		Client: httpClient,
	}
}

// Subscribe calls handler for every event until the stream ends, ctx is
// canceled or handler returns an error. Cancellation returns ctx.Err().
func (c *Client) Subscribe(ctx context.Context, handler func(Event) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return kiterr.E(kiterr.Op("sse.Subscribe"), kiterr.Component("transport/sse"), kiterr.KindInvalid, err, "build request")
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return kiterr.E(kiterr.Op("sse.Subscribe"), kiterr.Component("transport/sse"), err, "http request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return kiterr.E(kiterr.Op("sse.Subscribe"), kiterr.Component("transport/sse"),
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)

	var ev Event
	var data [][]byte
	for sc.Scan() {
		line := sc.Bytes()
		switch {
		case len(line) == 0:
			if len(data) > 0 {
				ev.Data = bytes.Join(data, []byte("\n"))
				if err := handler(ev); err != nil {
					return kiterr.E(kiterr.Op("sse.Subscribe"), kiterr.Component("transport/sse"), err, "handler")
				}
			}
			ev, data = Event{}, nil
		case line[0] == ':':
		default:
			field, value, _ := bytes.Cut(line, []byte(":"))
			value = bytes.TrimPrefix(value, []byte(" "))
			switch string(field) {
			case "id":
				ev.ID, _ = strconv.ParseUint(string(value), 10, 64)
			case "event":
				ev.Name = string(value)
			case "data":
				data = append(data, append([]byte(nil), value...))
			}
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := sc.Err(); err != nil {
		return kiterr.E(kiterr.Op("sse.Subscribe"), kiterr.Component("transport/sse"), err, "scan")
	}
	return nil
}
