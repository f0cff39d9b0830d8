// Package sse streams sync notifications to HTTP clients as server-sent events.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	kiterr "github.com/c0deZ3R0/quotesync/errors"
	"github.com/c0deZ3R0/quotesync/logging"
	"github.com/c0deZ3R0/quotesync/synckit"
)

type frame struct {
	id   uint64
	kind synckit.NotificationKind
	data []byte
}

// Hub fans notifications out to connected stream clients. It implements
// synckit.Notifier, so it can be registered with WithNotifier.
//
// Delivery never blocks the notifying goroutine: a client whose buffer is full
// misses the frame.
type Hub struct {
	Logger    *slog.Logger
	Buffer    int
	Heartbeat time.Duration

	mu     sync.Mutex
	seq    uint64
	subs   map[chan frame]struct{}
	closed bool
}

// NewHub creates a hub with a 16 frame buffer per client and a 15s heartbeat.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = logging.WithComponent(logging.Component("sse")).Logger
	}
	return &Hub{
		Logger:    logger,
		Buffer:    16,
		Heartbeat: 15 * time.Second,
		subs:      make(map[chan frame]struct{}),
	}
}

// Notify implements synckit.Notifier.
func (h *Hub) Notify(ctx context.Context, n synckit.Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		e := kiterr.E(kiterr.Op("sse.Notify"), kiterr.Component("transport/sse"), kiterr.KindInternal, err, "marshal")
		h.Logger.Error("Dropping notification", "error", e)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.seq++
	f := frame{id: h.seq, kind: n.Kind, data: data}
	for ch := range h.subs {
		select {
		case ch <- f:
		default:
			h.Logger.Debug("Slow stream client missed a notification", "kind", n.Kind, "id", f.id)
		}
	}
}

// Clients returns the number of connected stream clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) subscribe() (chan frame, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	buf := h.Buffer
	if buf <= 0 {
		buf = 1
	}
	ch := make(chan frame, buf)
	h.subs[ch] = struct{}{}
	return ch, true
}

func (h *Hub) unsubscribe(ch chan frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// Close disconnects every client. Later notifications are discarded.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

// Handler streams notifications until the client disconnects or the hub closes.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		ch, ok := h.subscribe()
		if !ok {
			http.Error(w, "stream closed", http.StatusServiceUnavailable)
			return
		}
		defer h.unsubscribe(ch)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, ": connected\n\n")
		flusher.Flush()

		heartbeat := h.Heartbeat
		if heartbeat <= 0 {
			heartbeat = 15 * time.Second
		}
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Fprint(w, ": ping\n\n")
				flusher.Flush()
			case f, ok := <-ch:
				if !ok {
					return
				}
				fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", f.id, f.kind, f.data)
				flusher.Flush()
			}
		}
	})
}
