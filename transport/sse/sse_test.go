package sse

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/quotesync/logging"
	"github.com/c0deZ3R0/quotesync/synckit"
)

func TestHubStreamsNotifications(t *testing.T) {
	hub := NewHub(logging.Discard().Logger)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan Event, 4)
	done := make(chan error, 1)
	go func() {
		done <- NewClient(srv.URL, nil).Subscribe(ctx, func(e Event) error {
			events <- e
			return nil
		})
	}()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	hub.Notify(ctx, synckit.Notification{Kind: synckit.NotifySyncCompleted, Message: "Already up to date with server"})
	hub.Notify(ctx, synckit.Notification{Kind: synckit.NotifySyncFailed, Message: "Sync failed", Error: "boom"})

	first := <-events
	assert.Equal(t, uint64(1), first.ID)
	assert.Equal(t, string(synckit.NotifySyncCompleted), first.Name)
	n, err := first.Notification()
	require.NoError(t, err)
	assert.Equal(t, "Already up to date with server", n.Message)

	second := <-events
	assert.Equal(t, uint64(2), second.ID)
	n, err = second.Notification()
	require.NoError(t, err)
	assert.Equal(t, "boom", n.Error)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe did not return after cancellation")
	}
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHubCloseEndsStreams(t *testing.T) {
	hub := NewHub(logging.Discard().Logger)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	done := make(chan error, 1)
	go func() {
		done <- NewClient(srv.URL, nil).Subscribe(context.Background(), func(Event) error { return nil })
	}()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	hub.Close()
	hub.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after Close")
	}

	hub.Notify(context.Background(), synckit.Notification{Kind: synckit.NotifyRecordAdded})
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSlowClientDoesNotBlockNotify(t *testing.T) {
	hub := NewHub(logging.Discard().Logger)
	hub.Buffer = 1
	ch, ok := hub.subscribe()
	require.True(t, ok)

	finished := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Notify(context.Background(), synckit.Notification{Kind: synckit.NotifyRecordAdded})
		}
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked on a full client")
	}
	assert.Len(t, ch, 1)
	hub.unsubscribe(ch)
}

func TestSubscribeErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, nil).Subscribe(context.Background(), func(Event) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")

	stream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("event: x\ndata: {}\n\n"))
	}))
	defer stream.Close()

	stop := errors.New("stop")
	err = NewClient(stream.URL, nil).Subscribe(context.Background(), func(Event) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestSubscribeCancelledBeforeResponse(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := NewClient(srv.URL, nil).Subscribe(ctx, func(Event) error {
		t.Error("handler should not run")
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
