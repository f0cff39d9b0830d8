package remote

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syncErrors "github.com/c0deZ3R0/quotesync/errors"
	"github.com/c0deZ3R0/quotesync/logging"
	"github.com/c0deZ3R0/quotesync/quote"
)

func makePosts(n int) []Post {
	posts := make([]Post, 0, n)
	for i := 1; i <= n; i++ {
		posts = append(posts, Post{UserID: 1, ID: PostID(fmt.Sprint(i)), Title: fmt.Sprintf("title %d", i), Body: "body"})
	}
	return posts
}

func testOptions() Options {
	return Options{
		Logger: logging.Discard().Logger,
		Retry:  RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2},
	}
}

func TestFetchMapsFirstTenPosts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/posts", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(makePosts(12))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL+"/", testOptions())
	records, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, DefaultLimit)

	first := records[0]
	assert.Equal(t, "srv-1", first.ID)
	assert.Equal(t, "title 1", first.Text)
	assert.Equal(t, ServerCategory, first.Category)
	assert.Equal(t, quote.SourceServer, first.Source)
	assert.Equal(t, quote.ServerEpoch, first.UpdatedAt)

	again, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, records, again, "repeated fetches compare equal")
}

func TestFetchGzipResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gzip", r.Header.Get("Accept-Encoding"))
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		json.NewEncoder(gz).Encode(makePosts(3))
		gz.Close()
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	records, err := NewHTTPSource(srv.URL, testOptions()).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestFetchRejectsOversizedDecompressedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		posts := makePosts(5)
		posts[0].Title = strings.Repeat("a", 64<<10)
		json.NewEncoder(gz).Encode(posts)
		gz.Close()
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	opts := testOptions()
	opts.MaxDecompressedBytes = 16 << 10
	_, err := NewHTTPSource(srv.URL, opts).Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, syncErrors.IsKind(err, syncErrors.KindFetch))
	assert.ErrorIs(t, err, errResponseTooLarge)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(makePosts(2))
	}))
	defer srv.Close()

	records, err := NewHTTPSource(srv.URL, testOptions()).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewHTTPSource(srv.URL, testOptions()).Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, syncErrors.IsKind(err, syncErrors.KindFetch))
	assert.False(t, syncErrors.IsRetryable(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"a list"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPSource(srv.URL, testOptions()).Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, syncErrors.IsKind(err, syncErrors.KindFetch))
}

func TestFetchRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewHTTPSource(srv.URL, testOptions()).Fetch(ctx)
	require.Error(t, err)
	assert.True(t, syncErrors.IsKind(err, syncErrors.KindFetch))
}

func TestSendPublishesPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var p Post
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		assert.Equal(t, "Stay hungry", p.Title)
		assert.Equal(t, "Motivation", p.Body)
		p.ID = "101"
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(p)
	}))
	defer srv.Close()

	r, err := quote.NewLocal("Stay hungry", "Motivation", time.Now())
	require.NoError(t, err)

	created, err := NewHTTPSource(srv.URL, testOptions()).Send(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, "srv-101", created.ID)
	assert.Equal(t, "Stay hungry", created.Text)
	assert.Equal(t, quote.SourceServer, created.Source)
}

func TestPostIDAcceptsStringsAndNumbers(t *testing.T) {
	var posts []Post
	require.NoError(t, json.Unmarshal([]byte(`[{"id":7,"title":"a"},{"id":"x-1","title":"b"}]`), &posts))
	assert.Equal(t, PostID("7"), posts[0].ID)
	assert.Equal(t, PostID("x-1"), posts[1].ID)

	raw, err := json.Marshal(posts[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"id":7`)
}

func TestStaticAndFileSources(t *testing.T) {
	ctx := context.Background()
	static := NewStaticSource([]quote.Record{{ID: "srv-1"}})
	got, err := static.Fetch(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	static.Replace(nil)
	got, _ = static.Fetch(ctx)
	assert.Empty(t, got)

	path := filepath.Join(t.TempDir(), "posts.json")
	raw, _ := json.Marshal(makePosts(15))
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	records, err := FileSource{Path: path}.Fetch(ctx)
	require.NoError(t, err)
	assert.Len(t, records, DefaultLimit)

	_, err = FileSource{Path: filepath.Join(t.TempDir(), "missing.json")}.Fetch(ctx)
	assert.True(t, syncErrors.IsKind(err, syncErrors.KindFetch))
}

func TestBackoffDelays(t *testing.T) {
	eb := &exponentialBackoff{initialDelay: 10 * time.Millisecond, maxDelay: 50 * time.Millisecond, multiplier: 2}
	assert.Equal(t, 10*time.Millisecond, eb.nextDelay(0))
	assert.Equal(t, 20*time.Millisecond, eb.nextDelay(1))
	assert.Equal(t, 40*time.Millisecond, eb.nextDelay(2))
	assert.Equal(t, 50*time.Millisecond, eb.nextDelay(3))
}
