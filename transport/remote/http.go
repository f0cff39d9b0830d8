// Package remote implements the sources the sync engine fetches snapshots from.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	syncErrors "github.com/c0deZ3R0/quotesync/errors"
	"github.com/c0deZ3R0/quotesync/logging"
	"github.com/c0deZ3R0/quotesync/quote"
)

// DefaultLimit is the number of posts taken from each fetch.
const DefaultLimit = 10

const postsPath = "/posts"

// Options configures an HTTPSource.
type Options struct {
	// Limit caps the snapshot size. Default: DefaultLimit.
	Limit int

	// MaxResponseBytes caps the raw response body. Default: 1MB.
	MaxResponseBytes int64

	// MaxDecompressedBytes caps a gzip response after decompression. Default: 4MB.
	MaxDecompressedBytes int64

	// RequestTimeout applies to the underlying http.Client when one is created.
	// Default: 30s.
	RequestTimeout time.Duration

	Retry RetryConfig

	HTTPClient *http.Client
	Logger     *slog.Logger
}

func (o *Options) setDefaults() {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.MaxResponseBytes <= 0 {
		o.MaxResponseBytes = 1 << 20
	}
	if o.MaxDecompressedBytes <= 0 {
		o.MaxDecompressedBytes = 4 << 20
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = logging.WithComponent(logging.Component("remote")).Logger
	}
	if o.HTTPClient == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		// Decompression is handled by safeResponseReader so both limits apply.
		tr.DisableCompression = true
		o.HTTPClient = &http.Client{Transport: tr, Timeout: o.RequestTimeout}
	}
}

// HTTPSource fetches posts from a JSON endpoint and maps them to server records.
type HTTPSource struct {
	baseURL string
	opts    Options
	logger  *slog.Logger
}

// NewHTTPSource creates a source for baseURL, e.g. "https://jsonplaceholder.typicode.com".
func NewHTTPSource(baseURL string, opts Options) *HTTPSource {
	opts.setDefaults()
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		opts:    opts,
		logger:  opts.Logger,
	}
}

// Fetch returns the first Limit posts as server records. Network errors,
// 5xx and 429 responses are retried according to Options.Retry.
func (s *HTTPSource) Fetch(ctx context.Context) ([]quote.Record, error) {
	var records []quote.Record
	err := withRetry(ctx, s.opts.Retry, s.logger, func() error {
		var err error
		records, err = s.fetchOnce(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *HTTPSource) fetchOnce(ctx context.Context) ([]quote.Record, error) {
	url := s.baseURL + postsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fetchError(fmt.Errorf("failed to create request: %w", err), false)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		s.logger.Debug("Fetch request failed", slog.String("url", url), slog.String("error", err.Error()))
		return nil, fetchError(fmt.Errorf("network error: %w", err), ctx.Err() == nil)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		s.logger.Debug("Fetch returned error status",
			slog.Int("status_code", resp.StatusCode),
			slog.String("url", url))
		return nil, fetchError(fmt.Errorf("server error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body))), retryableStatus(resp.StatusCode))
	}

	reader, cleanup, err := safeResponseReader(resp, s.opts.MaxResponseBytes, s.opts.MaxDecompressedBytes)
	if err != nil {
		return nil, fetchError(err, false)
	}
	defer cleanup()

	var posts []Post
	if err := json.NewDecoder(reader).Decode(&posts); err != nil {
		if errors.Is(err, errResponseTooLarge) {
			return nil, fetchError(fmt.Errorf("response size exceeds limit: %w", err), false)
		}
		return nil, fetchError(fmt.Errorf("failed to decode response: %w", err), false)
	}

	if len(posts) > s.opts.Limit {
		posts = posts[:s.opts.Limit]
	}
	records := make([]quote.Record, 0, len(posts))
	for i, p := range posts {
		if p.ID == "" {
			return nil, fetchError(fmt.Errorf("post %d has no id", i), false)
		}
		records = append(records, p.ToRecord())
	}
	s.logger.Debug("Fetched remote snapshot", slog.Int("records", len(records)))
	return records, nil
}

// Send publishes r as a new post and returns the record the server created.
func (s *HTTPSource) Send(ctx context.Context, r quote.Record) (quote.Record, error) {
	payload, err := json.Marshal(PostFromRecord(r))
	if err != nil {
		return quote.Record{}, syncErrors.NewWithComponent(syncErrors.OpPublish, "remote", fmt.Errorf("failed to marshal post: %w", err))
	}

	url := s.baseURL + postsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return quote.Record{}, syncErrors.NewWithComponent(syncErrors.OpPublish, "remote", fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return quote.Record{}, syncErrors.NewNetworkError(syncErrors.OpPublish, fmt.Errorf("network error: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return quote.Record{}, syncErrors.NewWithComponent(syncErrors.OpPublish, "remote",
			fmt.Errorf("server error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	reader, cleanup, err := safeResponseReader(resp, s.opts.MaxResponseBytes, s.opts.MaxDecompressedBytes)
	if err != nil {
		return quote.Record{}, syncErrors.NewWithComponent(syncErrors.OpPublish, "remote", err)
	}
	defer cleanup()

	var created Post
	if err := json.NewDecoder(reader).Decode(&created); err != nil {
		return quote.Record{}, syncErrors.NewWithComponent(syncErrors.OpPublish, "remote", fmt.Errorf("failed to decode response: %w", err))
	}
	if created.ID == "" {
		return quote.Record{}, syncErrors.NewWithComponent(syncErrors.OpPublish, "remote", errors.New("server response has no id"))
	}
	if created.Title == "" {
		created.Title = r.Text
	}
	return created.ToRecord(), nil
}

func fetchError(err error, retryable bool) error {
	fe := syncErrors.NewFetchError(err)
	fe.Retryable = retryable
	return fe
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
