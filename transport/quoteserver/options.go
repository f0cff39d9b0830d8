package quoteserver

import (
	"log/slog"

	"github.com/c0deZ3R0/quotesync/transport/remote"
)

// Options configures a Server.
type Options struct {
	// MaxRequestSize caps POST bodies. Default: 64KB.
	MaxRequestSize int64

	// CompressionEnabled gzips responses for clients that accept it.
	CompressionEnabled bool

	// CompressionThreshold is the minimum response size to compress. Default: 1KB.
	CompressionThreshold int64

	// Seed is the initial post list. Default: SeedPosts().
	Seed []remote.Post

	Logger *slog.Logger
}

// Option is a function that configures Options
type Option func(*Options)

// WithMaxRequestSize sets the maximum allowed size of incoming request bodies
func WithMaxRequestSize(size int64) Option {
	return func(o *Options) { o.MaxRequestSize = size }
}

// WithCompression enables or disables response compression
func WithCompression(enabled bool) Option {
	return func(o *Options) { o.CompressionEnabled = enabled }
}

// WithCompressionThreshold sets the minimum size for response compression
func WithCompressionThreshold(size int64) Option {
	return func(o *Options) { o.CompressionThreshold = size }
}

// WithSeed replaces the initial posts.
func WithSeed(posts []remote.Post) Option {
	return func(o *Options) { o.Seed = append([]remote.Post(nil), posts...) }
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

func defaultOptions() Options {
	return Options{
		MaxRequestSize:       64 << 10,
		CompressionEnabled:   true,
		CompressionThreshold: 1 << 10,
	}
}
