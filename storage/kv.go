// Package storage defines the key-value persistence primitive used to save the
// record collection and scalar settings.
package storage

import (
	"context"
	"errors"
)

// Scope separates long-lived values from values that only live for one session.
type Scope string

const (
	// ScopeLocal survives restarts.
	ScopeLocal Scope = "local"
	// ScopeSession is cleared when a new session starts.
	ScopeSession Scope = "session"
)

// Well-known keys.
const (
	KeyQuotes     = "quotes"
	KeyLastViewed = "lastViewedQuote"
	KeyAutoSync   = "autoSync"
)

var (
	ErrStoreClosed  = errors.New("store is closed")
	ErrInvalidScope = errors.New("invalid scope")
)

// KV is a scoped byte-value store. Get reports ok=false for a missing key.
type KV interface {
	Get(ctx context.Context, scope Scope, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, scope Scope, key string, value []byte) error
	Delete(ctx context.Context, scope Scope, key string) error
	Close() error
}

// ValidScope reports whether s is one of the known scopes.
func ValidScope(s Scope) bool {
	return s == ScopeLocal || s == ScopeSession
}
