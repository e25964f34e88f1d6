// Package store defines the abstract Store contract every layer in
// symcache — HTTP stores, the union store, and the file caches —
// implements and composes.
package store

import (
	"context"
	"io"
	"time"

	"github.com/aliharirian/symcache/internal/diagnostics"
)

// CacheValidityPolicy governs backoff and TTL behavior for a query.
// UnreachableStatusValidityPeriod is the circuit-breaker window after a
// transport failure. FileResultValidityPeriod is reserved for
// TTL-on-content; the core caches currently enforce it only by never
// re-querying a hit (unbounded TTL by default).
type CacheValidityPolicy struct {
	UnreachableStatusValidityPeriod time.Duration
	FileResultValidityPeriod       time.Duration
}

// DefaultPolicy matches the upstream symbol-server convention: a five
// minute circuit-breaker window and no content TTL.
var DefaultPolicy = CacheValidityPolicy{
	UnreachableStatusValidityPeriod: 5 * time.Minute,
}

// OpenStreamFunc is a deferred, callable producer of a byte stream. It
// must be invoked at most once per caller; the returned ReadCloser is
// owned by the caller, who must Close it. When a SearchResult's Outcome
// is not Success, calling OpenStream yields (nil, nil).
type OpenStreamFunc func(ctx context.Context) (io.ReadCloser, error)

// SearchResult is the outcome of one Find call: an outcome-tagged
// identity, a deferred content stream, and the diagnostics chain that
// produced it.
type SearchResult struct {
	Identity    string
	Diagnostics *diagnostics.Diagnostics
	OpenStream  OpenStreamFunc
}

func emptyStream(context.Context) (io.ReadCloser, error) { return nil, nil }

// Store is the abstract query surface every layer implements.
type Store interface {
	// Name is a human-meaningful identifier: a URL, a cache root path,
	// or "Union".
	Name() string

	// GetFileIdentity is pure and must not perform I/O. It returns ""
	// with ok=false when identity cannot be predicted before a query
	// (the union store always returns ok=false).
	GetFileIdentity(key string) (identity string, ok bool)

	// Find resolves key, respecting ctx cancellation. It returns a
	// SearchResult: transport/protocol failure is encoded as
	// Unreachable, absence as NotFound, presence as Success. The union
	// store is the exception: it returns nil when no upstream succeeds.
	// policy may be the zero value, in which case implementations apply
	// their own default.
	Find(ctx context.Context, key string, policy CacheValidityPolicy) *SearchResult
}

// MakeResult builds a SearchResult whose diagnostics node is tagged with
// storeName and links upstream toward the origin of the data.
func MakeResult(openStream OpenStreamFunc, outcome diagnostics.Outcome, identity, filePath string, queryTime time.Time, upstream *diagnostics.Diagnostics, storeName string) *SearchResult {
	if openStream == nil {
		openStream = emptyStream
	}
	return &SearchResult{
		Identity:    identity,
		Diagnostics: diagnostics.New(outcome, storeName, filePath, queryTime, upstream),
		OpenStream:  openStream,
	}
}

// PolicyOrDefault returns p if it is non-zero, else def.
func PolicyOrDefault(p, def CacheValidityPolicy) CacheValidityPolicy {
	if p.UnreachableStatusValidityPeriod == 0 && p.FileResultValidityPeriod == 0 {
		return def
	}
	return p
}
