// Package unionstore implements the parallel fan-out across multiple
// upstream stores, first-success-wins, used to compose several symbol
// servers into one logical upstream.
package unionstore

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/aliharirian/symcache/internal/diagnostics"
	"github.com/aliharirian/symcache/internal/store"
)

// UnionStore dispatches Find to every upstream concurrently and returns
// the first result whose outcome is Success, in upstream-enumeration
// order when more than one succeeds. A result that is absent (nil) or
// NotFound does not cancel its peers; only a Success does.
type UnionStore struct {
	Upstreams []store.Store
}

// New builds a UnionStore over upstreams, preserving their order for
// "first success in original order" tie-breaking.
func New(upstreams ...store.Store) *UnionStore {
	return &UnionStore{Upstreams: upstreams}
}

func (u *UnionStore) Name() string { return "Union" }

// GetFileIdentity always returns ("", false): identity is unknowable
// before dispatch, since any upstream might answer.
func (u *UnionStore) GetFileIdentity(string) (string, bool) { return "", false }

// Find dispatches to all upstreams under a shared derived context,
// cancels the rest the moment one succeeds, waits for every dispatched
// task to observe completion, then returns the first non-nil result in
// original upstream order.
func (u *UnionStore) Find(ctx context.Context, key string, policy store.CacheValidityPolicy) *store.SearchResult {
	if len(u.Upstreams) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	cancelCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	// Only a Success outcome counts as a "non-none result" for selection
	// purposes: NotFound/Unreachable upstream results are mapped away so
	// that a fast authoritative miss from one upstream never suppresses
	// a slower hit from another.
	results := make([]*store.SearchResult, len(u.Upstreams))
	for i, up := range u.Upstreams {
		i, up := i, up
		g.Go(func() error {
			r := up.Find(cancelCtx, key, policy)
			if r != nil && r.Diagnostics != nil && r.Diagnostics.Outcome == diagnostics.Success {
				cancel()
				results[i] = r
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r != nil {
			return r
		}
	}
	return nil
}
