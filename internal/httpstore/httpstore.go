// Package httpstore implements the HTTP symbol-server client (SSQP: a
// plain GET of a key relative to a base URL) and its Microsoft
// compound-query extension.
package httpstore

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/aliharirian/symcache/internal/diagnostics"
	"github.com/aliharirian/symcache/internal/store"
)

// AdditionalRequestsFunc is the hook HttpStore.Find consults after a
// 404. It returns nil when it has nothing to add, in which case the
// base store reports NotFound. Expressed as a function-valued field
// rather than virtual dispatch, per the inheritance-to-interface
// mapping used throughout this package.
type AdditionalRequestsFunc func(ctx context.Context, s *HttpStore, key string, queryTime time.Time) *store.SearchResult

// HttpStore is a single-GET symbol-server client with an
// unreachable-backoff circuit breaker. Name is the base URL, with no
// trailing slash.
type HttpStore struct {
	BaseURL    string
	Client     *http.Client
	Log        logr.Logger
	AdditionalRequests AdditionalRequestsFunc

	mu                 sync.Mutex
	lastUnreachableTime time.Time
	hasUnreachable      bool
}

// New builds an HttpStore with no compound-query extension.
func New(baseURL string, client *http.Client, log logr.Logger) *HttpStore {
	return &HttpStore{BaseURL: baseURL, Client: client, Log: log}
}

func (s *HttpStore) Name() string { return s.BaseURL }

func (s *HttpStore) GetFileIdentity(key string) (string, bool) {
	return s.BaseURL + "/" + key, true
}

func (s *HttpStore) circuitOpen(now time.Time, policy store.CacheValidityPolicy) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasUnreachable {
		return false
	}
	return now.Sub(s.lastUnreachableTime) < policy.UnreachableStatusValidityPeriod
}

// CircuitOpen reports whether this store's circuit breaker is
// currently tripped, using policy's backoff window (store.DefaultPolicy
// when policy is the zero value). Exported so a health check can report
// per-upstream breaker state without issuing a request.
func (s *HttpStore) CircuitOpen(now time.Time, policy store.CacheValidityPolicy) bool {
	return s.circuitOpen(now, store.PolicyOrDefault(policy, store.DefaultPolicy))
}

func (s *HttpStore) markUnreachable(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUnreachableTime = at
	s.hasUnreachable = true
}

// Find runs a circuit breaker check, issues a GET, classifies the
// response as 2xx/404/else, and delegates to AdditionalRequests on 404.
func (s *HttpStore) Find(ctx context.Context, key string, policy store.CacheValidityPolicy) *store.SearchResult {
	policy = store.PolicyOrDefault(policy, store.DefaultPolicy)
	queryTime := time.Now()

	if s.circuitOpen(queryTime, policy) {
		s.Log.V(1).Info("circuit open, skipping request", "store", s.BaseURL, "key", key)
		return store.MakeResult(nil, diagnostics.Unreachable, "", s.BaseURL+"/"+key, queryTime, nil, s.BaseURL)
	}

	identity, _ := s.GetFileIdentity(key)
	url := s.BaseURL + "/" + key

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		s.markUnreachable(queryTime)
		return store.MakeResult(nil, diagnostics.Unreachable, "", url, queryTime, nil, s.BaseURL)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			// Cancellation observed at the transport layer: Unreachable
			// without poisoning the circuit breaker.
			return store.MakeResult(nil, diagnostics.Unreachable, "", url, queryTime, nil, s.BaseURL)
		}
		s.markUnreachable(queryTime)
		return store.MakeResult(nil, diagnostics.Unreachable, "", url, queryTime, nil, s.BaseURL)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body := resp.Body
		return store.MakeResult(func(context.Context) (io.ReadCloser, error) {
			return body, nil
		}, diagnostics.Success, identity, url, queryTime, nil, s.BaseURL)

	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		if s.AdditionalRequests != nil {
			if r := s.AdditionalRequests(ctx, s, key, queryTime); r != nil {
				return r
			}
		}
		return store.MakeResult(nil, diagnostics.NotFound, "", url, queryTime, nil, s.BaseURL)

	default:
		resp.Body.Close()
		s.markUnreachable(queryTime)
		return store.MakeResult(nil, diagnostics.Unreachable, "", url, queryTime, nil, s.BaseURL)
	}
}
