// Package server exposes a configured symcache store graph as a plain
// HTTP symbol server: GET /{key} resolves key through the graph and
// streams the result.
package server

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/aliharirian/symcache/internal/diagnostics"
	"github.com/aliharirian/symcache/internal/metrics"
	"github.com/aliharirian/symcache/internal/store"
	"github.com/aliharirian/symcache/internal/symkey"
)

// Server wraps a store.Store as an http.Handler.
type Server struct {
	Store   store.Store
	Log     logr.Logger
	Metrics *metrics.Registry
	// Policy is passed to every Store.Find call. The zero value falls
	// back to each store's own default (store.DefaultPolicy).
	Policy store.CacheValidityPolicy
}

// New builds a Server serving lookups through root with policy applied
// to every query.
func New(root store.Store, log logr.Logger, reg *metrics.Registry, policy store.CacheValidityPolicy) *Server {
	return &Server{Store: root, Log: log, Metrics: reg, Policy: policy}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.NewString()
	log := s.Log.WithValues("requestID", reqID)

	key := strings.TrimPrefix(r.URL.Path, "/")
	if err := symkey.Sanitize(key); err != nil {
		log.V(1).Info("rejected key", "key", key, "err", err.Error())
		http.Error(w, "invalid key", http.StatusBadRequest)
		return
	}

	res := s.Store.Find(r.Context(), key, s.Policy)
	if s.Metrics != nil && res != nil && res.Diagnostics != nil {
		s.Metrics.ObserveOutcome(res.Diagnostics.StoreName, res.Diagnostics.Outcome)
	}

	if res == nil || res.Diagnostics == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	switch res.Diagnostics.Outcome {
	case diagnostics.Success:
		s.serve(w, r, res, log)
	case diagnostics.NotFound:
		http.NotFound(w, r)
	default:
		http.Error(w, "upstream unreachable", http.StatusBadGateway)
	}
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request, res *store.SearchResult, log logr.Logger) {
	rc, err := res.OpenStream(r.Context())
	if err != nil || rc == nil {
		log.Error(err, "open stream failed", "identity", res.Identity)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Symcache-Store", res.Diagnostics.StoreName)
	n, err := io.Copy(w, rc)
	if err != nil {
		log.Error(err, "stream copy failed", "identity", res.Identity, "bytesWritten", strconv.FormatInt(n, 10))
	}
}
