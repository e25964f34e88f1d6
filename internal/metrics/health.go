package metrics

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aliharirian/symcache/internal/httpstore"
	"github.com/aliharirian/symcache/internal/store"
	"github.com/aliharirian/symcache/internal/unionstore"
)

// HealthHandler reports whether the configured cache root is writable
// and whether the store graph is otherwise serviceable.
type HealthHandler struct {
	CacheRoot string
	Store     store.Store
	// Policy governs the circuit-breaker window consulted when checking
	// Store for tripped upstreams. The zero value falls back to each
	// store's own default.
	Policy store.CacheValidityPolicy
}

type healthResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (h *HealthHandler) HealthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := os.MkdirAll(h.CacheRoot, 0o755); err != nil {
			writeHealth(w, http.StatusServiceUnavailable, "down", err.Error())
			return
		}
		probe, err := os.CreateTemp(h.CacheRoot, ".health-*")
		if err != nil {
			writeHealth(w, http.StatusServiceUnavailable, "down", err.Error())
			return
		}
		name := probe.Name()
		probe.Close()
		os.Remove(name)

		if tripped := trippedCircuits(time.Now(), h.Policy, h.Store); len(tripped) > 0 {
			writeHealth(w, http.StatusOK, "degraded", "circuit open: "+strings.Join(tripped, ", "))
			return
		}

		writeHealth(w, http.StatusOK, "up", "")
	}
}

// trippedCircuits walks s (recursing into a union store's upstreams)
// and returns the Name() of every HttpStore whose circuit breaker is
// open as of now.
func trippedCircuits(now time.Time, policy store.CacheValidityPolicy, s store.Store) []string {
	var tripped []string
	switch v := s.(type) {
	case *httpstore.HttpStore:
		if v.CircuitOpen(now, policy) {
			tripped = append(tripped, v.Name())
		}
	case *unionstore.UnionStore:
		for _, up := range v.Upstreams {
			tripped = append(tripped, trippedCircuits(now, policy, up)...)
		}
	}
	return tripped
}

func writeHealth(w http.ResponseWriter, code int, status, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(healthResponse{Status: status, Detail: detail})
}
