package filecache

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliharirian/symcache/internal/diagnostics"
	"github.com/aliharirian/symcache/internal/metrics"
	"github.com/aliharirian/symcache/internal/store"
)

func counterTotal(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, c.Write(&pb))
	return pb.GetCounter().GetValue()
}

// mockUpstream serves a single key with fixed bytes, tagged with its
// own store name, mimicking an HttpStore's Find contract.
type mockUpstream struct {
	name string
	key  string
	body []byte
	hits int
}

func (m *mockUpstream) Name() string { return m.name }

func (m *mockUpstream) GetFileIdentity(key string) (string, bool) {
	return m.name + "/" + key, true
}

func (m *mockUpstream) Find(ctx context.Context, key string, policy store.CacheValidityPolicy) *store.SearchResult {
	m.hits++
	if key != m.key {
		return store.MakeResult(nil, diagnostics.NotFound, "", "", time.Now(), nil, m.name)
	}
	identity, _ := m.GetFileIdentity(key)
	return store.MakeResult(func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(m.body)), nil
	}, diagnostics.Success, identity, m.name+"/"+key, time.Now(), nil, m.name)
}

func TestIdentityCacheBasicHitAndMiss(t *testing.T) {
	dir := t.TempDir()
	up := &mockUpstream{name: "Mock1", key: "a/b/c", body: []byte{1, 2, 3}}
	c := NewIdentityFileCache(dir, up, logr.Discard(), nil)

	res := c.Find(context.Background(), "a/b/c", store.CacheValidityPolicy{})
	require.Equal(t, diagnostics.Success, res.Diagnostics.Outcome)
	require.NotNil(t, res.Diagnostics.Upstream)
	assert.Equal(t, "Mock1", res.Diagnostics.Upstream.StoreName)
	assert.Equal(t, "Mock1/a/b/c", res.Diagnostics.Upstream.FilePath)

	rc, err := res.OpenStream(context.Background())
	require.NoError(t, err)
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	assert.Equal(t, []byte{1, 2, 3}, body)
	assert.Equal(t, 1, up.hits)
}

func TestIdentityCacheHitDoesNotReHitUpstream(t *testing.T) {
	dir := t.TempDir()
	up := &mockUpstream{name: "Mock1", key: "a/b/c", body: []byte{1, 2, 3}}
	c := NewIdentityFileCache(dir, up, logr.Discard(), nil)

	first := c.Find(context.Background(), "a/b/c", store.CacheValidityPolicy{})
	second := c.Find(context.Background(), "a/b/c", store.CacheValidityPolicy{})

	require.Equal(t, diagnostics.Success, second.Diagnostics.Outcome)
	assert.Equal(t, 1, up.hits, "second find must be served from disk")
	assert.Equal(t, first.Identity, second.Identity)
	assert.Equal(t, first.Diagnostics.Upstream.QueryTime, second.Diagnostics.Upstream.QueryTime,
		"nested upstream queryTime must be reconstructed unchanged")
	assert.NotEqual(t, first.Diagnostics.QueryTime, second.Diagnostics.QueryTime,
		"outer queryTime must reflect the current wall clock on every call")
}

func TestIdentityPartitionIsolation(t *testing.T) {
	root := t.TempDir()
	up1 := &mockUpstream{name: "Mock1", key: "a/b/c", body: []byte{1, 2, 3}}
	up2 := &mockUpstream{name: "Mock2", key: "a/b/c", body: []byte{4, 5, 6}}
	c1 := NewIdentityFileCache(root, up1, logr.Discard(), nil)
	c2 := NewIdentityFileCache(root, up2, logr.Discard(), nil)

	var firstBytes []byte
	for i, c := range []*FileCacheBase{c1, c2, c1} {
		res := c.Find(context.Background(), "a/b/c", store.CacheValidityPolicy{})
		require.Equal(t, diagnostics.Success, res.Diagnostics.Outcome)
		rc, err := res.OpenStream(context.Background())
		require.NoError(t, err)
		b, _ := io.ReadAll(rc)
		rc.Close()
		if i == 0 {
			firstBytes = b
		}
		switch i {
		case 0, 2:
			assert.Equal(t, []byte{1, 2, 3}, b)
		case 1:
			assert.Equal(t, []byte{4, 5, 6}, b)
		}
	}
	_ = firstBytes
}

func TestLegacyCacheHasNoUpstreamDiagnostics(t *testing.T) {
	dir := t.TempDir()
	up := &mockUpstream{name: "Mock1", key: "a/b/c", body: []byte{9, 9, 9}}
	c := NewLegacyFileCache(dir, up, logr.Discard(), nil)

	res := c.Find(context.Background(), "a/b/c", store.CacheValidityPolicy{})
	require.Equal(t, diagnostics.Success, res.Diagnostics.Outcome)
	assert.Nil(t, res.Diagnostics.Upstream)

	// A legacy hit has no sidecar on disk.
	_, err := os.Stat(filepath.Join(dir, "a", "b", "c.cache_info"))
	assert.True(t, os.IsNotExist(err))
}

func TestLegacyIdentityFallback(t *testing.T) {
	dir := t.TempDir()
	up := &noIdentityUpstream{key: "a/b/c", body: []byte{7, 7, 7}}
	c := NewIdentityFileCache(dir, up, logr.Discard(), nil)

	res := c.Find(context.Background(), "a/b/c", store.CacheValidityPolicy{})
	require.Equal(t, diagnostics.Success, res.Diagnostics.Outcome)

	want := filepath.Join(dir, "a", "b", "c")
	assert.Equal(t, want, res.Diagnostics.FilePath)

	sidecar, err := os.ReadFile(want + sidecarSuffix)
	require.NoError(t, err, "sidecar should still be written and parseable")
	assert.Contains(t, string(sidecar), "File Identity:")
}

type noIdentityUpstream struct {
	key  string
	body []byte
}

func (n *noIdentityUpstream) Name() string                          { return "NoIdentity" }
func (n *noIdentityUpstream) GetFileIdentity(string) (string, bool) { return "", false }
func (n *noIdentityUpstream) Find(ctx context.Context, key string, policy store.CacheValidityPolicy) *store.SearchResult {
	if key != n.key {
		return store.MakeResult(nil, diagnostics.NotFound, "", "", time.Now(), nil, "NoIdentity")
	}
	return store.MakeResult(func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(n.body)), nil
	}, diagnostics.Success, "", "NoIdentity/"+key, time.Now(), nil, "NoIdentity")
}

func TestCacheMissReturnsNotFoundWithUpstreamDiagnostics(t *testing.T) {
	dir := t.TempDir()
	up := &mockUpstream{name: "Mock1", key: "does-not-match", body: nil}
	c := NewIdentityFileCache(dir, up, logr.Discard(), nil)

	res := c.Find(context.Background(), "a/b/c", store.CacheValidityPolicy{})
	assert.Equal(t, diagnostics.NotFound, res.Diagnostics.Outcome)
	require.NotNil(t, res.Diagnostics.Upstream)
	assert.Equal(t, diagnostics.NotFound, res.Diagnostics.Upstream.Outcome)
}

func TestCacheRecordsHitAndMissMetrics(t *testing.T) {
	dir := t.TempDir()
	up := &mockUpstream{name: "Mock1", key: "a/b/c", body: []byte{1, 2, 3}}
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	c := NewIdentityFileCache(dir, up, logr.Discard(), reg)

	c.Find(context.Background(), "a/b/c", store.CacheValidityPolicy{})
	assert.Equal(t, float64(1), counterTotal(t, reg.CacheMisses), "first query delegates upstream: a miss")
	assert.Equal(t, float64(0), counterTotal(t, reg.CacheHits))

	c.Find(context.Background(), "a/b/c", store.CacheValidityPolicy{})
	assert.Equal(t, float64(1), counterTotal(t, reg.CacheMisses), "second query is served from disk: no new miss")
	assert.Equal(t, float64(1), counterTotal(t, reg.CacheHits))
}

func TestConcurrentMissesDeduplicated(t *testing.T) {
	dir := t.TempDir()
	up := &mockUpstream{name: "Mock1", key: "a/b/c", body: []byte{1, 2, 3}}
	c := NewIdentityFileCache(dir, up, logr.Discard(), nil)

	const n = 20
	results := make([]*store.SearchResult, n)
	done := make(chan int, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			results[i] = c.Find(context.Background(), "a/b/c", store.CacheValidityPolicy{})
			done <- i
		}(i)
	}
	for i := 0; i < n; i++ {
		<-done
	}
	for _, r := range results {
		require.Equal(t, diagnostics.Success, r.Diagnostics.Outcome)
	}
	assert.LessOrEqual(t, up.hits, 2, "singleflight should collapse concurrent misses for the same key")
}
