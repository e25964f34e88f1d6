package filecache

import (
	"os"
	"path/filepath"

	"github.com/go-logr/logr"

	"github.com/aliharirian/symcache/internal/cacheinfo"
	"github.com/aliharirian/symcache/internal/metrics"
	"github.com/aliharirian/symcache/internal/store"
	"github.com/aliharirian/symcache/internal/symkey"
)

const sidecarSuffix = ".cache_info"

// identityLayout partitions the cache root by a short hash of each
// file's identity, so two upstreams answering the same key with
// different files never collide. Sidecars are persisted as the textual
// cacheinfo encoding at <path>.cache_info.
type identityLayout struct {
	root     string
	upstream store.Store
}

func (l *identityLayout) CacheLookupPath(key string) string {
	identity, ok := l.upstream.GetFileIdentity(key)
	dir, file := symkey.Split(key)
	if idDir, ok := symkey.IdentityDirName(identity, ok); ok {
		return filepath.Join(l.root, filepath.FromSlash(dir), idDir, file)
	}
	return filepath.Join(l.root, filepath.FromSlash(key))
}

func (l *identityLayout) sidecarPath(key string) string {
	return l.CacheLookupPath(key) + sidecarSuffix
}

func (l *identityLayout) LookupCacheInfo(key string) (cacheinfo.CacheFileInfo, bool) {
	f, err := os.Open(l.sidecarPath(key))
	if err != nil {
		return cacheinfo.CacheFileInfo{}, false
	}
	defer f.Close()

	info, err := cacheinfo.Parse(f)
	if err != nil {
		return cacheinfo.CacheFileInfo{}, false
	}
	return info, true
}

func (l *identityLayout) CreateCacheInfo(_ string, r *store.SearchResult) cacheinfo.CacheFileInfo {
	info := cacheinfo.CacheFileInfo{FileIdentity: r.Identity}
	for _, d := range r.Diagnostics.Flatten() {
		// UTC() drops the monotonic reading and local zone, so the times
		// served on this miss equal those parsed back from the sidecar on
		// later hits.
		info.UpstreamQueries = append(info.UpstreamQueries, cacheinfo.UpstreamQuery{
			StoreName:     d.StoreName,
			FilePath:      d.FilePath,
			LastQueryTime: d.QueryTime.UTC(),
		})
	}
	return info
}

func (l *identityLayout) AddCacheFileInfo(key string, info cacheinfo.CacheFileInfo) error {
	path := l.sidecarPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(cacheinfo.Encode(info)), 0o644)
}

func (l *identityLayout) GetFileIdentity(key string) (string, bool) {
	if identity, ok := l.upstream.GetFileIdentity(key); ok {
		return identity, true
	}
	return l.CacheLookupPath(key), true
}

// NewIdentityFileCache builds an identity-partitioned FileCacheBase
// rooted at root, delegating misses to upstream. reg may be nil, in
// which case cache hit/miss counters are simply not recorded.
func NewIdentityFileCache(root string, upstream store.Store, log logr.Logger, reg *metrics.Registry) *FileCacheBase {
	return &FileCacheBase{
		RootName: root,
		Upstream: upstream,
		Layout:   &identityLayout{root: root, upstream: upstream},
		Log:      log,
		Metrics:  reg,
	}
}
