package filecache

import (
	"path/filepath"

	"github.com/go-logr/logr"

	"github.com/aliharirian/symcache/internal/cacheinfo"
	"github.com/aliharirian/symcache/internal/metrics"
	"github.com/aliharirian/symcache/internal/store"
)

// legacyLayout is a flat <root>/<key> layout with no persisted
// metadata, so every hit loses upstream provenance.
type legacyLayout struct {
	root string
}

func (l *legacyLayout) CacheLookupPath(key string) string {
	return filepath.Join(l.root, filepath.FromSlash(key))
}

func (l *legacyLayout) LookupCacheInfo(key string) (cacheinfo.CacheFileInfo, bool) {
	return cacheinfo.CacheFileInfo{FileIdentity: l.CacheLookupPath(key)}, true
}

func (l *legacyLayout) CreateCacheInfo(key string, _ *store.SearchResult) cacheinfo.CacheFileInfo {
	return cacheinfo.CacheFileInfo{FileIdentity: l.CacheLookupPath(key)}
}

func (l *legacyLayout) AddCacheFileInfo(string, cacheinfo.CacheFileInfo) error { return nil }

func (l *legacyLayout) GetFileIdentity(key string) (string, bool) {
	return l.CacheLookupPath(key), true
}

// NewLegacyFileCache builds a flat-layout FileCacheBase rooted at root,
// delegating misses to upstream. reg may be nil, in which case cache
// hit/miss counters are simply not recorded.
func NewLegacyFileCache(root string, upstream store.Store, log logr.Logger, reg *metrics.Registry) *FileCacheBase {
	return &FileCacheBase{
		RootName: root,
		Upstream: upstream,
		Layout:   &legacyLayout{root: root},
		Log:      log,
		Metrics:  reg,
	}
}
