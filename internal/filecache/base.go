// Package filecache implements the read-through disk cache shared by
// the legacy and identity-partitioned layout variants: FileCacheBase
// owns the read-through algorithm, while a Layout supplies the
// layout-specific path and sidecar policy.
package filecache

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-logr/logr"
	"golang.org/x/sync/singleflight"

	"github.com/aliharirian/symcache/internal/cacheinfo"
	"github.com/aliharirian/symcache/internal/diagnostics"
	"github.com/aliharirian/symcache/internal/metrics"
	"github.com/aliharirian/symcache/internal/store"
)

// Layout supplies the four hooks FileCacheBase needs to turn a key into
// an on-disk path and a persisted (or trivial) provenance record.
type Layout interface {
	// CacheLookupPath maps key to the file's location under the cache
	// root.
	CacheLookupPath(key string) string
	// LookupCacheInfo loads the sidecar for key. ok is false when no
	// sidecar exists or it failed to parse; the base then degrades to a
	// legacy-style hit (identity = on-disk path, no upstream chain).
	LookupCacheInfo(key string) (info cacheinfo.CacheFileInfo, ok bool)
	// CreateCacheInfo flattens a freshly fetched upstream result into
	// the sidecar record to persist.
	CreateCacheInfo(key string, r *store.SearchResult) cacheinfo.CacheFileInfo
	// AddCacheFileInfo persists info for key. A no-op for the legacy
	// layout.
	AddCacheFileInfo(key string, info cacheinfo.CacheFileInfo) error
	// GetFileIdentity is the pure, I/O-free identity lookup the Store
	// contract requires.
	GetFileIdentity(key string) (identity string, ok bool)
}

// FileCacheBase is the read-through cache algorithm, parameterized by a
// root directory name (used as the Store name), an upstream Store, and
// a Layout. Concurrent ingestion for the same key is serialized with a
// singleflight.Group so only one download happens per in-flight miss.
type FileCacheBase struct {
	RootName string
	Upstream store.Store
	Layout   Layout
	Log      logr.Logger
	Metrics  *metrics.Registry

	sf singleflight.Group
}

func (c *FileCacheBase) Name() string { return c.RootName }

func (c *FileCacheBase) GetFileIdentity(key string) (string, bool) {
	return c.Layout.GetFileIdentity(key)
}

type sfIngestResult struct {
	info         cacheinfo.CacheFileInfo
	hit          bool
	missUpstream *diagnostics.Diagnostics
}

// Find serves from disk when present; otherwise it delegates upstream,
// ingests on success (sidecar before content, temp-write-then-rename
// for atomicity), and converts upstream non-success into NotFound with
// the upstream diagnostics retained.
func (c *FileCacheBase) Find(ctx context.Context, key string, policy store.CacheValidityPolicy) *store.SearchResult {
	localPath := c.Layout.CacheLookupPath(key)
	queryTime := time.Now()

	if fileExists(localPath) {
		c.Metrics.ObserveCacheHit()
		return c.hitFromDisk(key, localPath, queryTime)
	}
	c.Metrics.ObserveCacheMiss()

	v, _, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check: another caller may have completed ingestion for
		// this key while we were waiting to enter the singleflight
		// section.
		if fileExists(localPath) {
			info, ok := c.Layout.LookupCacheInfo(key)
			if !ok {
				info = cacheinfo.CacheFileInfo{FileIdentity: localPath}
			}
			return sfIngestResult{info: info, hit: true}, nil
		}

		r := c.Upstream.Find(ctx, key, policy)
		if r == nil || r.Diagnostics == nil || r.Diagnostics.Outcome != diagnostics.Success {
			var upstreamDiag *diagnostics.Diagnostics
			if r != nil {
				upstreamDiag = r.Diagnostics
			}
			return sfIngestResult{missUpstream: upstreamDiag}, nil
		}

		info := c.Layout.CreateCacheInfo(key, r)
		if err := c.Layout.AddCacheFileInfo(key, info); err != nil {
			c.Log.Error(err, "write cache sidecar failed", "key", key, "store", c.RootName)
		}
		if err := c.ingestContent(ctx, r, localPath); err != nil {
			c.Log.Error(err, "ingest cache content failed", "key", key, "store", c.RootName)
			return sfIngestResult{missUpstream: r.Diagnostics}, nil
		}
		return sfIngestResult{info: info, hit: true}, nil
	})

	res, _ := v.(sfIngestResult)
	if !res.hit {
		return store.MakeResult(nil, diagnostics.NotFound, localPath, localPath, queryTime, res.missUpstream, c.RootName)
	}
	return c.reconstruct(localPath, queryTime, res.info)
}

func (c *FileCacheBase) hitFromDisk(key, localPath string, queryTime time.Time) *store.SearchResult {
	info, ok := c.Layout.LookupCacheInfo(key)
	if !ok {
		info = cacheinfo.CacheFileInfo{FileIdentity: localPath}
	}
	return c.reconstruct(localPath, queryTime, info)
}

// reconstruct folds info.UpstreamQueries in reverse into a diagnostics
// chain: the last entry becomes the deepest upstream, each earlier
// entry wraps it, then that chain is wrapped with this cache's own
// frame.
func (c *FileCacheBase) reconstruct(localPath string, queryTime time.Time, info cacheinfo.CacheFileInfo) *store.SearchResult {
	var chain *diagnostics.Diagnostics
	for i := len(info.UpstreamQueries) - 1; i >= 0; i-- {
		q := info.UpstreamQueries[i]
		chain = diagnostics.New(diagnostics.Success, q.StoreName, q.FilePath, q.LastQueryTime, chain)
	}
	identity := info.FileIdentity
	if identity == "" {
		identity = localPath
	}
	return store.MakeResult(openFileStream(localPath), diagnostics.Success, identity, localPath, queryTime, chain, c.RootName)
}

// ingestContent spools r's stream to a temp file under the OS temp
// directory, then creates the destination directory and renames the
// temp file into place. Rename is the commit point: no partially
// written content is ever observable at localPath.
func (c *FileCacheBase) ingestContent(ctx context.Context, r *store.SearchResult, localPath string) error {
	rc, err := r.OpenStream(ctx)
	if err != nil {
		return errors.Wrap(err, "filecache: open upstream stream")
	}
	if rc == nil {
		return errors.New("filecache: success result produced a nil stream")
	}
	defer rc.Close()

	tmpFile, err := os.CreateTemp("", "symcache-ingest-*")
	if err != nil {
		return errors.Wrap(err, "filecache: create temp file")
	}
	tmpPath := tmpFile.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmpFile, rc); err != nil {
		tmpFile.Close()
		return errors.Wrap(err, "filecache: spool to temp file")
	}
	if err := tmpFile.Close(); err != nil {
		return errors.Wrap(err, "filecache: close temp file")
	}
	if ctx.Err() != nil {
		return errors.Wrap(ctx.Err(), "filecache: cancelled before commit")
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return errors.Wrap(err, "filecache: create destination directory")
	}
	if err := os.Rename(tmpPath, localPath); err != nil {
		return errors.Wrap(err, "filecache: rename into place")
	}
	committed = true
	return nil
}

func openFileStream(path string) store.OpenStreamFunc {
	return func(context.Context) (io.ReadCloser, error) {
		return os.Open(path)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
