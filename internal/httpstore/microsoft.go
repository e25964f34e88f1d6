package httpstore

import (
	"context"
	"io"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/aliharirian/symcache/internal/cabfile"
	"github.com/aliharirian/symcache/internal/diagnostics"
	"github.com/aliharirian/symcache/internal/store"
)

const userAgent = "symcache/1.0"

// NewMicrosoftStore builds an HttpStore whose AdditionalRequests hook
// runs the two Microsoft compound-query probes in parallel.
func NewMicrosoftStore(baseURL string, client *http.Client, log logr.Logger) *HttpStore {
	s := &HttpStore{BaseURL: baseURL, Client: client, Log: log}
	s.AdditionalRequests = microsoftAdditionalRequests
	return s
}

// microsoftAdditionalRequests runs the redirect-pointer probe and the
// compressed-blob probe concurrently, each under its own context derived
// from ctx. The first probe to return a non-nil result cancels the
// other; the dispatcher waits for both before returning, so a losing
// branch's HTTP connection is never left reading after Find returns.
// The blob probe's context is not derived from the errgroup's (which
// Wait cancels), because a winning blob's body is read later by
// OpenStream.
func microsoftAdditionalRequests(ctx context.Context, s *HttpStore, key string, queryTime time.Time) *store.SearchResult {
	g, gctx := errgroup.WithContext(ctx)
	ptrCtx, cancelPtr := context.WithCancel(gctx)
	defer cancelPtr()
	blobCtx, cancelBlob := context.WithCancel(ctx)

	results := make(chan *store.SearchResult, 2)

	g.Go(func() error {
		r := pointerProbe(ptrCtx, s, key, queryTime)
		if r != nil {
			cancelBlob()
		}
		results <- r
		return nil
	})
	g.Go(func() error {
		r := compressedBlobProbe(blobCtx, s, key, queryTime)
		if r != nil {
			cancelPtr()
		} else {
			cancelBlob()
		}
		results <- r
		return nil
	})

	_ = g.Wait()
	close(results)

	var first *store.SearchResult
	for r := range results {
		if r != nil && first == nil {
			first = r
		}
	}
	return first
}

func pointerProbe(ctx context.Context, s *HttpStore, key string, queryTime time.Time) *store.SearchResult {
	dir, _ := path.Split(key)
	url := s.BaseURL + "/" + dir + "file.ptr"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil
	}

	pf, err := parsePointerFile(resp.Body)
	if err != nil || pf.kind != pointerKindPath {
		return nil
	}
	if _, err := os.Stat(pf.path); err != nil {
		return nil
	}

	return store.MakeResult(func(context.Context) (io.ReadCloser, error) {
		return os.Open(pf.path)
	}, diagnostics.Success, s.BaseURL+"/"+key, pf.path, queryTime, nil, s.BaseURL)
}

func compressedBlobProbe(ctx context.Context, s *HttpStore, key string, queryTime time.Time) *store.SearchResult {
	if len(key) == 0 {
		return nil
	}
	blobKey := key[:len(key)-1] + "_"
	url := s.BaseURL + "/" + blobKey

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil
	}

	identity, _ := s.GetFileIdentity(key)
	body := resp.Body
	return store.MakeResult(func(context.Context) (io.ReadCloser, error) {
		return cabfile.Inflate(body)
	}, diagnostics.Success, identity, url, queryTime, nil, s.BaseURL)
}
