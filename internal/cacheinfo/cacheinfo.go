// Package cacheinfo implements CacheFileInfo, the persisted sidecar
// recording a cached file's provenance, and its round-trippable textual
// encoding.
package cacheinfo

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// UpstreamQuery is one flattened step of the diagnostics chain at
// ingest time. Outcome is implicitly Success: only successful chains
// are ever recorded.
type UpstreamQuery struct {
	StoreName     string
	FilePath      string
	LastQueryTime time.Time
}

// CacheFileInfo is the sidecar persisted next to (or instead of) a
// cached file.
type CacheFileInfo struct {
	FileIdentity    string
	UpstreamQueries []UpstreamQuery
}

const timestampLayout = time.RFC3339Nano

// Encode renders info in the sidecar grammar: a "File Identity:" line
// followed by groups of three lines ("Store:", "File Path:", "Last
// Query Time:") per upstream query.
func Encode(info CacheFileInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File Identity: %s\n", info.FileIdentity)
	for _, q := range info.UpstreamQueries {
		fmt.Fprintf(&b, "Store: %s\n", q.StoreName)
		fmt.Fprintf(&b, "File Path: %s\n", q.FilePath)
		fmt.Fprintf(&b, "Last Query Time: %s\n", q.LastQueryTime.UTC().Format(timestampLayout))
	}
	return b.String()
}

// Parse reads the sidecar grammar. Any malformed group invalidates the
// whole file; the caller should treat a non-nil error as "no sidecar"
// (degrade to a legacy-style hit), never as fatal.
func Parse(r io.Reader) (CacheFileInfo, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return CacheFileInfo{}, errors.Wrap(err, "cacheinfo: read sidecar")
	}
	if len(lines) == 0 {
		return CacheFileInfo{}, errors.New("cacheinfo: empty sidecar")
	}
	identity, err := trimPrefix(lines[0], "File Identity: ")
	if err != nil {
		return CacheFileInfo{}, err
	}
	rest := lines[1:]
	if len(rest)%3 != 0 {
		return CacheFileInfo{}, errors.New("cacheinfo: truncated upstream query group")
	}
	info := CacheFileInfo{FileIdentity: identity}
	for i := 0; i < len(rest); i += 3 {
		storeName, err := trimPrefix(rest[i], "Store: ")
		if err != nil {
			return CacheFileInfo{}, err
		}
		filePath, err := trimPrefix(rest[i+1], "File Path: ")
		if err != nil {
			return CacheFileInfo{}, err
		}
		tsStr, err := trimPrefix(rest[i+2], "Last Query Time: ")
		if err != nil {
			return CacheFileInfo{}, err
		}
		ts, err := time.Parse(timestampLayout, tsStr)
		if err != nil {
			return CacheFileInfo{}, errors.Wrap(err, "cacheinfo: parse timestamp")
		}
		info.UpstreamQueries = append(info.UpstreamQueries, UpstreamQuery{
			StoreName:     storeName,
			FilePath:      filePath,
			LastQueryTime: ts,
		})
	}
	return info, nil
}

func trimPrefix(line, prefix string) (string, error) {
	if !strings.HasPrefix(line, prefix) {
		return "", errors.Newf("cacheinfo: expected %q, got %q", prefix, line)
	}
	return strings.TrimPrefix(line, prefix), nil
}
