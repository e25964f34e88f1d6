package cacheinfo

import (
	"strings"
	"testing"
	"time"
)

func TestRoundTrip(t *testing.T) {
	info := CacheFileInfo{
		FileIdentity: "Mock1/a/b/c",
		UpstreamQueries: []UpstreamQuery{
			{StoreName: "cache-root", FilePath: "/root/a/b/c", LastQueryTime: time.Now().UTC().Round(time.Millisecond)},
			{StoreName: "Mock1", FilePath: "Mock1/a/b/c", LastQueryTime: time.Now().UTC().Round(time.Millisecond)},
		},
	}
	encoded := Encode(info)
	got, err := Parse(strings.NewReader(encoded))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.FileIdentity != info.FileIdentity {
		t.Errorf("FileIdentity = %q, want %q", got.FileIdentity, info.FileIdentity)
	}
	if len(got.UpstreamQueries) != len(info.UpstreamQueries) {
		t.Fatalf("len(UpstreamQueries) = %d, want %d", len(got.UpstreamQueries), len(info.UpstreamQueries))
	}
	for i := range info.UpstreamQueries {
		if got.UpstreamQueries[i] != info.UpstreamQueries[i] {
			t.Errorf("UpstreamQueries[%d] = %+v, want %+v", i, got.UpstreamQueries[i], info.UpstreamQueries[i])
		}
	}
}

func TestParseEmptyLinesIgnored(t *testing.T) {
	body := "File Identity: Mock1/a/b/c\r\n\nStore: Mock1\r\nFile Path: Mock1/a/b/c\r\nLast Query Time: " +
		time.Now().UTC().Format(timestampLayout) + "\r\n"
	info, err := Parse(strings.NewReader(body))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if info.FileIdentity != "Mock1/a/b/c" {
		t.Errorf("FileIdentity = %q", info.FileIdentity)
	}
	if len(info.UpstreamQueries) != 1 {
		t.Fatalf("len(UpstreamQueries) = %d, want 1", len(info.UpstreamQueries))
	}
}

func TestParseTruncatedGroupFails(t *testing.T) {
	body := "File Identity: Mock1/a/b/c\nStore: Mock1\nFile Path: Mock1/a/b/c\n"
	if _, err := Parse(strings.NewReader(body)); err == nil {
		t.Error("expected error for truncated group")
	}
}

func TestParseMalformedPrefixFails(t *testing.T) {
	body := "File Identity: Mock1/a/b/c\nNotStore: Mock1\nFile Path: Mock1/a/b/c\nLast Query Time: bogus\n"
	if _, err := Parse(strings.NewReader(body)); err == nil {
		t.Error("expected error for malformed prefix")
	}
}
