package httpstore

import (
	"strings"
	"testing"
)

func TestParsePointerFileMsg(t *testing.T) {
	pf, err := parsePointerFile(strings.NewReader("MSG: file not indexed\n"))
	if err != nil {
		t.Fatalf("parsePointerFile: %v", err)
	}
	if pf.kind != pointerKindMessage {
		t.Errorf("kind = %v, want message", pf.kind)
	}
}

func TestParsePointerFilePath(t *testing.T) {
	pf, err := parsePointerFile(strings.NewReader("PATH: \\\\server\\share\\clr.dll\r\n"))
	if err != nil {
		t.Fatalf("parsePointerFile: %v", err)
	}
	if pf.kind != pointerKindPath || pf.path != "\\\\server\\share\\clr.dll" {
		t.Errorf("got %+v", pf)
	}
}

func TestParsePointerFileEmptyFails(t *testing.T) {
	if _, err := parsePointerFile(strings.NewReader("")); err == nil {
		t.Error("expected error for empty body")
	}
}

func TestParsePointerFileBadPrefixFails(t *testing.T) {
	if _, err := parsePointerFile(strings.NewReader("WHAT: nope\n")); err == nil {
		t.Error("expected error for unrecognized prefix")
	}
}
