package httpstore

import (
	"bufio"
	"io"
	"strings"

	"github.com/go-faster/errors"
)

// pointerFileKind distinguishes the two lines a pointer file body may
// start with.
type pointerFileKind int

const (
	pointerKindMessage pointerFileKind = iota
	pointerKindPath
)

type pointerFile struct {
	kind pointerFileKind
	path string
}

// parsePointerFile reads a file.ptr body: a single line starting with
// either "MSG: " (informational, ignored) or "PATH: " (a local
// filesystem path to redirect to). An empty body, or any other prefix,
// fails to parse.
func parsePointerFile(r io.Reader) (pointerFile, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return pointerFile{}, errors.Wrap(err, "httpstore: read pointer file")
		}
		return pointerFile{}, errors.New("httpstore: empty pointer file body")
	}
	line := strings.TrimRight(sc.Text(), "\r")
	switch {
	case strings.HasPrefix(line, "MSG: "):
		return pointerFile{kind: pointerKindMessage}, nil
	case strings.HasPrefix(line, "PATH: "):
		return pointerFile{kind: pointerKindPath, path: strings.TrimPrefix(line, "PATH: ")}, nil
	default:
		return pointerFile{}, errors.Newf("httpstore: unrecognized pointer file line %q", line)
	}
}
