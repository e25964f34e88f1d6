// Package symkey implements the forward-slash-delimited key type used
// to address symbol files, its sanitization rules, the identity hash
// used by the identity-partitioned cache, and the two embedded
// binary-format key builders.
package symkey

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path"
	"strings"

	"github.com/go-faster/errors"
)

// ErrInvalidKey is wrapped by Sanitize's error for any rejected key.
var ErrInvalidKey = errors.New("symkey: invalid key")

// Sanitize rejects keys containing ".." path segments, absolute-path
// prefixes, or null bytes before the key is ever used to build a
// filesystem path. It is a programming-error boundary: callers should
// treat a non-nil error as fatal, not as a NotFound outcome.
func Sanitize(key string) error {
	if key == "" {
		return errors.Wrap(ErrInvalidKey, "empty key")
	}
	if strings.ContainsRune(key, 0) {
		return errors.Wrap(ErrInvalidKey, "contains null byte")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, ":\\") || strings.HasPrefix(key, "\\") {
		return errors.Wrap(ErrInvalidKey, "absolute path prefix")
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return errors.Wrap(ErrInvalidKey, "contains .. segment")
		}
	}
	return nil
}

// Split divides a key into its directory and file (basename)
// components, both forward-slash-delimited, mirroring path.Split but
// without the trailing separator on dir.
func Split(key string) (dir, file string) {
	d, f := path.Split(key)
	return strings.TrimSuffix(d, "/"), f
}

// IdentityDirName returns the lowercase hex of the first 8 bytes of the
// SHA-1 of the UTF-8 encoding of identity — a 16-character directory
// name. It returns ("", false) when identity is unknown.
func IdentityDirName(identity string, ok bool) (string, bool) {
	if !ok {
		return "", false
	}
	sum := sha1.Sum([]byte(identity))
	return hex.EncodeToString(sum[:8]), true
}

// ImageKey builds the executable-image key: <filename>/<timestamp-hex><imagesize-hex>/<filename>,
// hex without leading zeros on the concatenated segment.
func ImageKey(filename string, timestamp, imageSize uint32) string {
	segment := fmt.Sprintf("%x%x", timestamp, imageSize)
	return fmt.Sprintf("%s/%s/%s", filename, segment, filename)
}

// DebugDatabaseKey builds the debug-database key:
// <pdbname>/<guid-hex-nohyphens><age-hex>/<pdbname>.
func DebugDatabaseKey(pdbName string, guid [16]byte, age uint32) string {
	guidHex := hex.EncodeToString(guid[:])
	segment := fmt.Sprintf("%s%x", guidHex, age)
	return fmt.Sprintf("%s/%s/%s", pdbName, segment, pdbName)
}
