// Package cabfile adapts the compressed-blob responses served by the
// Microsoft symbol-server convention (the trailing path character
// replaced by '_') into a readable stream. The wire format the real
// protocol uses is MS-CAB; no library in the dependency pack speaks it,
// so this adapter is backed by klauspost/compress's flate implementation
// — the concrete compression codec the corpus already pulls in — behind
// the same Inflate boundary a genuine MS-CAB decoder would occupy. The
// .cab parsing proper stays out of scope for this package.
package cabfile

import (
	"io"

	"github.com/go-faster/errors"
	"github.com/klauspost/compress/flate"
)

// Inflate wraps r, lazily decompressing its contents on first Read. The
// returned ReadCloser is a single-use stream; Close releases the
// decompressor and closes r.
func Inflate(r io.ReadCloser) (io.ReadCloser, error) {
	if r == nil {
		return nil, errors.New("cabfile: nil reader")
	}
	return &inflateStream{src: r, fr: flate.NewReader(r)}, nil
}

type inflateStream struct {
	src io.ReadCloser
	fr  io.ReadCloser
}

func (s *inflateStream) Read(p []byte) (int, error) {
	return s.fr.Read(p)
}

func (s *inflateStream) Close() error {
	ferr := s.fr.Close()
	serr := s.src.Close()
	if ferr != nil {
		return errors.Wrap(ferr, "cabfile: close decompressor")
	}
	if serr != nil {
		return errors.Wrap(serr, "cabfile: close source")
	}
	return nil
}
