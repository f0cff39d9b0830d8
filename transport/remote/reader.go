package remote

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var errResponseTooLarge = errors.New("response exceeds maximum size limit")

// maxBytesReader fails with errResponseTooLarge once more than limit bytes
// have been read.
type maxBytesReader struct {
	reader   io.Reader
	limit    int64
	consumed int64
}

func (r *maxBytesReader) Read(p []byte) (int, error) {
	if r.consumed >= r.limit {
		var probe [1]byte
		if n, _ := r.reader.Read(probe[:]); n > 0 {
			return 0, errResponseTooLarge
		}
		return 0, io.EOF
	}

	if remaining := r.limit - r.consumed; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := r.reader.Read(p)
	r.consumed += int64(n)
	return n, err
}

// safeResponseReader limits the raw body to maxBytes and, for gzip
// responses, the decompressed stream to maxDecompressed.
func safeResponseReader(resp *http.Response, maxBytes, maxDecompressed int64) (io.Reader, func(), error) {
	raw := &maxBytesReader{reader: resp.Body, limit: maxBytes}

	encoding := strings.TrimSpace(strings.ToLower(resp.Header.Get("Content-Encoding")))
	switch encoding {
	case "", "identity":
		return raw, func() {}, nil
	case "gzip":
		gz, err := gzip.NewReader(raw)
		if err != nil {
			return nil, func() {}, fmt.Errorf("invalid gzip response: %w", err)
		}
		return &maxBytesReader{reader: gz, limit: maxDecompressed}, func() { gz.Close() }, nil
	default:
		return nil, func() {}, fmt.Errorf("unsupported content encoding: %s", encoding)
	}
}
