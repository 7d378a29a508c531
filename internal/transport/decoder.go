// Package transport strips the outer content encoding from raw request
// bodies before envelope parsing.
package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// ErrDecode marks a decompression failure. Callers acknowledge the request
// and drop the payload rather than surfacing the failure to the SDK.
var ErrDecode = errors.New("transport decode error")

// gzip magic bytes, for auto-detection when clients compress without
// declaring an encoding.
var gzipMagic = []byte{0x1f, 0x8b}

// Decode returns the body with its declared content encoding stripped.
// With no declared encoding, gzip is auto-detected from magic bytes and
// anything else passes through unmodified.
func Decode(body []byte, contentEncoding string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "gzip":
		return gunzip(body)
	case "deflate":
		return inflate(body)
	case "br":
		return readAll("br", brotli.NewReader(bytes.NewReader(body)))
	case "zstd":
		return unzstd(body)
	case "", "identity":
		if bytes.HasPrefix(body, gzipMagic) {
			return gunzip(body)
		}
		return body, nil
	default:
		return body, nil
	}
}

func gunzip(body []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: gzip: %v", ErrDecode, err)
	}
	defer r.Close()
	return readAll("gzip", r)
}

// inflate handles RFC-compliant zlib-wrapped deflate, falling back to raw
// deflate for clients that send it bare.
func inflate(body []byte) ([]byte, error) {
	if r, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
		defer r.Close()
		if out, err := io.ReadAll(r); err == nil {
			return out, nil
		}
	}
	r := flate.NewReader(bytes.NewReader(body))
	defer r.Close()
	return readAll("deflate", r)
}

func unzstd(body []byte) ([]byte, error) {
	r, err := zstd.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %v", ErrDecode, err)
	}
	defer r.Close()
	out, err := io.ReadAll(r.IOReadCloser())
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %v", ErrDecode, err)
	}
	return out, nil
}

func readAll(encoding string, r io.Reader) ([]byte, error) {
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, encoding, err)
	}
	return out, nil
}
