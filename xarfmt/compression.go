package xarfmt

import (
	"compress/bzip2"
	"compress/zlib"
	"io"

	"github.com/luci/luci-go/common/errors"
	"github.com/ulikunitz/xz"
)

// CompressionScheme identifies the per-entry compression named in a data
// descriptor's encoding, and (separately) the fixed zlib compression used
// for the TOC itself.
type CompressionScheme byte

// The compression schemes XAR data descriptors can name.
const (
	CompressionNone CompressionScheme = iota + 1
	// CompressionGzip is XAR's historical name for this encoding, but the
	// bytes it actually produces are zlib/deflate, not gzip: real xar (and
	// the archives it writes) label plain zlib streams "application/x-gzip".
	// Decoding with compress/gzip fails on them; compress/zlib is what
	// works. CompressionGzip is the default.
	CompressionGzip
	CompressionBzip2
	CompressionXz
)

// DefaultCompression is the scheme used when a caller doesn't specify one,
// matching xar's own default.
const DefaultCompression = CompressionGzip

// Encoding returns the MIME-like encoding string XAR writes into a data
// descriptor's <encoding style="..."> attribute for this scheme.
func (c CompressionScheme) Encoding() string {
	switch c {
	case CompressionNone:
		return "application/octet-stream"
	case CompressionGzip:
		return "application/x-gzip"
	case CompressionBzip2:
		return "application/x-bzip2"
	case CompressionXz:
		return "application/x-xz"
	}
	return "application/octet-stream"
}

// ParseEncoding maps a data descriptor's encoding style string back to a
// scheme. Unrecognized strings are reported as an error rather than
// silently defaulting, since misreading the compression would corrupt the
// bytes a caller extracts.
func ParseEncoding(style string) (CompressionScheme, error) {
	switch {
	case style == "" || style == "application/octet-stream":
		return CompressionNone, nil
	case style == "application/x-gzip" || style == "application/gzip":
		return CompressionGzip, nil
	case style == "application/x-bzip2":
		return CompressionBzip2, nil
	case style == "application/x-xz":
		return CompressionXz, nil
	}
	return 0, errors.Reason("unsupported compression encoding %(style)q").D("style", style).Err()
}

// Valid returns nil iff the scheme is one this package recognizes.
func (c CompressionScheme) Valid() error {
	switch c {
	case CompressionNone, CompressionGzip, CompressionBzip2, CompressionXz:
		return nil
	}
	return errors.Reason("unknown compression scheme %(scheme)d").D("scheme", byte(c)).Err()
}

// Writer returns a compressing WriteCloser for this scheme. level is only
// meaningful for CompressionGzip (a zlib deflate level, see compress/flate).
//
// CompressionBzip2 has no writer: the standard library's compress/bzip2 is
// decode-only, and no pure-Go bzip2 encoder appears anywhere in the
// dependency surface this package draws from, so archives can be read but
// not created with bzip2-encoded entries.
func (c CompressionScheme) Writer(w io.Writer, level int) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return writeCloseHook{Writer: w}, nil
	case CompressionGzip:
		return zlib.NewWriterLevel(w, level)
	case CompressionXz:
		return xz.NewWriter(w)
	case CompressionBzip2:
		return nil, errors.Reason("writing bzip2-encoded entries is not supported").Err()
	}
	return nil, c.Valid()
}

// Reader returns a decompressing ReadCloser for this scheme.
func (c CompressionScheme) Reader(r io.Reader) (io.ReadCloser, error) {
	switch c {
	case CompressionNone:
		return readCloseHook{Reader: r}, nil
	case CompressionGzip:
		return zlib.NewReader(r)
	case CompressionBzip2:
		return readCloseHook{Reader: bzip2.NewReader(r)}, nil
	case CompressionXz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return readCloseHook{Reader: xr}, nil
	}
	return nil, c.Valid()
}
