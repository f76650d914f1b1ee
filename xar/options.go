package xar

import (
	"github.com/igankevich/zar/sign"
	"github.com/igankevich/zar/xarfmt"
)

// defaultSpoolThreshold bounds in-memory heap buffering before a Builder
// spills to a temporary file, so writing a large archive doesn't hold its
// entire heap in memory at once.
const defaultSpoolThreshold = 16 * 1024 * 1024 // 16MiB

const defaultTOCSizeLimit = 64 * 1024 * 1024 // 64MiB

type createOptions struct {
	checksum         xarfmt.ChecksumScheme
	compression      xarfmt.CompressionScheme
	compressionLevel int
	signer           sign.Signer
	caseSafe         bool
	spoolThreshold   int64
}

// CreateOption configures a Builder.
type CreateOption func(*createOptions)

// WithChecksum selects the digest algorithm used for both the TOC digest and
// every entry's archived/extracted checksums. Defaults to SHA-256.
func WithChecksum(c xarfmt.ChecksumScheme) CreateOption {
	return func(o *createOptions) { o.checksum = c }
}

// WithCompression sets the default compressor and level new file entries
// use unless they override it in AppendFile. Defaults to Gzip (Apple's
// x-gzip/zlib convention) at level 6.
func WithCompression(c xarfmt.CompressionScheme, level int) CreateOption {
	return func(o *createOptions) { o.compression, o.compressionLevel = c, level }
}

// WithSigner attaches a signer; its declared signature length is reserved
// in the archive layout before any heap bytes are written. Defaults to
// sign.NoSigner{}.
func WithSigner(s sign.Signer) CreateOption {
	return func(o *createOptions) { o.signer = s }
}

// WithCaseSafe additionally rejects sibling entries whose names differ only
// by case.
func WithCaseSafe(v bool) CreateOption {
	return func(o *createOptions) { o.caseSafe = v }
}

// WithSpoolThreshold sets the in-memory heap buffering limit, in bytes,
// before the Builder spills to a temporary file.
func WithSpoolThreshold(n int64) CreateOption {
	return func(o *createOptions) { o.spoolThreshold = n }
}

type openOptions struct {
	tocSizeLimit int64
}

// OpenOption configures Open.
type OpenOption func(*openOptions)

// WithTOCSizeLimit caps how many declared compressed-TOC bytes Open will
// read into memory before failing, guarding against a hostile header.
// Defaults to 64MiB.
func WithTOCSizeLimit(n int64) OpenOption {
	return func(o *openOptions) { o.tocSizeLimit = n }
}
