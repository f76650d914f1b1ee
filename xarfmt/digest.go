package xarfmt

import (
	"bytes"
	"encoding/hex"
	"hash"
	"io"

	"github.com/luci/luci-go/common/errors"
)

// BadChecksumKind distinguishes which of the three checksum domains a
// BadChecksumError refers to, so callers and tests can assert precisely.
type BadChecksumKind int

// The checksum domains a XAR archive carries.
const (
	BadChecksumTOC BadChecksumKind = iota
	BadChecksumArchived
	BadChecksumExtracted
)

func (k BadChecksumKind) String() string {
	switch k {
	case BadChecksumTOC:
		return "toc"
	case BadChecksumArchived:
		return "archived"
	case BadChecksumExtracted:
		return "extracted"
	}
	return "unknown"
}

// BadChecksumError is returned when a digest computed while streaming bytes
// doesn't match the digest recorded in the TOC (or, for BadChecksumTOC, the
// raw digest trailing the compressed TOC).
type BadChecksumError struct {
	Kind BadChecksumKind
	Want []byte
	Got  []byte
}

func (e *BadChecksumError) Error() string {
	return errors.Reason("bad %(kind)s checksum: want %(want)s, got %(got)s").
		D("kind", e.Kind).D("want", hex.EncodeToString(e.Want)).D("got", hex.EncodeToString(e.Got)).Err().Error()
}

// DigestWriter tees every byte written through w into h.
type DigestWriter struct {
	w io.Writer
	h hash.Hash
}

// NewDigestWriter returns a DigestWriter that writes to w while feeding h.
func NewDigestWriter(w io.Writer, h hash.Hash) *DigestWriter {
	return &DigestWriter{w: w, h: h}
}

func (d *DigestWriter) Write(p []byte) (int, error) {
	n, err := d.w.Write(p)
	if n > 0 {
		d.h.Write(p[:n])
	}
	return n, err
}

// Sum returns the current digest of everything written so far.
func (d *DigestWriter) Sum() []byte {
	return d.h.Sum(nil)
}

// DigestReader tees every byte read from r into h, and verifies the final
// digest against want once r reaches EOF. The mismatch surfaces on the Read
// call that observes EOF, per the end-of-stream (not mid-stream) error
// policy: a caller who abandons the stream early never sees it, and never
// learns about bytes they didn't ask for.
type DigestReader struct {
	r    io.Reader
	h    hash.Hash
	want []byte
	kind BadChecksumKind
	done bool
}

// NewDigestReader returns a DigestReader. If want is empty (ChecksumNone),
// no verification is performed.
func NewDigestReader(r io.Reader, h hash.Hash, want []byte, kind BadChecksumKind) *DigestReader {
	return &DigestReader{r: r, h: h, want: want, kind: kind}
}

func (d *DigestReader) Read(p []byte) (int, error) {
	n, err := d.r.Read(p)
	if n > 0 {
		d.h.Write(p[:n])
	}
	if err == io.EOF && !d.done {
		d.done = true
		if verr := d.checkSum(); verr != nil {
			return n, verr
		}
	}
	return n, err
}

// Finalize performs the end-of-stream digest check without requiring the
// caller to observe io.EOF from Read again; it is a no-op if Read already
// did so. Safe to call after a full read-to-EOF, or after manually reading
// exactly the expected number of bytes.
func (d *DigestReader) Finalize() error {
	if d.done {
		return nil
	}
	d.done = true
	return d.checkSum()
}

func (d *DigestReader) checkSum() error {
	if len(d.want) == 0 {
		return nil
	}
	got := d.h.Sum(nil)
	if !bytes.Equal(got, d.want) {
		return &BadChecksumError{Kind: d.kind, Want: d.want, Got: got}
	}
	return nil
}
