package xar

import (
	"io"

	"github.com/luci/luci-go/common/errors"

	"github.com/igankevich/zar/xarfmt"
	"github.com/igankevich/zar/xarfmt/toc"
)

// Entry is a read handle onto one TOC entry, bound to the Archive it came
// from so Reader can seek into the heap.
type Entry struct {
	archive *Archive
	raw     *toc.Entry
	index   int
}

// TOC returns the entry's underlying TOC model, for metadata access.
func (e *Entry) TOC() *toc.Entry { return e.raw }

// Name is the entry's path component (not a full path).
func (e *Entry) Name() string { return e.raw.Name }

// Path is the entry's full "/"-joined archive path, from the root.
func (e *Entry) Path() string { return e.archive.flatPaths[e.index] }

// Kind is the entry's type.
func (e *Entry) Kind() toc.Kind { return e.raw.Kind }

// Reader returns a stream positioned at the entry's heap bytes, chained
// through the archived-digest verifier, the decompressor, and the
// extracted-digest verifier. Fully reading it to EOF and calling Close
// verifies both digests; partial reads followed by Close verify neither and
// report no mismatch. Only valid for file entries.
func (e *Entry) Reader() (io.ReadCloser, error) {
	if e.raw.Kind != toc.KindFile {
		return nil, errors.Reason("entry %(name)q is a %(kind)s, not a file").
			D("name", e.raw.Name).D("kind", e.raw.Kind).Err()
	}
	d := e.raw.Data

	if _, err := e.archive.src.Seek(e.archive.heapStart+int64(d.Offset), io.SeekStart); err != nil {
		return nil, errors.Annotate(err).Reason("seeking to entry %(name)q").D("name", e.raw.Name).Err()
	}
	limited := io.LimitReader(e.archive.src, int64(d.Length))

	archivedAlg, err := xarfmt.ParseChecksumStyle(d.Archived.Style)
	if err != nil {
		return nil, err
	}
	archivedHash, err := archivedAlg.New()
	if err != nil {
		return nil, err
	}
	archivedDR := xarfmt.NewDigestReader(limited, archivedHash, d.Archived.Value, xarfmt.BadChecksumArchived)

	encoding, err := xarfmt.ParseEncoding(d.Encoding)
	if err != nil {
		return nil, err
	}
	decompressed, err := encoding.Reader(archivedDR)
	if err != nil {
		return nil, errors.Annotate(err).Reason("opening decompressor for %(name)q").D("name", e.raw.Name).Err()
	}

	extractedAlg, err := xarfmt.ParseChecksumStyle(d.Extracted.Style)
	if err != nil {
		return nil, err
	}
	extractedHash, err := extractedAlg.New()
	if err != nil {
		return nil, err
	}
	extractedDR := xarfmt.NewDigestReader(decompressed, extractedHash, d.Extracted.Value, xarfmt.BadChecksumExtracted)

	return &entryReadCloser{DigestReader: extractedDR, inner: decompressed, archived: archivedDR}, nil
}

// entryReadCloser closes the decompressor (inner) while reading through the
// extracted-digest layer wrapped around it. The decompressor only reads
// exactly as many compressed bytes as it needs, so it never drives archived
// to EOF on its own; Close finalizes it explicitly once inner has consumed
// the full compressed stream.
type entryReadCloser struct {
	*xarfmt.DigestReader
	inner    io.ReadCloser
	archived *xarfmt.DigestReader
	// ended records that the extracted stream was read to io.EOF.
	ended bool
}

func (e *entryReadCloser) Read(p []byte) (int, error) {
	n, err := e.DigestReader.Read(p)
	if err == io.EOF {
		e.ended = true
	}
	return n, err
}

func (e *entryReadCloser) Close() error {
	innerErr := e.inner.Close()
	if !e.ended {
		return innerErr
	}
	extractedErr := e.DigestReader.Finalize()
	archivedErr := e.archived.Finalize()
	if extractedErr != nil {
		return extractedErr
	}
	if innerErr != nil {
		return innerErr
	}
	return archivedErr
}
