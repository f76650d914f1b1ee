package xar

import (
	"bytes"
	"io"
	"strings"

	"github.com/luci/luci-go/common/errors"

	"github.com/igankevich/zar/xarfmt"
	"github.com/igankevich/zar/xarfmt/toc"
)

// readSeekerAt is what Open needs from its source: random access to the
// heap, to let Entry.Reader seek to an arbitrary offset.
type readSeekerAt interface {
	io.Reader
	io.Seeker
}

// Archive is a parsed, TOC-validated XAR archive. Open alone only parses and
// validates the TOC; Verify additionally checks the embedded signature.
type Archive struct {
	src       readSeekerAt
	header    xarfmt.Header
	toc       *toc.TOC
	rawTOCXML []byte // decompressed TOC bytes, for TOCXML's escape hatch
	tocBytes  []byte // compressed TOC bytes, the signed/digested region
	sigBytes  []byte // raw signature bytes, if any
	heapStart int64

	flat      []*toc.Entry // depth-first flattened, so entries are addressable by index
	flatPaths []string     // "/"-joined archive path for each entry in flat
	byID      map[uint64]int
}

// Open parses header, compressed TOC, and TOC digest from src, verifying the
// TOC digest and decoding the TOC XML. It does not read or verify any file's
// heap bytes, and does not check the signature (see Verify).
func Open(src readSeekerAt, options ...OpenOption) (*Archive, error) {
	opts := openOptions{tocSizeLimit: defaultTOCSizeLimit}
	for _, o := range options {
		o(&opts)
	}

	header, err := xarfmt.Decode(src)
	if err != nil {
		return nil, errors.Annotate(err).Reason("decoding header").Err()
	}
	if header.CompressedTOCLength > uint64(opts.tocSizeLimit) {
		return nil, errors.Reason("compressed TOC length %(len)d exceeds limit %(limit)d").
			D("len", header.CompressedTOCLength).D("limit", opts.tocSizeLimit).Err()
	}

	compressedTOC := make([]byte, header.CompressedTOCLength)
	if _, err := io.ReadFull(src, compressedTOC); err != nil {
		return nil, errors.Annotate(err).Reason("reading compressed TOC").Err()
	}

	digestLen := header.Checksum.DigestLength()
	wantDigest := make([]byte, digestLen)
	if digestLen > 0 {
		if _, err := io.ReadFull(src, wantDigest); err != nil {
			return nil, errors.Annotate(err).Reason("reading TOC digest").Err()
		}
		h, err := header.Checksum.New()
		if err != nil {
			return nil, err
		}
		h.Write(compressedTOC)
		if got := h.Sum(nil); !bytes.Equal(got, wantDigest) {
			return nil, &xarfmt.BadChecksumError{Kind: xarfmt.BadChecksumTOC, Want: wantDigest, Got: got}
		}
	}

	zr, err := xarfmt.CompressionGzip.Reader(bytes.NewReader(compressedTOC))
	if err != nil {
		return nil, errors.Annotate(err).Reason("opening TOC decompressor").Err()
	}
	tocXML, err := io.ReadAll(zr)
	if err != nil {
		return nil, errors.Annotate(err).Reason("decompressing TOC").Err()
	}
	if err := zr.Close(); err != nil {
		return nil, err
	}

	t, err := toc.Unmarshal(tocXML)
	if err != nil {
		return nil, errors.Annotate(err).Reason("parsing TOC").Err()
	}
	if err := t.Validate(); err != nil {
		return nil, errors.Annotate(err).Reason("validating TOC").Err()
	}

	sigLen := uint64(0)
	if t.Signature != nil {
		sigLen = t.Signature.Size
	} else if t.XSignature != nil {
		sigLen = t.XSignature.Size
	}
	var sigBytes []byte
	if sigLen > 0 {
		sigBytes = make([]byte, sigLen)
		if _, err := io.ReadFull(src, sigBytes); err != nil {
			return nil, errors.Annotate(err).Reason("reading signature").Err()
		}
	}

	heapStart := int64(header.Size) + int64(header.CompressedTOCLength) + int64(digestLen) + int64(sigLen)

	a := &Archive{
		src: src, header: header, toc: t,
		rawTOCXML: tocXML, tocBytes: compressedTOC, sigBytes: sigBytes,
		heapStart: heapStart,
	}
	a.byID = map[uint64]int{}
	t.LoopItems(func(path []string, ent *toc.Entry) error {
		a.byID[ent.ID] = len(a.flat)
		a.flat = append(a.flat, ent)
		a.flatPaths = append(a.flatPaths, strings.Join(path, "/"))
		return nil
	})
	return a, nil
}

// NumEntries returns the number of entries in the archive, in depth-first
// insertion order.
func (a *Archive) NumEntries() int { return len(a.flat) }

// Entry returns the entry at index i.
func (a *Archive) Entry(i int) *Entry {
	return &Entry{archive: a, raw: a.flat[i], index: i}
}

// EntryByID returns the entry with the given TOC id, or nil if none exists.
// Hardlink entries record their target's id in LinkTargetID.
func (a *Archive) EntryByID(id uint64) *Entry {
	i, ok := a.byID[id]
	if !ok {
		return nil
	}
	return a.Entry(i)
}

// TOCXML returns the raw, decompressed TOC XML bytes, for diagnostics.
func (a *Archive) TOCXML() []byte {
	return a.rawTOCXML
}

// TOC returns the parsed TOC model directly.
func (a *Archive) TOC() *toc.TOC { return a.toc }

// Checksum returns the archive's checksum algorithm.
func (a *Archive) Checksum() xarfmt.ChecksumScheme { return a.header.Checksum }

// CompressedTOCBytes returns the exact bytes the TOC digest and any
// signature were computed over.
func (a *Archive) CompressedTOCBytes() []byte { return a.tocBytes }
