package xar

import (
	"bytes"
	"compress/zlib"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/luci/luci-go/common/errors"

	"github.com/igankevich/zar/sign"
	"github.com/igankevich/zar/xarfmt"
	"github.com/igankevich/zar/xarfmt/toc"
)

// SignerTooSmallError is returned when a signer other than sign.NoSigner
// declares a zero-length signature. A real signer declaring no bytes at all
// would otherwise cause Finish to skip signing silently instead of failing.
type SignerTooSmallError struct {
	Style string
}

func (e *SignerTooSmallError) Error() string {
	return "signer " + e.Style + " declares a zero-length signature"
}

// compressTOC serializes the TOC XML with zlib (deflate). The TOC itself is
// always compressed this way regardless of the default compressor
// configured for file entries.
func compressTOC(tocXML []byte) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zlib.NewWriter(buf)
	if _, err := zw.Write(tocXML); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Builder assembles a XAR archive: each Append* call records TOC metadata
// and, for files, streams bytes through a digest+compressor chain into a
// heap spool. Finish serializes the TOC and writes header, TOC, TOC digest,
// signature, and heap, in that canonical order.
type Builder struct {
	sink io.Writer
	opts createOptions

	toc  *toc.TOC
	heap *spool

	dirs          map[string]*toc.Entry
	entriesByPath map[string]*toc.Entry

	finished       bool
	signerTooSmall bool
}

// NewBuilder returns a Builder that will write a complete archive to sink
// once Finish is called.
func NewBuilder(sink io.Writer, options ...CreateOption) *Builder {
	opts := createOptions{
		checksum:         xarfmt.ChecksumSHA256,
		compression:      xarfmt.DefaultCompression,
		compressionLevel: 6,
		signer:           sign.NoSigner{},
		spoolThreshold:   defaultSpoolThreshold,
	}
	for _, o := range options {
		o(&opts)
	}
	t := &toc.TOC{CaseSafe: opts.caseSafe}
	signerTooSmall := false
	// The signature region's size must be known before any heap offsets are
	// assigned, so the descriptor is recorded now; only its embedded
	// signature bytes are filled in later, by Finish.
	if sigLen := opts.signer.SignatureLen(); sigLen > 0 {
		descriptor := &toc.Signature{
			Style:        opts.signer.Style(),
			Size:         uint64(sigLen),
			Certificates: opts.signer.Certificates(),
		}
		if opts.signer.Style() == "CMS" {
			t.XSignature = descriptor
		} else {
			t.Signature = descriptor
		}
	} else if _, isNoSigner := opts.signer.(sign.NoSigner); !isNoSigner {
		signerTooSmall = true
	}

	return &Builder{
		sink:           sink,
		opts:           opts,
		toc:            t,
		heap:           newSpool(opts.spoolThreshold),
		dirs:           map[string]*toc.Entry{},
		entriesByPath:  map[string]*toc.Entry{},
		signerTooSmall: signerTooSmall,
	}
}

func (b *Builder) getOrCreateParent(parts []string) (*[]*toc.Entry, error) {
	children := &b.toc.Entries
	if len(parts) == 1 {
		return children, nil
	}

	var joined strings.Builder
	for _, part := range parts[:len(parts)-1] {
		if joined.Len() > 0 {
			joined.WriteByte('/')
		}
		joined.WriteString(part)
		key := joined.String()

		dir, ok := b.dirs[key]
		if !ok {
			dir = &toc.Entry{ID: b.toc.NextID(), Name: part, Kind: toc.KindDirectory, Mode: toc.DefaultDirMode}
			*children = append(*children, dir)
			b.dirs[key] = dir
			b.entriesByPath[key] = dir
		} else if dir.Kind != toc.KindDirectory {
			return nil, errors.Reason("%(path)q is not a directory").D("path", key).Err()
		}
		children = &dir.Children
	}
	return children, nil
}

func (b *Builder) reserve(pathInArchive string) (*[]*toc.Entry, string, string, error) {
	if b.finished {
		return nil, "", "", errors.New("builder already finished")
	}
	parts, err := splitArchivePath(pathInArchive)
	if err != nil {
		return nil, "", "", err
	}
	children, err := b.getOrCreateParent(parts)
	if err != nil {
		return nil, "", "", err
	}
	name := parts[len(parts)-1]
	joined := strings.Join(parts, "/")
	if _, exists := b.entriesByPath[joined]; exists {
		return nil, "", "", &DuplicateNameError{Path: joined}
	}
	return children, name, joined, nil
}

func applyMeta(e *toc.Entry, meta FileMeta, defaultMode uint32) {
	e.Mode = meta.Mode
	if e.Mode == 0 {
		e.Mode = defaultMode
	}
	e.UID, e.GID = meta.UID, meta.GID
	e.User, e.Group = meta.User, meta.Group
	e.ATime, e.MTime, e.CTime = meta.ATime, meta.MTime, meta.CTime
	e.Inode, e.Device = meta.Inode, meta.Device
}

// AppendFile streams r's bytes through the digest+compressor chain into the
// heap spool and records a file entry. compression of zero uses the
// Builder's default (see WithCompression).
func (b *Builder) AppendFile(pathInArchive string, meta FileMeta, r io.Reader, compression xarfmt.CompressionScheme) error {
	children, name, joined, err := b.reserve(pathInArchive)
	if err != nil {
		return err
	}
	if compression == 0 {
		compression = b.opts.compression
	}

	extractedHash, err := b.opts.checksum.New()
	if err != nil {
		return err
	}
	archivedHash, err := b.opts.checksum.New()
	if err != nil {
		return err
	}

	offset := uint64(b.heap.Len())

	archivedDW := xarfmt.NewDigestWriter(b.heap, archivedHash)
	compressWriter, err := compression.Writer(archivedDW, b.opts.compressionLevel)
	if err != nil {
		return errors.Annotate(err).Reason("opening compressor for %(path)q").D("path", joined).Err()
	}
	extractedDW := xarfmt.NewDigestWriter(compressWriter, extractedHash)

	size, err := io.Copy(extractedDW, r)
	if err != nil {
		return errors.Annotate(err).Reason("writing entry %(path)q").D("path", joined).Err()
	}
	if err := compressWriter.Close(); err != nil {
		return errors.Annotate(err).Reason("flushing compressor for %(path)q").D("path", joined).Err()
	}

	length := uint64(b.heap.Len()) - offset

	entry := &toc.Entry{
		ID: b.toc.NextID(), Name: name, Kind: toc.KindFile,
		Data: &toc.Data{
			Offset:    offset,
			Length:    length,
			Size:      uint64(size),
			Encoding:  compression.Encoding(),
			Archived:  toc.Checksum{Style: b.opts.checksum.String(), Value: archivedDW.Sum()},
			Extracted: toc.Checksum{Style: b.opts.checksum.String(), Value: extractedDW.Sum()},
		},
	}
	applyMeta(entry, meta, toc.DefaultFileMode)

	*children = append(*children, entry)
	b.entriesByPath[joined] = entry
	return nil
}

// AppendDir records a metadata-only directory entry. Intermediate
// directories implied by other Append* paths are created automatically
// with default metadata; calling AppendDir for one of those paths attaches
// the given metadata to it instead of creating a duplicate.
func (b *Builder) AppendDir(pathInArchive string, meta FileMeta) error {
	parts, err := splitArchivePath(pathInArchive)
	if err != nil {
		return err
	}
	joined := strings.Join(parts, "/")
	if existing, ok := b.entriesByPath[joined]; ok {
		if existing.Kind != toc.KindDirectory {
			return &DuplicateNameError{Path: joined}
		}
		applyMeta(existing, meta, toc.DefaultDirMode)
		return nil
	}

	children, err := b.getOrCreateParent(parts)
	if err != nil {
		return err
	}
	entry := &toc.Entry{ID: b.toc.NextID(), Name: parts[len(parts)-1], Kind: toc.KindDirectory}
	applyMeta(entry, meta, toc.DefaultDirMode)

	*children = append(*children, entry)
	b.dirs[joined] = entry
	b.entriesByPath[joined] = entry
	return nil
}

// AppendHardlink records a hardlink entry pointing at an already-appended
// file's archive path.
func (b *Builder) AppendHardlink(pathInArchive, original string) error {
	children, name, joined, err := b.reserve(pathInArchive)
	if err != nil {
		return err
	}
	originalParts, err := splitArchivePath(original)
	if err != nil {
		return err
	}
	originalJoined := strings.Join(originalParts, "/")
	target, ok := b.entriesByPath[originalJoined]
	if !ok {
		return errors.Reason("hardlink %(path)q targets unknown entry %(original)q").
			D("path", joined).D("original", original).Err()
	}
	if target.Kind != toc.KindFile {
		return errors.Reason("hardlink %(path)q targets non-file entry %(original)q").
			D("path", joined).D("original", original).Err()
	}

	entry := &toc.Entry{ID: b.toc.NextID(), Name: name, Kind: toc.KindHardlink, LinkTargetID: target.ID}
	*children = append(*children, entry)
	b.entriesByPath[joined] = entry
	return nil
}

// AppendSymlink records a symlink entry whose target is stored verbatim
// (not resolved or validated against the archive tree).
func (b *Builder) AppendSymlink(pathInArchive, target string) error {
	children, name, joined, err := b.reserve(pathInArchive)
	if err != nil {
		return err
	}
	if target == "" {
		return errors.New("empty symlink target")
	}
	entry := &toc.Entry{ID: b.toc.NextID(), Name: name, Kind: toc.KindSymlink, SymlinkTarget: target}
	*children = append(*children, entry)
	b.entriesByPath[joined] = entry
	return nil
}

// TreeHook is invoked by AppendTree once per appended entry, letting the
// caller attach metadata AppendTree itself does not infer (ownership,
// timestamps, extended attributes beyond what os.Lstat reports).
type TreeHook func(archivePath string, entry *toc.Entry) error

// AppendTree walks the host directory hostPath and appends every regular
// file, directory, and symlink it finds, nesting them under prefix in the
// archive. It is deliberately minimal (no xattrs, no ACLs); a caller needing
// those can use hook to attach them after the fact.
func (b *Builder) AppendTree(hostPath, prefix string, compression xarfmt.CompressionScheme, hook TreeHook) error {
	hostPath = filepath.Clean(hostPath)
	return filepath.WalkDir(hostPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.Annotate(err).Reason("walking %(path)q").D("path", p).Err()
		}
		rel, err := filepath.Rel(hostPath, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		archivePath := filepath.ToSlash(rel)
		if prefix != "" {
			archivePath = prefix + "/" + archivePath
		}

		info, err := d.Info()
		if err != nil {
			return errors.Annotate(err).Reason("statting %(path)q").D("path", p).Err()
		}
		meta := FileMeta{Mode: uint32(info.Mode().Perm())}
		mtime := info.ModTime()
		meta.MTime = &mtime

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(p)
			if err != nil {
				return errors.Annotate(err).Reason("reading symlink %(path)q").D("path", p).Err()
			}
			err = b.AppendSymlink(archivePath, target)
			if err != nil {
				return err
			}
		case d.IsDir():
			if err := b.AppendDir(archivePath, meta); err != nil {
				return err
			}
		default:
			f, err := os.Open(p)
			if err != nil {
				return errors.Annotate(err).Reason("opening %(path)q").D("path", p).Err()
			}
			err = b.AppendFile(archivePath, meta, f, compression)
			f.Close()
			if err != nil {
				return err
			}
		}

		if hook != nil {
			if parts, err := splitArchivePath(archivePath); err == nil {
				return hook(archivePath, b.entriesByPath[strings.Join(parts, "/")])
			}
		}
		return nil
	})
}

// Finish serializes the TOC, computes its digest and (if a signer is
// configured) its signature, then writes header, TOC, digest, signature,
// and heap, in that order, and flushes sink.
func (b *Builder) Finish() error {
	if b.finished {
		return errors.New("builder already finished")
	}
	b.finished = true
	defer b.heap.Close()

	if b.signerTooSmall {
		return &SignerTooSmallError{Style: b.opts.signer.Style()}
	}

	if err := b.toc.Validate(); err != nil {
		return errors.Annotate(err).Reason("validating TOC").Err()
	}

	tocXML, err := toc.Marshal(b.toc)
	if err != nil {
		return errors.Annotate(err).Reason("marshaling TOC").Err()
	}

	compressed, err := compressTOC(tocXML)
	if err != nil {
		return errors.Annotate(err).Reason("compressing TOC").Err()
	}

	tocDigest, err := b.opts.checksum.New()
	if err != nil {
		return err
	}
	tocDigest.Write(compressed)
	digestBytes := tocDigest.Sum(nil)

	var sigBytes []byte
	if b.opts.signer.SignatureLen() > 0 {
		sigBytes, err = b.opts.signer.Sign(digestBytes)
		if err != nil {
			return errors.Annotate(err).Reason("signing TOC digest").Err()
		}
		if len(sigBytes) != b.opts.signer.SignatureLen() {
			return errors.Reason("signer produced %(got)d bytes, declared %(want)d").
				D("got", len(sigBytes)).D("want", b.opts.signer.SignatureLen()).Err()
		}
	}

	header := xarfmt.Header{
		Size:                  xarfmt.HeaderSize,
		Version:               xarfmt.Version,
		CompressedTOCLength:   uint64(len(compressed)),
		UncompressedTOCLength: uint64(len(tocXML)),
		Checksum:              b.opts.checksum,
	}
	if err := header.Encode(b.sink); err != nil {
		return errors.Annotate(err).Reason("writing header").Err()
	}
	if _, err := b.sink.Write(compressed); err != nil {
		return errors.Annotate(err).Reason("writing compressed TOC").Err()
	}
	if _, err := b.sink.Write(digestBytes); err != nil {
		return errors.Annotate(err).Reason("writing TOC digest").Err()
	}
	if len(sigBytes) > 0 {
		if _, err := b.sink.Write(sigBytes); err != nil {
			return errors.Annotate(err).Reason("writing signature").Err()
		}
	}
	if _, err := b.heap.WriteTo(b.sink); err != nil {
		return errors.Annotate(err).Reason("writing heap").Err()
	}
	if f, ok := b.sink.(interface{ Sync() error }); ok {
		return f.Sync()
	}
	return nil
}
