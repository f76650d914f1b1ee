// Package zar implements the XAR ("eXtensible ARchive") container format:
// the archive format Apple uses for .pkg installers and related artifacts.
// A XAR file stores a tree of filesystem entries alongside a signed,
// compressed XML table of contents (TOC) describing them.
//
// It has a position-dependent layout:
//   - fixed 28-byte header (magic "xar!", sizes, checksum algorithm)
//   - zlib-compressed TOC XML
//   - raw TOC digest, under the header's checksum algorithm
//   - optional RSA/CMS signature over the compressed TOC bytes
//   - heap: the compressed, individually-digested bytes of every file entry
//
// Two independent checksum domains exist per file: the archived checksum
// covers the compressed bytes as stored in the heap, and the extracted
// checksum covers the original uncompressed bytes. Both are verified at
// end-of-stream as entries are read.
//
// The archive engine lives in package xar (construction: xar.Builder, and
// reading: xar.Archive). Wire-level primitives (header, checksum and
// compression schemes, digest streams) live in xarfmt; the TOC tree model
// and its XML serialization live in xarfmt/toc; signing and verification
// live in sign; certificate trust anchors live in trust.
package zar
