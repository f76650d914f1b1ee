// Package xarfmt implements IO routines for the low-level pieces of the XAR
// format: the fixed header, the checksum and compression scheme enums, and
// the digest+compression tee streams used on both the write and read paths
// of the heap and the TOC.
package xarfmt
