// Package xar implements the public XAR archive API: a streaming Builder
// that assembles a signed, digested archive, and an Archive reader that
// parses one back, verifying checksums as entries are consumed and the
// signature when Verify is called.
package xar
