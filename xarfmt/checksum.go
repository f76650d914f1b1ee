package xarfmt

import (
	"crypto"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"github.com/luci/luci-go/common/errors"
)

// ChecksumScheme identifies the digest algorithm protecting the TOC, and
// (per entry) the archived/extracted checksums in the data descriptor.
type ChecksumScheme uint32

// The checksum algorithms a XAR header can declare. The numeric values
// match the header's on-wire checksum-algorithm id.
const (
	ChecksumNone   ChecksumScheme = 0
	ChecksumSHA1   ChecksumScheme = 1
	ChecksumMD5    ChecksumScheme = 2
	ChecksumSHA256 ChecksumScheme = 3
	ChecksumSHA512 ChecksumScheme = 4
	// ChecksumOther signals a named algorithm outside this set; this
	// implementation can decode the header but cannot compute or verify
	// digests for it.
	ChecksumOther ChecksumScheme = 5
)

// Valid returns nil iff the scheme is one this package recognizes.
func (c ChecksumScheme) Valid() error {
	switch c {
	case ChecksumNone, ChecksumSHA1, ChecksumMD5, ChecksumSHA256, ChecksumSHA512, ChecksumOther:
		return nil
	}
	return errors.Reason("unknown checksum scheme %(scheme)d").D("scheme", uint32(c)).Err()
}

// String names the scheme the way it appears in TOC checksum "style"
// attributes (lowercase, matching the style xar itself writes).
func (c ChecksumScheme) String() string {
	switch c {
	case ChecksumNone:
		return "none"
	case ChecksumSHA1:
		return "sha1"
	case ChecksumMD5:
		return "md5"
	case ChecksumSHA256:
		return "sha256"
	case ChecksumSHA512:
		return "sha512"
	case ChecksumOther:
		return "other"
	}
	return "unknown"
}

// DigestLength returns the number of raw digest bytes this scheme produces.
func (c ChecksumScheme) DigestLength() int {
	switch c {
	case ChecksumNone, ChecksumOther:
		return 0
	case ChecksumSHA1:
		return sha1.Size
	case ChecksumMD5:
		return md5.Size
	case ChecksumSHA256:
		return sha256.Size
	case ChecksumSHA512:
		return sha512.Size
	}
	return 0
}

// New returns a fresh hash.Hash implementing this scheme. ChecksumNone
// returns a hash that always digests to zero bytes; ChecksumOther is not
// constructible and returns an error.
func (c ChecksumScheme) New() (hash.Hash, error) {
	switch c {
	case ChecksumNone:
		return nullHash{}, nil
	case ChecksumSHA1:
		return sha1.New(), nil
	case ChecksumMD5:
		return md5.New(), nil
	case ChecksumSHA256:
		return sha256.New(), nil
	case ChecksumSHA512:
		return sha512.New(), nil
	}
	return nil, errors.Reason("cannot construct a digest for checksum scheme %(scheme)s").
		D("scheme", c).Err()
}

// CryptoHash returns the crypto.Hash identifying this scheme, for APIs like
// rsa.SignPKCS1v15 that need a registered hash algorithm rather than a raw
// hash.Hash. A signature's digest algorithm must always equal the archive's
// checksum algorithm.
func (c ChecksumScheme) CryptoHash() (crypto.Hash, error) {
	switch c {
	case ChecksumSHA1:
		return crypto.SHA1, nil
	case ChecksumMD5:
		return crypto.MD5, nil
	case ChecksumSHA256:
		return crypto.SHA256, nil
	case ChecksumSHA512:
		return crypto.SHA512, nil
	}
	return 0, errors.Reason("checksum scheme %(scheme)s has no signing digest algorithm").
		D("scheme", c).Err()
}

// ParseChecksumStyle maps a TOC checksum "style" attribute back to a scheme.
func ParseChecksumStyle(style string) (ChecksumScheme, error) {
	switch style {
	case "none", "":
		return ChecksumNone, nil
	case "sha1", "SHA1", "SHA-1":
		return ChecksumSHA1, nil
	case "md5", "MD5":
		return ChecksumMD5, nil
	case "sha256", "SHA256", "SHA-256":
		return ChecksumSHA256, nil
	case "sha512", "SHA512", "SHA-512":
		return ChecksumSHA512, nil
	}
	return ChecksumOther, errors.Reason("unknown checksum style %(style)q").D("style", style).Err()
}

// nullHash implements hash.Hash as a no-op, so ChecksumNone.New returns
// something usable without special-casing every caller.
type nullHash struct{}

func (nullHash) Write(p []byte) (int, error) { return len(p), nil }
func (nullHash) Sum(b []byte) []byte         { return b }
func (nullHash) Reset()                      {}
func (nullHash) Size() int                   { return 0 }
func (nullHash) BlockSize() int              { return 0 }
