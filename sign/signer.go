package sign

// Signer produces a signature over a TOC checksum digest, to be embedded in
// the archive's "signature" (RSA) or "x-signature" (CMS) TOC element.
//
// SignatureLen must return the exact byte length Sign will produce for this
// signer, since a builder needs to reserve that many bytes in the TOC's
// <size> element before the digest (and hence the signature) is final.
type Signer interface {
	// Style names the TOC element this signer fills: "RSA" or "CMS".
	Style() string
	// SignatureLen is the exact length, in bytes, Sign will return.
	SignatureLen() int
	// Certificates returns the DER-encoded certificate chain, leaf first,
	// to embed alongside the signature.
	Certificates() [][]byte
	// Sign signs digest, a checksum-scheme digest of the compressed TOC
	// bytes.
	Sign(digest []byte) ([]byte, error)
}
