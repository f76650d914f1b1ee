package xar

import (
	"time"

	"github.com/luci/luci-go/common/errors"

	"github.com/igankevich/zar/sign"
	"github.com/igankevich/zar/trust"
)

// VerifyResult names the outcome of Archive.Verify.
type VerifyResult int

const (
	// Unsigned means the TOC declared no signature at all.
	Unsigned VerifyResult = iota
	// Verified means the signature checked out and, if a trust store was
	// supplied, its chain is trusted.
	Verified
	// SignatureInvalid means the cryptographic signature itself did not
	// check out.
	SignatureInvalid
	// UntrustedChain means the signature checked out but its certificate
	// chain does not resolve to a trust store anchor.
	UntrustedChain
)

func (r VerifyResult) String() string {
	switch r {
	case Unsigned:
		return "unsigned"
	case Verified:
		return "verified"
	case SignatureInvalid:
		return "signature invalid"
	case UntrustedChain:
		return "untrusted chain"
	}
	return "unknown"
}

// Verify checks the archive's embedded signature (if any) over the
// compressed TOC bytes, and, when ts is non-nil, the signer certificate
// chain against it. now is used for chain expiry checks (wall clock, since
// this archive format carries no separate signing-time attribute).
func (a *Archive) Verify(ts *trust.Store, now time.Time) (VerifyResult, error) {
	tocSig := a.toc.Signature
	if tocSig == nil {
		tocSig = a.toc.XSignature
	}
	if tocSig == nil {
		return Unsigned, nil
	}

	digestAlg, err := a.header.Checksum.CryptoHash()
	if err != nil {
		return SignatureInvalid, errors.Annotate(err).Reason("signature's digest algorithm").Err()
	}
	h, err := a.header.Checksum.New()
	if err != nil {
		return SignatureInvalid, err
	}
	h.Write(a.tocBytes)
	digest := h.Sum(nil)

	if err := sign.Verify(tocSig, a.sigBytes, digest, digestAlg, nil, now); err != nil {
		return SignatureInvalid, err
	}
	if ts == nil {
		return Verified, nil
	}
	if _, err := ts.VerifyChain(tocSig.Certificates, now); err != nil {
		return UntrustedChain, err
	}
	return Verified, nil
}
