package sign

import (
	"crypto"
	"crypto/x509"
	"time"

	"github.com/luci/luci-go/common/errors"

	"github.com/igankevich/zar/trust"
	"github.com/igankevich/zar/xarfmt/toc"
)

// Verify checks sigBytes (the raw signature region named by sig, sig.Size
// bytes that the caller reads from between the TOC digest and the heap) against digest, the
// checksum digest it was computed over, dispatching on sig.Style ("RSA" or
// "CMS"). If ts is non-nil, the embedded certificate chain is additionally
// verified against it as of now; a nil ts verifies only the cryptographic
// signature, not provenance.
func Verify(sig *toc.Signature, sigBytes, digest []byte, digestAlg crypto.Hash, ts *trust.Store, now time.Time) error {
	if sig == nil {
		return errors.New("no signature present")
	}
	if len(sig.Certificates) == 0 {
		return errors.New("signature has no embedded certificates")
	}

	leaf, err := x509.ParseCertificate(sig.Certificates[0])
	if err != nil {
		return errors.Annotate(err).Reason("parsing signer certificate").Err()
	}

	switch sig.Style {
	case "RSA":
		if err := VerifyRSA(leaf, digestAlg, digest, sigBytes); err != nil {
			return err
		}
	case "CMS":
		var pool *x509.CertPool
		if ts != nil {
			pool = ts.Pool()
		}
		if err := VerifyCMS(digest, sigBytes, pool, now); err != nil {
			return err
		}
	default:
		return errors.Reason("unknown signature style %(style)q").D("style", sig.Style).Err()
	}

	if ts != nil {
		if _, err := ts.VerifyChain(sig.Certificates, now); err != nil {
			return errors.Annotate(err).Reason("signer certificate chain is not trusted").Err()
		}
	}
	return nil
}
