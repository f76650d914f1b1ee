package sign

import (
	"crypto/rsa"
	"crypto/x509"
	"time"

	"github.com/luci/luci-go/common/errors"
	"github.com/smallstep/pkcs7"
)

// CMSSigner wraps a detached CMS/PKCS#7 SignedData signature over the TOC
// digest, the "x-signature" style.
type CMSSigner struct {
	key     *rsa.PrivateKey
	leaf    *x509.Certificate
	parents []*x509.Certificate

	// sigLen caches the measured signature length; see SignatureLen.
	sigLen int
}

// NewCMSSigner builds a CMSSigner. leaf and parents are embedded in the
// SignedData's certificate set as well as in the TOC's certificate chain.
func NewCMSSigner(key *rsa.PrivateKey, leaf *x509.Certificate, parents ...*x509.Certificate) (*CMSSigner, error) {
	if key == nil || leaf == nil {
		return nil, errors.New("nil key or leaf certificate")
	}
	s := &CMSSigner{key: key, leaf: leaf, parents: parents}
	sig, err := s.sign(make([]byte, 32)) // SHA256-sized probe digest
	if err != nil {
		return nil, errors.Annotate(err).Reason("measuring CMS signature length").Err()
	}
	s.sigLen = len(sig)
	return s, nil
}

func (s *CMSSigner) Style() string     { return "CMS" }
func (s *CMSSigner) SignatureLen() int { return s.sigLen }

func (s *CMSSigner) Certificates() [][]byte {
	out := [][]byte{s.leaf.Raw}
	for _, c := range s.parents {
		out = append(out, c.Raw)
	}
	return out
}

func (s *CMSSigner) Sign(digest []byte) ([]byte, error) {
	return s.sign(digest)
}

func (s *CMSSigner) sign(digest []byte) ([]byte, error) {
	sd, err := pkcs7.NewSignedData(digest)
	if err != nil {
		return nil, errors.Annotate(err).Reason("initializing CMS SignedData").Err()
	}
	sd.Detach()
	if err := sd.AddSigner(s.leaf, s.key, pkcs7.SignerInfoConfig{}); err != nil {
		return nil, errors.Annotate(err).Reason("adding CMS signer").Err()
	}
	for _, p := range s.parents {
		sd.AddCertificate(p)
	}
	der, err := sd.Finish()
	if err != nil {
		return nil, errors.Annotate(err).Reason("finishing CMS SignedData").Err()
	}
	return der, nil
}

// VerifyCMS parses a detached CMS signature over digest and checks it,
// optionally validating the signer's chain against truststore as of now.
func VerifyCMS(digest, sig []byte, truststore *x509.CertPool, now time.Time) error {
	p7, err := pkcs7.Parse(sig)
	if err != nil {
		return errors.Annotate(err).Reason("parsing CMS signature").Err()
	}
	p7.Content = digest
	if err := p7.VerifyWithChainAtTime(truststore, now); err != nil {
		return errors.Annotate(err).Reason("CMS signature verification failed").Err()
	}
	return nil
}
