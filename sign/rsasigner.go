package sign

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"

	"github.com/luci/luci-go/common/errors"
)

// RSASigner signs TOC digests directly with RSA PKCS#1 v1.5, the
// "signature" style. digestAlg must match the checksum scheme used to
// produce the digests passed to Sign (e.g. crypto.SHA256 for
// xarfmt.ChecksumSHA256).
type RSASigner struct {
	key       *rsa.PrivateKey
	digestAlg crypto.Hash
	leaf      *x509.Certificate
	chain     []*x509.Certificate
}

// NewRSASigner builds an RSASigner from a private key and its certificate
// chain (leaf first, then any intermediates). digestAlg must be registered
// (crypto.SHA256.Available() etc).
func NewRSASigner(key *rsa.PrivateKey, digestAlg crypto.Hash, leaf *x509.Certificate, chain ...*x509.Certificate) (*RSASigner, error) {
	if key == nil {
		return nil, errors.New("nil RSA private key")
	}
	if leaf == nil {
		return nil, errors.New("nil leaf certificate")
	}
	if !digestAlg.Available() {
		return nil, errors.Reason("digest algorithm %(alg)v is not available").D("alg", digestAlg).Err()
	}
	return &RSASigner{key: key, digestAlg: digestAlg, leaf: leaf, chain: chain}, nil
}

func (s *RSASigner) Style() string     { return "RSA" }
func (s *RSASigner) SignatureLen() int { return s.key.Size() }

func (s *RSASigner) Certificates() [][]byte {
	out := [][]byte{s.leaf.Raw}
	for _, c := range s.chain {
		out = append(out, c.Raw)
	}
	return out
}

func (s *RSASigner) Sign(digest []byte) ([]byte, error) {
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, s.digestAlg, digest)
	if err != nil {
		return nil, errors.Annotate(err).Reason("signing TOC digest").Err()
	}
	return sig, nil
}

// VerifyRSA checks sig against digest using leaf's public key, per the
// digestAlg the signer used to produce it.
func VerifyRSA(leaf *x509.Certificate, digestAlg crypto.Hash, digest, sig []byte) error {
	pub, ok := leaf.PublicKey.(*rsa.PublicKey)
	if !ok {
		return errors.Reason("certificate public key is %(type)T, want RSA").D("type", leaf.PublicKey).Err()
	}
	if err := rsa.VerifyPKCS1v15(pub, digestAlg, digest, sig); err != nil {
		return errors.Annotate(err).Reason("RSA signature verification failed").Err()
	}
	return nil
}
