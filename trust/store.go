package trust

import (
	"crypto/x509"
	"encoding/pem"
	"time"

	"github.com/luci/luci-go/common/errors"
)

// Store holds trusted root certificates and validates certificate chains
// against them.
type Store struct {
	pool  *x509.CertPool
	certs []*x509.Certificate
}

// NewStore returns an empty trust store.
func NewStore() *Store {
	return &Store{pool: x509.NewCertPool()}
}

// AddCert adds a trusted root, in DER form.
func (s *Store) AddCert(der []byte) error {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return errors.Annotate(err).Reason("parsing trusted certificate").Err()
	}
	s.pool.AddCert(cert)
	s.certs = append(s.certs, cert)
	return nil
}

// AddPEM adds every certificate found in a PEM-encoded blob of trusted
// roots.
func (s *Store) AddPEM(pemData []byte) error {
	n := 0
	for len(pemData) > 0 {
		var block *pem.Block
		block, pemData = pem.Decode(pemData)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		if err := s.AddCert(block.Bytes); err != nil {
			return err
		}
		n++
	}
	if n == 0 {
		return errors.New("no CERTIFICATE blocks found in PEM data")
	}
	return nil
}

// Pool returns the underlying certificate pool, for callers that need to
// pass it directly to x509.Verify-style APIs (e.g. CMS verification).
func (s *Store) Pool() *x509.CertPool {
	return s.pool
}

// VerifyChain validates a DER certificate chain (leaf first, intermediates
// following) against the store's trusted roots as of now, checking
// signatures, validity windows, and key usage, and returns the verified
// chain(s) to a trusted root.
func (s *Store) VerifyChain(derChain [][]byte, now time.Time) ([][]*x509.Certificate, error) {
	if len(derChain) == 0 {
		return nil, errors.New("empty certificate chain")
	}

	leaf, err := x509.ParseCertificate(derChain[0])
	if err != nil {
		return nil, errors.Annotate(err).Reason("parsing leaf certificate").Err()
	}
	if leaf.KeyUsage != 0 && leaf.KeyUsage&x509.KeyUsageDigitalSignature == 0 {
		return nil, errors.New("leaf certificate key usage does not allow digital signatures")
	}

	intermediates := x509.NewCertPool()
	for _, der := range derChain[1:] {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, errors.Annotate(err).Reason("parsing intermediate certificate").Err()
		}
		intermediates.AddCert(cert)
	}

	chains, err := leaf.Verify(x509.VerifyOptions{
		Roots:         s.pool,
		Intermediates: intermediates,
		CurrentTime:   now,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err != nil {
		return nil, errors.Annotate(err).Reason("verifying certificate chain").Err()
	}
	return chains, nil
}
