package sign

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/igankevich/zar/trust"
	"github.com/igankevich/zar/xarfmt/toc"
)

func selfSignedRSA(t *testing.T) (*rsa.PrivateKey, *x509.Certificate, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "zar test signer"},
		NotBefore:             time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:              time.Date(2040, 1, 1, 0, 0, 0, 0, time.UTC),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	return key, cert, der
}

func TestNoSigner(t *testing.T) {
	t.Parallel()
	Convey("NoSigner produces nothing", t, func() {
		var s Signer = NoSigner{}
		So(s.SignatureLen(), ShouldEqual, 0)
		So(s.Certificates(), ShouldBeNil)
		sig, err := s.Sign([]byte("digest"))
		So(err, ShouldBeNil)
		So(sig, ShouldBeNil)
	})
}

func TestRSASigner(t *testing.T) {
	t.Parallel()
	Convey("RSASigner signs and verifies", t, func() {
		key, cert, _ := selfSignedRSA(t)
		signer, err := NewRSASigner(key, crypto.SHA256, cert)
		So(err, ShouldBeNil)
		So(signer.SignatureLen(), ShouldEqual, key.Size())
		So(signer.Certificates(), ShouldHaveLength, 1)

		digest := sha256.Sum256([]byte("toc bytes"))
		sig, err := signer.Sign(digest[:])
		So(err, ShouldBeNil)
		So(len(sig), ShouldEqual, signer.SignatureLen())

		So(VerifyRSA(cert, crypto.SHA256, digest[:], sig), ShouldBeNil)
	})

	Convey("VerifyRSA rejects a tampered digest", t, func() {
		key, cert, _ := selfSignedRSA(t)
		signer, err := NewRSASigner(key, crypto.SHA256, cert)
		So(err, ShouldBeNil)

		digest := sha256.Sum256([]byte("toc bytes"))
		sig, err := signer.Sign(digest[:])
		So(err, ShouldBeNil)

		other := sha256.Sum256([]byte("different bytes"))
		So(VerifyRSA(cert, crypto.SHA256, other[:], sig), ShouldNotBeNil)
	})
}

func TestCMSSigner(t *testing.T) {
	t.Parallel()
	Convey("CMSSigner signs and verifies", t, func() {
		key, cert, _ := selfSignedRSA(t)
		signer, err := NewCMSSigner(key, cert)
		So(err, ShouldBeNil)
		So(signer.Certificates(), ShouldHaveLength, 1)

		digest := sha256.Sum256([]byte("toc bytes"))
		sig, err := signer.Sign(digest[:])
		So(err, ShouldBeNil)

		So(VerifyCMS(digest[:], sig, nil, time.Now()), ShouldBeNil)
	})
}

func TestVerifyDispatch(t *testing.T) {
	t.Parallel()
	Convey("Verify dispatches on sig.Style and checks the chain", t, func() {
		key, cert, der := selfSignedRSA(t)
		signer, err := NewRSASigner(key, crypto.SHA256, cert)
		So(err, ShouldBeNil)

		digest := sha256.Sum256([]byte("toc bytes"))
		sigBytes, err := signer.Sign(digest[:])
		So(err, ShouldBeNil)

		tocSig := &toc.Signature{Style: "RSA", Certificates: [][]byte{der}}

		ts := trust.NewStore()
		So(ts.AddCert(der), ShouldBeNil)

		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		So(Verify(tocSig, sigBytes, digest[:], crypto.SHA256, ts, now), ShouldBeNil)
	})

	Convey("Verify fails closed with no certificates", t, func() {
		err := Verify(&toc.Signature{Style: "RSA"}, nil, nil, crypto.SHA256, nil, time.Now())
		So(err, ShouldNotBeNil)
	})
}
