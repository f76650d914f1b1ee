package trust

import (
	"context"
	"crypto/x509"
	"io"
	"net/http"
	"strings"

	"github.com/luci/luci-go/common/errors"
	"golang.org/x/crypto/ocsp"
)

// CheckRevocation queries leaf's OCSP responders (from its
// AuthorityInfoAccess extension) in order, stopping at the first one that
// returns a parseable response, to confirm it has not been revoked by
// issuer. It is opt-in: callers decide whether a missing OCSP responder or a
// network failure should fail verification.
func CheckRevocation(ctx context.Context, leaf, issuer *x509.Certificate) (*ocsp.Response, error) {
	if len(leaf.OCSPServer) == 0 {
		return nil, errors.New("certificate has no OCSP responder")
	}

	req, err := ocsp.CreateRequest(leaf, issuer, nil)
	if err != nil {
		return nil, errors.Annotate(err).Reason("building OCSP request").Err()
	}

	var lastErr error
	for _, server := range leaf.OCSPServer {
		resp, err := postOCSP(ctx, server, req)
		if err != nil {
			lastErr = err
			continue
		}
		parsed, err := ocsp.ParseResponseForCert(resp, leaf, issuer)
		if err != nil {
			lastErr = errors.Annotate(err).Reason("parsing OCSP response from %(server)q").D("server", server).Err()
			continue
		}
		if parsed.Status == ocsp.Revoked {
			return parsed, errors.Reason("certificate was revoked at %(at)v").D("at", parsed.RevokedAt).Err()
		}
		return parsed, nil
	}
	return nil, errors.Annotate(lastErr).Reason("all OCSP responders failed").Err()
}

func postOCSP(ctx context.Context, server string, req []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, server, strings.NewReader(string(req)))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/ocsp-request")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Reason("OCSP responder %(server)q returned %(status)d").
			D("server", server).D("status", resp.StatusCode).Err()
	}
	return io.ReadAll(resp.Body)
}
