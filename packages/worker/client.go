// Package worker contains the processor that executes a single download job
// and the runner that drives one worker's loop against the job ledger.
package worker

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxRedirects = 10

// crossOriginRedirectError aborts a redirect chain inside CheckRedirect as
// soon as it would leave the origin the request started on. The processor
// turns it into a descendant job for the new location.
type crossOriginRedirectError struct {
	Target *url.URL
}

func (e *crossOriginRedirectError) Error() string {
	return fmt.Sprintf("redirect to another network location: %s", e.Target)
}

// NewHTTPClient builds the client shared by all runners of one crawl.
// Same-origin redirects are followed in flight; a cross-origin hop stops the
// chain with a crossOriginRedirectError. With respectRedirects disabled the
// client never follows, so a 3xx response surfaces unchanged.
func NewHTTPClient(timeout time.Duration, respectRedirects bool) *http.Client {
	client := &http.Client{Timeout: timeout}
	if !respectRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
		return client
	}
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		if !strings.EqualFold(req.URL.Host, via[0].URL.Host) {
			return &crossOriginRedirectError{Target: req.URL}
		}
		return nil
	}
	return client
}

// isTLSError reports whether err stems from the TLS handshake or certificate
// verification, the failure class the https-first policy retries over HTTP.
func isTLSError(err error) bool {
	var certVerify *tls.CertificateVerificationError
	if errors.As(err, &certVerify) {
		return true
	}
	var recordHeader tls.RecordHeaderError
	if errors.As(err, &recordHeader) {
		return true
	}
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return true
	}
	var hostname x509.HostnameError
	if errors.As(err, &hostname) {
		return true
	}
	var invalid x509.CertificateInvalidError
	return errors.As(err, &invalid)
}
