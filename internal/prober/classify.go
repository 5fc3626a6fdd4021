package prober

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/http"
	"syscall"
)

// Classify maps a request error onto a failure [Class].
//
// Classification inspects the error chain structurally; the error text is
// never parsed. A nil error yields ClassNone. Errors caused by the caller
// cancelling the context are ClassOther, not ClassTimeout.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}

	// caller cancellation wins over everything it may have caused downstream
	if errors.Is(err, context.Canceled) {
		return ClassOther
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ClassDNSFailure
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return ClassConnectionRefused
	}

	if isTLSError(err) {
		return ClassTLSFailure
	}

	return ClassOther
}

// isTLSError reports whether err comes from the TLS handshake.
func isTLSError(err error) bool {
	var (
		recordErr    tls.RecordHeaderError
		verifyErr    *tls.CertificateVerificationError
		alertErr     tls.AlertError
		authorityErr x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		invalidErr   x509.CertificateInvalidError
	)
	switch {
	case errors.Is(err, http.ErrSchemeMismatch),
		errors.As(err, &recordErr),
		errors.As(err, &verifyErr),
		errors.As(err, &alertErr),
		errors.As(err, &authorityErr),
		errors.As(err, &hostnameErr),
		errors.As(err, &invalidErr):
		return true
	}

	// alerts sent by the peer arrive wrapped in a *net.OpError with this op
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "remote error"
}
