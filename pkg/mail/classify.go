package mail

import (
	"errors"
	"net"
	"net/textproto"
)

// Classify wraps a raw send failure in a TransportError. SMTP reply codes in
// the 4xx range signal temporary conditions (server busy, mailbox unavailable,
// greylisting) and are retryable; 5xx replies are permanent. Authentication
// rejections (530/534/535) and permanently rejected recipients (550/551/553)
// fall into the 5xx range, so retrying cannot fix them. Network-level errors
// (connection refused, timeouts, resets) are always worth a retry, as is
// anything we cannot recognize.
func Classify(err error) *TransportError {
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}

	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		return &TransportError{Transient: protoErr.Code < 500, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &TransportError{Transient: true, Err: err}
	}

	return &TransportError{Transient: true, Err: err}
}
