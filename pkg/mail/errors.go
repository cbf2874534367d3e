// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"errors"
	"fmt"
)

var (
	// ErrDeliveryExhausted marks a delivery abandoned after the retry budget
	// ran out. It wraps the last transport error.
	ErrDeliveryExhausted = errors.New("delivery retry budget exhausted")

	// ErrDeliveryFatal marks a delivery aborted on a non-retryable failure.
	ErrDeliveryFatal = errors.New("delivery failed fatally")

	// ErrDeliveryInFlight is returned when a dispatch is attempted while a
	// previous delivery from the same dispatcher has not resolved yet.
	ErrDeliveryInFlight = errors.New("a delivery is already in flight")

	// ErrTemplate marks a template rendering failure. This is a configuration
	// problem, not a transport one, and is never retried.
	ErrTemplate = errors.New("template rendering failed")
)

// TransportError wraps a failure from the SMTP session and records whether a
// retry is expected to help.
type TransportError struct {
	Transient bool
	Err       error
}

func (e *TransportError) Error() string {
	if e.Transient {
		return fmt.Sprintf("transient transport error: %v", e.Err)
	}
	return fmt.Sprintf("fatal transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
