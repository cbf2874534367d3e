/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package mail

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/go-mail-me/pkg/config"
	"github.com/telekom/go-mail-me/pkg/metrics"
)

// AttemptOutcome classifies a single delivery attempt.
type AttemptOutcome string

const (
	AttemptSent             AttemptOutcome = "sent"
	AttemptRetryableFailure AttemptOutcome = "retryable-failure"
	AttemptFatalFailure     AttemptOutcome = "fatal-failure"
)

// FinalState is the terminal state of a delivery operation.
type FinalState string

const (
	FinalSent      FinalState = "sent"
	FinalExhausted FinalState = "exhausted"
	FinalFatal     FinalState = "fatal"
)

// DeliveryAttempt records one transport call for observability.
type DeliveryAttempt struct {
	Index   int
	Outcome AttemptOutcome
	Err     error
	At      time.Time
}

// DeliveryResult is the full record of a delivery operation: every attempt in
// order, terminated by a send, by budget exhaustion, or by a fatal failure.
// Err is nil exactly when Final is FinalSent.
type DeliveryResult struct {
	Attempts []DeliveryAttempt
	Final    FinalState
	Err      error
}

// Engine drives a Sender until success, retry exhaustion, or a fatal error.
// MaxRetries bounds retries, so a delivery makes at most MaxRetries+1 attempts
// and MaxRetries of zero means a single attempt.
type Engine struct {
	sender           Sender
	log              *zap.SugaredLogger
	maxRetries       int
	initialBackoffMs int
	maxBackoffMs     int
	jitter           float64
}

// NewEngine creates a retry engine over the given sender using the resolved
// retry and backoff settings.
func NewEngine(sender Sender, cfg config.Config, log *zap.SugaredLogger) *Engine {
	return &Engine{
		sender:           sender,
		log:              log.Named("retry"),
		maxRetries:       cfg.MaxRetries,
		initialBackoffMs: cfg.InitialBackoffMs,
		maxBackoffMs:     cfg.MaxBackoffMs,
		jitter:           cfg.BackoffJitter,
	}
}

// Deliver attempts to send msg to receivers, retrying transient failures with
// exponential backoff. Backoff waits on a timer so concurrent deliveries in
// the same process never block each other. Every attempt, including the
// terminal one, is recorded in the result.
func (e *Engine) Deliver(ctx context.Context, receivers []string, msg *Message) DeliveryResult {
	result := DeliveryResult{}
	host := e.sender.GetHost()

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		err := e.sender.Send(receivers, msg)
		if err == nil {
			result.Attempts = append(result.Attempts, DeliveryAttempt{
				Index:   attempt,
				Outcome: AttemptSent,
				At:      time.Now(),
			})
			result.Final = FinalSent
			e.log.Infow("Mail sent successfully",
				"attempt", attempt+1,
				"receivers", len(receivers))
			metrics.MailSendSuccess.WithLabelValues(host).Inc()
			return result
		}

		terr := Classify(err)
		metrics.MailSendFailure.WithLabelValues(host).Inc()

		if !terr.Transient {
			result.Attempts = append(result.Attempts, DeliveryAttempt{
				Index:   attempt,
				Outcome: AttemptFatalFailure,
				Err:     terr,
				At:      time.Now(),
			})
			result.Final = FinalFatal
			result.Err = fmt.Errorf("%w: %w", ErrDeliveryFatal, terr)
			e.log.Errorw("Mail send failed fatally, not retrying",
				"attempt", attempt+1,
				"error", terr)
			metrics.MailDeliveryFatal.WithLabelValues(host).Inc()
			return result
		}

		result.Attempts = append(result.Attempts, DeliveryAttempt{
			Index:   attempt,
			Outcome: AttemptRetryableFailure,
			Err:     terr,
			At:      time.Now(),
		})

		if attempt == e.maxRetries {
			break
		}

		backoff := e.backoff(attempt)
		e.log.Warnw("Mail send failed, scheduling retry",
			"attempt", attempt+1,
			"maxAttempts", e.maxRetries+1,
			"error", terr,
			"retryIn", backoff)
		metrics.MailRetryScheduled.WithLabelValues(host).Inc()

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			result.Final = FinalExhausted
			result.Err = fmt.Errorf("%w: backoff interrupted: %w", ErrDeliveryExhausted, ctx.Err())
			metrics.MailDeliveryExhausted.WithLabelValues(host).Inc()
			return result
		}
	}

	last := result.Attempts[len(result.Attempts)-1]
	result.Final = FinalExhausted
	result.Err = fmt.Errorf("%w after %d attempts: %w", ErrDeliveryExhausted, len(result.Attempts), last.Err)
	e.log.Errorw("Mail send failed after all retries",
		"attempts", len(result.Attempts),
		"error", last.Err)
	metrics.MailDeliveryExhausted.WithLabelValues(host).Inc()
	return result
}

// backoff computes the delay before retry attempt+1: initial * 2^attempt,
// capped, with a uniform jitter fraction applied on top.
func (e *Engine) backoff(attempt int) time.Duration {
	ms := float64(e.initialBackoffMs) * math.Pow(2, float64(attempt))
	ms = math.Min(ms, float64(e.maxBackoffMs))
	if e.jitter > 0 {
		ms *= 1 + e.jitter*(2*rand.Float64()-1)
	}
	return time.Duration(ms) * time.Millisecond
}
