// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/telekom/go-mail-me/pkg/config"
	"github.com/telekom/go-mail-me/pkg/metrics"
)

// Handle refers to one delivery operation, in flight or completed. For
// blocking dispatch it is already resolved on return; for asynchronous
// dispatch it resolves when the background delivery finishes.
type Handle struct {
	// ID correlates log lines and attempts of one delivery.
	ID string

	done   chan struct{}
	result DeliveryResult
	err    error
}

func newHandle() *Handle {
	return &Handle{ID: uuid.NewString(), done: make(chan struct{})}
}

func (h *Handle) resolve(result DeliveryResult) {
	h.result = result
	h.err = result.Err
	close(h.done)
}

// Done is closed once the delivery has resolved.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the delivery resolves or ctx expires. The returned error
// is the delivery fault (ErrDeliveryExhausted or ErrDeliveryFatal wrapping the
// transport error), nil on success. A handle that is never awaited keeps its
// delivery running detached; the fault is then only visible in the logs.
func (h *Handle) Wait(ctx context.Context) (DeliveryResult, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return DeliveryResult{}, ctx.Err()
	}
}

// Dispatcher decides between blocking and asynchronous delivery and enforces
// the concurrency contract: at most one unresolved delivery per dispatcher.
type Dispatcher struct {
	engine *Engine
	cfg    config.Config
	log    *zap.SugaredLogger

	mu       sync.Mutex
	inFlight *Handle
}

// NewDispatcher creates a dispatcher over the given engine.
func NewDispatcher(engine *Engine, cfg config.Config, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		engine: engine,
		cfg:    cfg,
		log:    log.Named("dispatch"),
	}
}

// Dispatch delivers msg to the configured recipients. In blocking mode the
// call returns once the delivery is final and the returned error carries the
// delivery fault. In async mode it returns immediately; faults surface only
// through Handle.Wait. A second dispatch while a previous handle is unresolved
// fails with ErrDeliveryInFlight.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *Message) (*Handle, error) {
	d.mu.Lock()
	if d.inFlight != nil {
		select {
		case <-d.inFlight.done:
			d.inFlight = nil
		default:
			d.mu.Unlock()
			return nil, ErrDeliveryInFlight
		}
	}
	handle := newHandle()
	d.inFlight = handle
	d.mu.Unlock()

	mode := "sync"
	if d.cfg.Async {
		mode = "async"
	}
	metrics.MailDispatched.WithLabelValues(d.engine.sender.GetHost(), mode).Inc()
	d.log.Debugw("Dispatching delivery",
		"id", handle.ID,
		"mode", mode,
		"recipients", len(d.cfg.Recipients),
		"subject", msg.Subject)

	if !d.cfg.Async {
		handle.resolve(d.engine.Deliver(ctx, d.cfg.Recipients, msg))
		d.clear(handle)
		return handle, handle.err
	}

	// Detach from the caller's ctx: an unawaited async delivery runs to
	// completion even if the dispatching scope has already returned.
	bgCtx := context.WithoutCancel(ctx)
	go func() {
		result := d.engine.Deliver(bgCtx, d.cfg.Recipients, msg)
		handle.resolve(result)
		d.clear(handle)
		if result.Err != nil {
			d.log.Errorw("Async delivery failed",
				"id", handle.ID,
				"final", result.Final,
				"error", result.Err)
		}
	}()
	return handle, nil
}

func (d *Dispatcher) clear(h *Handle) {
	d.mu.Lock()
	if d.inFlight == h {
		d.inFlight = nil
	}
	d.mu.Unlock()
}
