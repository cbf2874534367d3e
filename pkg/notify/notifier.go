// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/telekom/go-mail-me/pkg/config"
	"github.com/telekom/go-mail-me/pkg/mail"
)

// ErrBadState is returned when the notifier is driven through an invalid
// state transition, e.g. Begin while a scope is already running.
var ErrBadState = errors.New("notifier used in invalid state")

// state tracks the notifier lifecycle:
// Idle -> Running -> {Succeeded, Failed} -> Notifying -> {Notified, NotifyFailed}.
type state int

const (
	stateIdle state = iota
	stateRunning
	stateSucceeded
	stateFailed
	stateNotifying
	stateNotified
	stateNotifyFailed
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateRunning:
		return "running"
	case stateSucceeded:
		return "succeeded"
	case stateFailed:
		return "failed"
	case stateNotifying:
		return "notifying"
	case stateNotified:
		return "notified"
	case stateNotifyFailed:
		return "notify-failed"
	default:
		return "unknown"
	}
}

// Notifier owns the notification lifecycle for wrapped executions. It holds
// raw options and resolves them lazily at first dispatch, so a broken
// configuration never prevents the wrapped task from running; it surfaces as
// a delivery failure instead. A notifier is reusable across scopes, but at
// most one delivery is in flight at a time.
type Notifier struct {
	log       *zap.SugaredLogger
	opts      config.Options
	transport mail.Sender
	template  mail.Template

	mu         sync.Mutex
	state      state
	cfg        config.Config
	dispatcher *mail.Dispatcher
}

// New creates a notifier. Options are stored unvalidated; see Resolve in
// pkg/config for the precedence rules applied at dispatch time.
func New(logger *zap.SugaredLogger, opts config.Options) *Notifier {
	return &Notifier{
		log:  logger.Named("notify"),
		opts: opts,
	}
}

// WithTransport overrides the SMTP sender, mainly for tests and stubs.
func (n *Notifier) WithTransport(s mail.Sender) *Notifier {
	n.transport = s
	return n
}

// WithTemplate sets a custom template used for all notifications from this
// notifier instead of the built-in success/failure variants.
func (n *Notifier) WithTemplate(t mail.Template) *Notifier {
	n.template = t
	return n
}

// resolve builds the delivery pipeline on first use and caches it.
func (n *Notifier) resolve() (config.Config, *mail.Dispatcher, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.dispatcher != nil {
		return n.cfg, n.dispatcher, nil
	}

	cfg, err := config.Resolve(n.opts)
	if err != nil {
		return config.Config{}, nil, err
	}

	sender := n.transport
	if sender == nil {
		sender = mail.NewSender(cfg, n.log)
	}
	engine := mail.NewEngine(sender, cfg, n.log)

	n.cfg = cfg
	n.dispatcher = mail.NewDispatcher(engine, cfg, n.log)
	return n.cfg, n.dispatcher, nil
}

func (n *Notifier) setState(s state) {
	n.mu.Lock()
	n.state = s
	n.mu.Unlock()
}

// Scope brackets one wrapped execution. Create it with Begin, finish it with
// a deferred End. The scope is not safe for concurrent use.
type Scope struct {
	n         *Notifier
	startedAt time.Time
	logger    *zap.SugaredLogger

	capture       *Capture
	restoreGlobal func()

	result  any
	details []mail.Detail
	handle  *mail.Handle
	ended   bool
}

// Begin starts a scope: it records the start time and, when attachLogs is
// set, creates a capture buffer, tees it into the scope logger, and tries to
// attach it to zap's global logger for the scope's lifetime. If another scope
// already holds the global logger, capture stays instance-scoped rather than
// clobbering it.
func (n *Notifier) Begin(ctx context.Context) (*Scope, error) {
	n.mu.Lock()
	switch n.state {
	case stateIdle, stateNotified, stateNotifyFailed:
	default:
		st := n.state
		n.mu.Unlock()
		return nil, fmt.Errorf("%w: Begin while %s", ErrBadState, st)
	}
	n.state = stateRunning
	n.mu.Unlock()

	s := &Scope{
		n:         n,
		startedAt: time.Now(),
		logger:    n.log,
	}
	if n.opts.AttachLogs {
		s.capture = NewCapture()
		s.logger = s.capture.TeeInto(n.log)
		if restore, err := s.capture.AttachToGlobal(); err == nil {
			s.restoreGlobal = restore
		} else {
			n.log.Debugw("Global log capture already held by another scope, capturing scope logger only")
		}
	}
	return s, nil
}

// Logger returns the scope logger. Records written through it are aggregated
// into the notification's log attachment when attachLogs is set.
func (s *Scope) Logger() *zap.SugaredLogger {
	return s.logger
}

// SetResult records the task's return value for the success report.
func (s *Scope) SetResult(v any) {
	s.result = v
}

// AddDetail appends one key/value pair to the report's details section.
// Insertion order is preserved in the rendered message.
func (s *Scope) AddDetail(key string, value any) {
	s.details = append(s.details, mail.Detail{Key: key, Value: value})
}

// Handle returns the async delivery handle once the scope has ended, nil in
// blocking mode or before End.
func (s *Scope) Handle() *mail.Handle {
	return s.handle
}

// End closes the scope and must run on every exit path, normally via defer.
// It detaches log capture, builds the outcome exactly once (reading *errp as
// the task fault and recovering a propagating panic), composes the message,
// and dispatches it.
//
// Propagation: the original task fault always wins. A panic is re-raised
// after notification; a task error stays in *errp, with a delivery failure
// appended via multierr so both are visible. On a successful task a blocking
// delivery failure becomes the returned error; with a nil errp delivery is
// best-effort and failures are only logged.
func (s *Scope) End(ctx context.Context, errp *error) {
	if s.ended {
		return
	}
	s.ended = true

	var fault error
	if errp != nil {
		fault = *errp
	}
	var panicked any
	var trace string
	if r := recover(); r != nil {
		panicked = r
		fault = fmt.Errorf("panic: %v", r)
		trace = string(debug.Stack())
	}

	if s.restoreGlobal != nil {
		s.restoreGlobal()
		s.restoreGlobal = nil
	}
	var captured string
	if s.capture != nil {
		captured = s.capture.String()
	}

	outcome := newOutcome(s.result, fault, trace, s.startedAt, time.Now(), captured)
	if outcome.Status == StatusSuccess {
		s.n.setState(stateSucceeded)
	} else {
		s.n.setState(stateFailed)
	}

	handle, deliverErr := s.n.deliverOutcome(ctx, outcome, s.details)
	s.handle = handle

	if panicked != nil {
		// The panic wins the exit path, so the delivery failure can only
		// surface through the log here (and through the handle in async mode).
		if deliverErr != nil {
			s.n.log.Errorw("Notification failed", "error", deliverErr)
		}
		panic(panicked)
	}
	if errp == nil {
		if deliverErr != nil {
			s.n.log.Errorw("Notification failed", "error", deliverErr)
		}
		return
	}
	if fault != nil {
		if deliverErr != nil {
			*errp = multierr.Append(fault, fmt.Errorf("additionally, notification failed: %w", deliverErr))
		}
		return
	}
	if deliverErr != nil {
		*errp = deliverErr
	}
}

// deliverOutcome composes and dispatches the completion notification.
func (n *Notifier) deliverOutcome(ctx context.Context, outcome Outcome, details []mail.Detail) (*mail.Handle, error) {
	n.setState(stateNotifying)

	cfg, dispatcher, err := n.resolve()
	if err != nil {
		n.setState(stateNotifyFailed)
		return nil, err
	}

	msg, err := mail.Compose(outcome.report(cfg.Subject, details), cfg.Subject, cfg.AttachLogs, n.template)
	if err != nil {
		n.setState(stateNotifyFailed)
		return nil, err
	}

	handle, err := dispatcher.Dispatch(ctx, msg)
	if err != nil {
		n.setState(stateNotifyFailed)
		return handle, err
	}

	if cfg.Async {
		// Terminal state is only known once the background delivery
		// resolves; a NotifyFailed here surfaces via the handle, not at
		// scope exit.
		go func() {
			<-handle.Done()
			if _, werr := handle.Wait(context.Background()); werr != nil {
				n.setState(stateNotifyFailed)
			} else {
				n.setState(stateNotified)
			}
		}()
		return handle, nil
	}

	n.setState(stateNotified)
	return handle, nil
}

// SendNotification sends an ad-hoc notification mid-scope, independent of
// task completion. The title doubles as the subject. It shares the
// dispatcher with scope-end delivery, so the single-in-flight contract holds
// across both.
func (n *Notifier) SendNotification(ctx context.Context, title, message string, details []mail.Detail, tmpl mail.Template) (*mail.Handle, error) {
	_, dispatcher, err := n.resolve()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	report := mail.TaskReport{
		Title:     title,
		Success:   true,
		Summary:   message,
		StartedAt: now,
		EndedAt:   now,
		Details:   details,
	}
	if tmpl == nil {
		tmpl = n.template
	}
	msg, err := mail.Compose(report, title, false, tmpl)
	if err != nil {
		return nil, err
	}
	return dispatcher.Dispatch(ctx, msg)
}
