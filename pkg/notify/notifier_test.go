// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/telekom/go-mail-me/pkg/config"
	"github.com/telekom/go-mail-me/pkg/mail"
	"github.com/telekom/go-mail-me/pkg/system"
)

// stubSender records messages instead of talking SMTP.
type stubSender struct {
	mu            sync.Mutex
	attempts      int
	sendErr       error
	delay         time.Duration
	lastReceivers []string
	lastMsg       *mail.Message
}

func (s *stubSender) Send(receivers []string, msg *mail.Message) error {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	s.lastReceivers = receivers
	s.lastMsg = msg
	return s.sendErr
}

func (s *stubSender) GetHost() string { return "stub.example.com" }
func (s *stubSender) GetPort() int    { return 25 }

func (s *stubSender) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func (s *stubSender) LastMsg() *mail.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMsg
}

func intPtr(i int) *int { return &i }

func testOpts() config.Options {
	return config.Options{
		Recipients:       []string{"a@x.com"},
		Host:             "smtp.test.example.com",
		Port:             587,
		Username:         "u@x.com",
		Password:         "secret",
		InitialBackoffMs: 1,
		MaxBackoffMs:     2,
	}
}

func testLogger(t *testing.T) *zap.SugaredLogger {
	t.Helper()
	return system.NewTestLogger()
}

func TestRun_SuccessSendsSuccessNotification(t *testing.T) {
	stub := &stubSender{}
	n := New(testLogger(t), testOpts()).WithTransport(stub)

	err := n.Run(context.Background(), func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)

	require.Equal(t, 1, stub.Attempts())
	msg := stub.LastMsg()
	assert.Equal(t, "Task Completed", msg.Subject)
	assert.Contains(t, msg.Body, "Task completed successfully!")
	assert.Equal(t, []string{"a@x.com"}, stub.lastReceivers)
}

func TestRun_TaskErrorStillNotifiesAndReRaises(t *testing.T) {
	stub := &stubSender{}
	n := New(testLogger(t), testOpts()).WithTransport(stub)

	boom := errors.New("boom")
	err := n.Run(context.Background(), func(ctx context.Context) error {
		return boom
	})

	// The delivery must have happened before the fault came back.
	require.Equal(t, 1, stub.Attempts())
	assert.Contains(t, stub.LastMsg().Body, "boom")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom, "the original task fault must never be suppressed")
}

func TestRun_DeliveryFailureOnFailedTaskReportsBoth(t *testing.T) {
	stub := &stubSender{sendErr: &mail.TransportError{Transient: false, Err: errors.New("535 bad credentials")}}
	n := New(testLogger(t), testOpts()).WithTransport(stub)

	boom := errors.New("boom")
	err := n.Run(context.Background(), func(ctx context.Context) error {
		return boom
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom, "task fault stays primary")
	assert.ErrorIs(t, err, mail.ErrDeliveryFatal, "delivery failure must stay visible as secondary")
	assert.Contains(t, err.Error(), "notification failed")
}

func TestRun_DeliveryFailureOnSuccessfulTaskIsPrimary(t *testing.T) {
	stub := &stubSender{sendErr: &mail.TransportError{Transient: true, Err: errors.New("conn reset")}}
	opts := testOpts()
	opts.MaxRetries = intPtr(1)
	n := New(testLogger(t), opts).WithTransport(stub)

	err := n.Run(context.Background(), func(ctx context.Context) error {
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, mail.ErrDeliveryExhausted)
	assert.Equal(t, 2, stub.Attempts())
}

func TestRun_PanicNotifiesThenReRaises(t *testing.T) {
	stub := &stubSender{}
	n := New(testLogger(t), testOpts()).WithTransport(stub)

	require.PanicsWithValue(t, "kaboom", func() {
		_ = n.Run(context.Background(), func(ctx context.Context) error {
			panic("kaboom")
		})
	})

	require.Equal(t, 1, stub.Attempts())
	body := stub.LastMsg().Body
	assert.Contains(t, body, "kaboom")
	assert.Contains(t, body, "Task failed")
}

func TestRun_PanicWithDeliveryFailureKeepsBothVisible(t *testing.T) {
	stub := &stubSender{sendErr: &mail.TransportError{Transient: false, Err: errors.New("denied")}}
	capture := NewCapture()
	n := New(capture.TeeInto(testLogger(t)), testOpts()).WithTransport(stub)

	require.PanicsWithValue(t, "kaboom", func() {
		_ = n.Run(context.Background(), func(ctx context.Context) error {
			panic("kaboom")
		})
	}, "the original panic must win the exit path")

	// The delivery was attempted and its failure is visible in the logs.
	require.Equal(t, 1, stub.Attempts())
	assert.Contains(t, capture.String(), "Notification failed")
	assert.Contains(t, capture.String(), "denied")
}

func TestRun_ConfigurationErrorIsDeferredToDispatch(t *testing.T) {
	stub := &stubSender{}
	opts := testOpts()
	opts.Recipients = nil
	n := New(testLogger(t), opts).WithTransport(stub)

	taskRan := false
	err := n.Run(context.Background(), func(ctx context.Context) error {
		taskRan = true
		return nil
	})

	assert.True(t, taskRan, "a broken configuration must not prevent the task from running")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfiguration)
	assert.Equal(t, 0, stub.Attempts())
}

func TestScope_AsyncDeliveryFaultSurfacesOnHandle(t *testing.T) {
	stub := &stubSender{sendErr: &mail.TransportError{Transient: false, Err: errors.New("denied")}}
	opts := testOpts()
	opts.Async = true
	n := New(testLogger(t), opts).WithTransport(stub)

	scope, err := n.Begin(context.Background())
	require.NoError(t, err)

	var taskErr error
	scope.End(context.Background(), &taskErr)
	assert.NoError(t, taskErr, "async delivery faults must not surface at scope exit")

	handle := scope.Handle()
	require.NotNil(t, handle)
	_, werr := handle.Wait(context.Background())
	assert.ErrorIs(t, werr, mail.ErrDeliveryFatal)
}

func TestScope_AsyncReturnsBeforeTransportCompletes(t *testing.T) {
	stub := &stubSender{delay: 500 * time.Millisecond}
	opts := testOpts()
	opts.Async = true
	n := New(testLogger(t), opts).WithTransport(stub)

	scope, err := n.Begin(context.Background())
	require.NoError(t, err)

	start := time.Now()
	var taskErr error
	scope.End(context.Background(), &taskErr)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	require.NoError(t, taskErr)

	result, werr := scope.Handle().Wait(context.Background())
	require.NoError(t, werr)
	assert.Equal(t, mail.FinalSent, result.Final)
}

func TestNotifier_SecondDispatchWhileInFlightFails(t *testing.T) {
	stub := &stubSender{delay: 300 * time.Millisecond}
	opts := testOpts()
	opts.Async = true
	n := New(testLogger(t), opts).WithTransport(stub)

	first, err := n.SendNotification(context.Background(), "Progress", "halfway there", nil, nil)
	require.NoError(t, err)

	_, err = n.SendNotification(context.Background(), "Progress", "impatient", nil, nil)
	assert.ErrorIs(t, err, mail.ErrDeliveryInFlight)

	_, _ = first.Wait(context.Background())
}

func TestNotifier_BeginWhileRunningFails(t *testing.T) {
	n := New(testLogger(t), testOpts()).WithTransport(&stubSender{})

	scope, err := n.Begin(context.Background())
	require.NoError(t, err)

	_, err = n.Begin(context.Background())
	assert.ErrorIs(t, err, ErrBadState)

	var taskErr error
	scope.End(context.Background(), &taskErr)

	// Terminal states allow a fresh scope.
	_, err = n.Begin(context.Background())
	assert.NoError(t, err)
}

func TestNotifier_SendNotification(t *testing.T) {
	stub := &stubSender{}
	n := New(testLogger(t), testOpts()).WithTransport(stub)

	details := []mail.Detail{{Key: "processed", Value: 1200}, {Key: "skipped", Value: 7}}
	_, err := n.SendNotification(context.Background(), "Halfway", "600 of 1200 rows done", details, nil)
	require.NoError(t, err)

	msg := stub.LastMsg()
	require.NotNil(t, msg)
	assert.Equal(t, "Halfway", msg.Subject, "the title doubles as the subject")
	assert.Contains(t, msg.Body, "600 of 1200 rows done")
	processed := strings.Index(msg.Body, "processed: 1200")
	skipped := strings.Index(msg.Body, "skipped: 7")
	require.GreaterOrEqual(t, processed, 0)
	require.GreaterOrEqual(t, skipped, 0)
	assert.Less(t, processed, skipped)
}

func TestNotifier_CustomTemplate(t *testing.T) {
	stub := &stubSender{}
	tmpl, err := mail.NewHTMLTemplate("minimal", "STATUS {{.Message}}")
	require.NoError(t, err)
	n := New(testLogger(t), testOpts()).WithTransport(stub).WithTemplate(tmpl)

	require.NoError(t, n.Run(context.Background(), func(ctx context.Context) error { return nil }))
	assert.Equal(t, "STATUS Task completed successfully!", stub.LastMsg().Body)
}

func TestScope_AttachLogsCapturesTaskOutput(t *testing.T) {
	stub := &stubSender{}
	opts := testOpts()
	opts.AttachLogs = true
	n := New(testLogger(t), opts).WithTransport(stub)

	err := n.Run(context.Background(), func(ctx context.Context) error {
		log := LoggerFromContext(ctx)
		log.Infow("line1")
		log.Infow("line2")
		return nil
	})
	require.NoError(t, err)

	msg := stub.LastMsg()
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, mail.LogAttachmentName, msg.Attachments[0].Filename)
	captured := string(msg.Attachments[0].Data)
	assert.Contains(t, captured, "line1")
	assert.Contains(t, captured, "line2")
}

func TestScope_NoAttachmentWithoutAttachLogs(t *testing.T) {
	stub := &stubSender{}
	n := New(testLogger(t), testOpts()).WithTransport(stub)

	err := n.Run(context.Background(), func(ctx context.Context) error {
		LoggerFromContext(ctx).Infow("noise")
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, stub.LastMsg().Attachments)
}

func TestScope_AddDetail(t *testing.T) {
	stub := &stubSender{}
	n := New(testLogger(t), testOpts()).WithTransport(stub)

	scope, err := n.Begin(context.Background())
	require.NoError(t, err)
	scope.AddDetail("rows", 42)
	scope.AddDetail("source", "s3://bucket/data")

	var taskErr error
	scope.End(context.Background(), &taskErr)
	require.NoError(t, taskErr)

	body := stub.LastMsg().Body
	assert.Contains(t, body, "rows: 42")
	assert.Contains(t, body, "source: s3://bucket/data")
}

func TestScope_EndIsIdempotent(t *testing.T) {
	stub := &stubSender{}
	n := New(testLogger(t), testOpts()).WithTransport(stub)

	scope, err := n.Begin(context.Background())
	require.NoError(t, err)

	var taskErr error
	scope.End(context.Background(), &taskErr)
	scope.End(context.Background(), &taskErr)

	assert.Equal(t, 1, stub.Attempts())
}
