// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"bytes"
	"errors"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ErrCaptureActive is returned when a capture tries to attach to the global
// logger while another capture holds it.
var ErrCaptureActive = errors.New("a log capture is already attached to the global logger")

// Capture is a per-scope log buffer. It is created on scope entry, tee'd into
// the scope logger for exactly the scope's lifetime, and read once at scope
// exit. There is no process-wide singleton: each scope owns its capture.
type Capture struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewCapture creates an empty capture buffer.
func NewCapture() *Capture {
	return &Capture{}
}

// Write implements zapcore.WriteSyncer.
func (c *Capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

// Sync implements zapcore.WriteSyncer.
func (c *Capture) Sync() error { return nil }

// String returns everything captured so far.
func (c *Capture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Core returns a console-encoded zapcore.Core writing into the capture.
func (c *Capture) Core(enab zapcore.LevelEnabler) zapcore.Core {
	encCfg := zap.NewDevelopmentEncoderConfig()
	return zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(c), enab)
}

// TeeInto returns a copy of logger that additionally writes every record into
// the capture.
func (c *Capture) TeeInto(logger *zap.SugaredLogger) *zap.SugaredLogger {
	teed := logger.Desugar().WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, c.Core(zapcore.DebugLevel))
	}))
	return teed.Sugar()
}

var (
	globalCaptureMu     sync.Mutex
	globalCaptureActive bool
)

// AttachToGlobal tees the capture into zap's global logger so that code which
// logs via zap.L()/zap.S() is captured too. Only one capture may hold the
// global logger at a time; a second concurrent attach fails with
// ErrCaptureActive instead of clobbering the first. The returned restore
// function must be called on scope exit.
func (c *Capture) AttachToGlobal() (restore func(), err error) {
	globalCaptureMu.Lock()
	defer globalCaptureMu.Unlock()

	if globalCaptureActive {
		return nil, ErrCaptureActive
	}
	globalCaptureActive = true

	teed := zap.L().WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, c.Core(zapcore.DebugLevel))
	}))
	undo := zap.ReplaceGlobals(teed)

	return func() {
		globalCaptureMu.Lock()
		defer globalCaptureMu.Unlock()
		undo()
		globalCaptureActive = false
	}, nil
}
