// Package notify provides the task-facing entry points: a wrapping form that
// runs a unit of work and mails its outcome, and a scope-guard form for
// bracketing a block of code. Both delegate to one scoped core that captures
// the outcome (status, result or fault, timing, captured logs) exactly once
// and hands it to the composer and dispatcher in pkg/mail.
package notify
