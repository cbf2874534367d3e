// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"time"

	"github.com/telekom/go-mail-me/pkg/version"
)

// LogAttachmentName is the fixed filename used for attached captured output.
const LogAttachmentName = "task.log"

// Compose builds the notification message for a task report. It selects the
// success or failure template variant unless tmpl overrides the choice,
// renders the body, and attaches captured output when the configuration asks
// for it. Compose is pure: no I/O, no clock reads, no input mutation, and the
// same inputs always yield the same message.
func Compose(report TaskReport, subject string, attachLogs bool, tmpl Template) (*Message, error) {
	if tmpl == nil {
		if report.Success {
			tmpl = SuccessTemplate()
		} else {
			tmpl = FailureTemplate()
		}
	}

	params := TemplateParams{
		Title:     report.Title,
		Message:   report.Summary,
		Details:   report.Details,
		Duration:  report.EndedAt.Sub(report.StartedAt).Round(time.Millisecond).String(),
		Timestamp: report.EndedAt.Format("2006-01-02 15:04:05"),
		Generator: version.Generator(),
	}
	if !report.Success {
		params.ErrorInfo = report.Trace
	}

	body, err := tmpl.Render(params)
	if err != nil {
		return nil, err
	}

	msg := &Message{
		Subject: subject,
		Body:    body,
	}
	if attachLogs && report.CapturedOutput != "" {
		msg.Attachments = []Attachment{{
			Filename: LogAttachmentName,
			Data:     []byte(report.CapturedOutput),
		}}
	}
	return msg, nil
}
