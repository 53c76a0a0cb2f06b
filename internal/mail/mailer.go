// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuestForge Contributors

// Package mail delivers account emails over SMTP.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/smtp"
	"strings"

	"github.com/samber/oops"
)

// SMTPSender sends multipart (text + HTML) emails through a single
// SMTP relay.
type SMTPSender struct {
	addr string // host:port
	auth smtp.Auth
	host string
}

// NewSMTPSender creates an SMTPSender. username may be empty for an
// unauthenticated relay.
func NewSMTPSender(addr, username, password string) *SMTPSender {
	host := addr
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		host = addr[:i]
	}
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPSender{addr: addr, auth: auth, host: host}
}

// Send delivers a single email with text and HTML alternatives.
func (s *SMTPSender) Send(ctx context.Context, from, to, subject, text, html string) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("MAIL_SEND_FAILED").Wrap(err)
	}

	msg := buildMessage(from, to, subject, text, html)
	if err := smtp.SendMail(s.addr, s.auth, envelopeAddress(from), []string{to}, msg); err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("to", to).
			With("relay", s.addr).
			Wrap(err)
	}
	return nil
}

// altBoundary separates the multipart/alternative parts. Fixed rather
// than random: the parts are fully controlled templates, never
// user-supplied raw bytes.
const altBoundary = "qf-alt-8f3a1c"

// buildMessage assembles an RFC 5322 message with text and HTML
// alternatives.
func buildMessage(from, to, subject, text, html string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", altBoundary)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", altBoundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(text)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", altBoundary)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(html)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", altBoundary)
	return []byte(b.String())
}

// envelopeAddress strips an optional display name, leaving the bare
// address for the SMTP envelope.
func envelopeAddress(addr string) string {
	if start := strings.LastIndex(addr, "<"); start >= 0 {
		if end := strings.LastIndex(addr, ">"); end > start {
			return addr[start+1 : end]
		}
	}
	return addr
}

// NoopSender logs instead of sending. Used in development and tests.
type NoopSender struct {
	Logger *slog.Logger
}

// Send logs the would-be delivery and succeeds.
func (n NoopSender) Send(_ context.Context, _, to, subject, _, _ string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("email suppressed (noop sender)", "to", to, "subject", subject)
	return nil
}
