// Package notify defines the outbound notification adapter boundary.
// Provider clients (SendGrid, SES, Twilio, SNS) are external
// collaborators that satisfy Notifier; which one is used is a
// configuration choice made at startup, never a type switch inside
// business code.
package notify

import (
	"context"
	"log"
)

// Notifier is the fixed capability set every outbound adapter exposes.
// Subject may be empty for transports without one (SMS).
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// LogNotifier writes notifications to the process log. It is the
// default adapter for development and tests.
type LogNotifier struct{}

// Send logs the notification instead of delivering it.
func (LogNotifier) Send(ctx context.Context, recipient, subject, body string) error {
	log.Printf("notify: to=%s subject=%q body=%q", recipient, subject, body)
	return nil
}

// New selects an adapter by configured name. Unknown names fall back to
// the log adapter so a misconfigured provider never breaks auth flows.
func New(provider string) Notifier {
	switch provider {
	case "log", "":
		return LogNotifier{}
	default:
		log.Printf("notify: unknown provider %q, falling back to log", provider)
		return LogNotifier{}
	}
}
