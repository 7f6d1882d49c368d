// Package notify delivers MFA challenge codes to users out of band.
package notify

import "context"

// EmailSender delivers a message to an email address.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender delivers a message to a phone number.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}
