package notify

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogSMSSender writes SMS messages to the log instead of a gateway. Used in
// development and as the default until an SMS provider is configured.
// TODO: wire a real SMS gateway once the provider account is provisioned.
type LogSMSSender struct{}

func (LogSMSSender) SendSMS(_ context.Context, to, body string) error {
	log.Info().Str("to", to).Str("body", body).Msg("SMS (log sender)")
	return nil
}

// LogEmailSender is the email counterpart of LogSMSSender.
type LogEmailSender struct{}

func (LogEmailSender) SendEmail(_ context.Context, to, subject, _ string) error {
	log.Info().Str("to", to).Str("subject", subject).Msg("Email (log sender)")
	return nil
}

var (
	_ SMSSender   = LogSMSSender{}
	_ EmailSender = LogEmailSender{}
)
