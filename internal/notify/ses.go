package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESEmailSender implements EmailSender using AWS SES.
type SESEmailSender struct {
	client      *ses.Client
	fromAddress string
}

// NewSESEmailSender creates an SES-backed email sender.
func NewSESEmailSender(client *ses.Client, fromAddress string) *SESEmailSender {
	return &SESEmailSender{client: client, fromAddress: fromAddress}
}

// NewSESEmailSenderFromConfig builds the SES client from the default AWS
// config chain for the given region.
func NewSESEmailSenderFromConfig(ctx context.Context, region, fromAddress string) (*SESEmailSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSESEmailSender(ses.NewFromConfig(cfg), fromAddress), nil
}

// SendEmail sends a single plain-text email via SES.
func (s *SESEmailSender) SendEmail(ctx context.Context, to, subject, body string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data:    aws.String(body),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}
	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("ses send to %s failed: %w", to, err)
	}
	return nil
}

var _ EmailSender = (*SESEmailSender)(nil)
