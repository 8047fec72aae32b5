package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/mithaq/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// MailSender delivers one HTML email. Implementations report failure through
// the returned error; callers decide whether to retry.
type MailSender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// SESMailSender sends emails using AWS SES
type SESMailSender struct {
	sesClient   *ses.Client
	fromAddress string
	logger      *slog.Logger
}

// NewSESMailSender creates a new AWS SES mail sender
func NewSESMailSender(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*SESMailSender, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESMailSender{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

func (s *SESMailSender) Send(ctx context.Context, to, subject, html string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(html),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}

	s.logger.Debug("email sent via SES",
		slog.String("to", logger.SanitizedEmail(to)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}

// SendGridMailSender sends emails through the SendGrid v3 API
type SendGridMailSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	logger    *slog.Logger
}

func NewSendGridMailSender(apiKey, fromEmail, fromName string, logger *slog.Logger) *SendGridMailSender {
	return &SendGridMailSender{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
		logger:    logger,
	}
}

func (s *SendGridMailSender) Send(ctx context.Context, to, subject, html string) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	recipient := mail.NewEmail("", to)
	message := mail.NewSingleEmail(from, subject, recipient, "", html)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d", response.StatusCode)
	}

	s.logger.Debug("email sent via SendGrid",
		slog.String("to", logger.SanitizedEmail(to)),
		slog.Int("status", response.StatusCode))

	return nil
}

// LogMailSender only logs outgoing mail. Used in development.
type LogMailSender struct {
	logger *slog.Logger
}

func NewLogMailSender(logger *slog.Logger) *LogMailSender {
	return &LogMailSender{logger: logger}
}

func (s *LogMailSender) Send(ctx context.Context, to, subject, html string) error {
	s.logger.InfoContext(ctx, "email (log provider)",
		slog.String("to", logger.SanitizedEmail(to)),
		slog.String("subject", subject),
		slog.Int("html_bytes", len(html)))
	return nil
}
