// internal/common/mailer/ses.go
package mailer

import (
	"context"
	"errors"
	"time"

	stderrors "nudge-engine/internal/common/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// Sender is the external send capability. Implementations must return the
// provider-assigned message id on success; delivery-status events arriving
// later reference that id.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) (string, error)
}

// SESAPI is the slice of the SES client used here, extracted for mocking.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESMailer sends email through AWS SES with a bounded per-message timeout
// so one slow send cannot stall a dispatch batch.
type SESMailer struct {
	client    SESAPI
	fromEmail string
	timeout   time.Duration
}

func NewSESMailer(ctx context.Context, region, fromEmail string, timeout time.Duration) (*SESMailer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SESMailer{
		client:    ses.NewFromConfig(cfg),
		fromEmail: fromEmail,
		timeout:   timeout,
	}, nil
}

// NewSESMailerWithClient wires an existing client, used in tests.
func NewSESMailerWithClient(client SESAPI, fromEmail string, timeout time.Duration) *SESMailer {
	return &SESMailer{client: client, fromEmail: fromEmail, timeout: timeout}
}

func (m *SESMailer) Send(ctx context.Context, to, subject, htmlBody string) (string, error) {
	sendCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	out, err := m.client.SendEmail(sendCtx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody)},
			},
		},
		Source: aws.String(m.fromEmail),
	})
	if err != nil {
		if errors.Is(sendCtx.Err(), context.DeadlineExceeded) {
			return "", stderrors.NewEmailSendTimeoutError(to, m.timeout)
		}
		return "", stderrors.NewEmailSendFailedError(to, err)
	}

	return aws.ToString(out.MessageId), nil
}
