// Package ses implements a Sink that notifies analysts via AWS SES v2.
package ses

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	gomail "github.com/emersion/go-message/mail"

	"github.com/shineum/phishtriage/internal/analysis"
	"github.com/shineum/phishtriage/internal/export"
	"github.com/shineum/phishtriage/internal/threat"
)

// maxRetries is the maximum number of retry attempts for transient failures.
const maxRetries = 3

// baseRetryDelay is the initial delay for exponential backoff.
const baseRetryDelay = 1 * time.Second

// Config holds the configuration for creating a Sink.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Sender          string
	Recipients      []string
	// MinLevel is the lowest threat level that triggers a notification.
	MinLevel threat.Level
	// AttachSanitized attaches the redacted .eml to the notification.
	AttachSanitized bool
}

// Sink sends analysis reports via the AWS SES v2 API.
type Sink struct {
	cfg       Config
	client    SendEmailAPI
	baseDelay time.Duration
}

// SendEmailAPI is the interface for the SES v2 SendEmail operation.
// Used for testing with mock implementations.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// New creates a new Sink with the given configuration.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewWithClient(cfg, sesv2.NewFromConfig(awsCfg)), nil
}

// NewWithClient creates a Sink with a custom client, used for testing.
func NewWithClient(cfg Config, client SendEmailAPI) *Sink {
	if cfg.MinLevel == "" {
		cfg.MinLevel = threat.LevelMedium
	}
	return &Sink{
		cfg:       cfg,
		client:    client,
		baseDelay: baseRetryDelay,
	}
}

// Deliver emails the Markdown report when the threat level reaches the
// configured minimum. Lower levels are skipped without error.
func (s *Sink) Deliver(ctx context.Context, a *analysis.Analysis) error {
	if !a.Threat.Level.AtLeast(s.cfg.MinLevel) {
		slog.Debug("threat level below notification threshold",
			"id", a.Email.ID,
			"level", a.Threat.Level,
			"min_level", s.cfg.MinLevel,
		)
		return nil
	}

	var input *sesv2.SendEmailInput
	if s.cfg.AttachSanitized {
		raw, err := buildRawMessage(s.cfg, a)
		if err != nil {
			return fmt.Errorf("failed to build raw message: %w", err)
		}
		input = &sesv2.SendEmailInput{
			Destination: &types.Destination{ToAddresses: s.cfg.Recipients},
			Content: &types.EmailContent{
				Raw: &types.RawMessage{
					Data: raw,
				},
			},
		}
	} else {
		input = buildSimpleInput(s.cfg, a)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			slog.Debug("retrying SES API request",
				"attempt", attempt,
				"max_retries", maxRetries,
			)
			if err := sleepWithContext(ctx, backoffDelay(s.baseDelay, attempt)); err != nil {
				return fmt.Errorf("context cancelled during retry wait: %w", err)
			}
		}

		_, err := s.client.SendEmail(ctx, input)
		if err == nil {
			slog.Info("analyst notification sent",
				"id", a.Email.ID,
				"level", a.Threat.Level,
				"recipients", len(s.cfg.Recipients),
			)
			return nil
		}

		lastErr = err
		slog.Warn("SES API error",
			"attempt", attempt,
			"error", err,
		)
	}

	return fmt.Errorf("SES API request failed after %d retries: %w", maxRetries, lastErr)
}

// Name returns the sink name.
func (s *Sink) Name() string {
	return "ses"
}

// notificationSubject prefixes the analyzed subject with the threat level.
func notificationSubject(a *analysis.Analysis) string {
	subject := a.Email.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	return fmt.Sprintf("[phishtriage] %s threat (score %d): %s", a.Threat.Level, a.Threat.Score, subject)
}

// buildSimpleInput creates a SES SendEmailInput carrying the report as text.
func buildSimpleInput(cfg Config, a *analysis.Analysis) *sesv2.SendEmailInput {
	return &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(cfg.Sender),
		Destination: &types.Destination{
			ToAddresses: cfg.Recipients,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(notificationSubject(a)),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Text: &types.Content{
						Data:    aws.String(export.Markdown(a)),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}
}

// buildRawMessage constructs a MIME message with the report as the body and
// the sanitized original attached as sanitized-<id>.eml.
func buildRawMessage(cfg Config, a *analysis.Analysis) ([]byte, error) {
	var h gomail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*gomail.Address{{Address: cfg.Sender}})
	to := make([]*gomail.Address, 0, len(cfg.Recipients))
	for _, r := range cfg.Recipients {
		to = append(to, &gomail.Address{Address: r})
	}
	h.SetAddressList("To", to)
	h.SetSubject(notificationSubject(a))
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}

	var buf bytes.Buffer
	mw, err := gomail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}

	// Write body part
	var bodyHeader gomail.InlineHeader
	bodyHeader.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	body, err := mw.CreateSingleInline(bodyHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create body part: %w", err)
	}
	if _, err := io.WriteString(body, export.Markdown(a)); err != nil {
		return nil, fmt.Errorf("failed to write body part: %w", err)
	}
	if err := body.Close(); err != nil {
		return nil, fmt.Errorf("failed to close body part: %w", err)
	}

	// Write the sanitized original
	var attHeader gomail.AttachmentHeader
	attHeader.SetContentType("application/octet-stream", nil)
	attHeader.SetFilename("sanitized-" + a.Email.ID + ".eml")
	att, err := mw.CreateAttachment(attHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create attachment part: %w", err)
	}
	if _, err := io.WriteString(att, export.SanitizedEML(a)); err != nil {
		return nil, fmt.Errorf("failed to write attachment part: %w", err)
	}
	if err := att.Close(); err != nil {
		return nil, fmt.Errorf("failed to close attachment part: %w", err)
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close message writer: %w", err)
	}
	return buf.Bytes(), nil
}

// backoffDelay returns base, 2*base, 4*base... for attempts 1, 2, 3...
func backoffDelay(base time.Duration, attempt int) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// sleepWithContext waits for the specified duration or until the context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
