package mail

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

const charsetUTF8 = "UTF-8"

type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SES is a Mail implementation backed by Amazon Simple Email Service.
type SES struct {
	client      sesAPI
	defaultFrom string
}

// SESConfig configures the SES implementation.
type SESConfig struct {
	// Region is the AWS region.
	Region string
	// Endpoint overrides the AWS endpoint (localstack and friends).
	Endpoint string
	// AccessKey is the static access key ID.
	AccessKey string
	// SecretKey is the static secret access key.
	SecretKey string
	// From is the default sender when Message.From is empty.
	From string
}

// NewSES constructs an SES mail sender using the default AWS credential chain
// unless static keys are supplied.
func NewSES(ctx context.Context, cfg SESConfig) (*SES, error) {
	opts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("mail: load aws config: %w", err)
	}

	client := ses.NewFromConfig(awsCfg, func(o *ses.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &SES{client: client, defaultFrom: cfg.From}, nil
}

// Send delivers a message through SES and returns the SES message id.
func (s *SES) Send(ctx context.Context, msg Message) (string, error) {
	from, err := sender(msg, s.defaultFrom)
	if err != nil {
		return "", err
	}

	body := &types.Body{}
	if msg.TextBody != "" {
		body.Text = &types.Content{Charset: aws.String(charsetUTF8), Data: aws.String(msg.TextBody)}
	}
	if msg.HTMLBody != "" {
		body.Html = &types.Content{Charset: aws.String(charsetUTF8), Data: aws.String(msg.HTMLBody)}
	}

	out, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(from),
		Destination: &types.Destination{
			ToAddresses:  msg.To,
			CcAddresses:  msg.Cc,
			BccAddresses: msg.Bcc,
		},
		Message: &types.Message{
			Subject: &types.Content{Charset: aws.String(charsetUTF8), Data: aws.String(msg.Subject)},
			Body:    body,
		},
	})
	if err != nil {
		return "", fmt.Errorf("mail: ses send: %w", err)
	}

	return aws.ToString(out.MessageId), nil
}

// Close implements io.Closer.
func (s *SES) Close() error {
	return nil
}
