// Package ses implements a Provider that sends mail via AWS SES v2.
package ses

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/shineum/ses-forwarder-lite/internal/email"
)

const charsetUTF8 = "UTF-8"

// SESProviderConfig holds the configuration for creating a SESProvider.
// An empty Region uses the region of the Lambda environment.
type SESProviderConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// SESProvider sends mail via the AWS SES v2 API.
type SESProvider struct {
	client SendEmailAPI
}

// SendEmailAPI is the interface for the SES v2 SendEmail operation.
// Used for testing with mock implementations.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// New creates a new SESProvider with the given configuration.
func New(ctx context.Context, cfg SESProviderConfig) (*SESProvider, error) {
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

	return &SESProvider{client: sesv2.NewFromConfig(awsCfg)}, nil
}

// NewWithClient creates a SESProvider with a custom client, used for testing.
func NewWithClient(client SendEmailAPI) *SESProvider {
	return &SESProvider{client: client}
}

// SendRaw sends raw MIME content. The explicit destination overrides the
// message's own To/Cc headers, so the original addressing is kept intact
// for the reader.
func (s *SESProvider) SendRaw(ctx context.Context, destinations []string, raw []byte) (string, error) {
	input := &sesv2.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: destinations,
		},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{
				Data: raw,
			},
		},
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return "", fmt.Errorf("SES SendEmail (raw) failed: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

// SendBounce sends the bounce notice as a simple text message.
func (s *SESProvider) SendBounce(ctx context.Context, b *email.Bounce) (string, error) {
	out, err := s.client.SendEmail(ctx, buildBounceInput(b))
	if err != nil {
		return "", fmt.Errorf("SES SendEmail (bounce) failed: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

// Name returns the provider name.
func (s *SESProvider) Name() string {
	return "ses"
}

func buildBounceInput(b *email.Bounce) *sesv2.SendEmailInput {
	return &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(b.From),
		Destination: &types.Destination{
			ToAddresses: b.To,
			CcAddresses: b.Cc,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(b.Subject),
					Charset: aws.String(charsetUTF8),
				},
				Body: &types.Body{
					Text: &types.Content{
						Data:    aws.String(b.TextBody),
						Charset: aws.String(charsetUTF8),
					},
				},
			},
		},
	}
}
