// Package ses sends mail through AWS SES v2.
package ses

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"campaigner/internal/domain"
)

type Client struct {
	client *sesv2.Client
}

// NewClient builds an SES backend from static credentials. With any
// credential missing it returns an unconfigured client, which the
// gateway skips during backend selection.
func NewClient(ctx context.Context, region, accessKey, secretKey string) (*Client, error) {
	if region == "" || accessKey == "" || secretKey == "" {
		return &Client{}, nil
	}

	creds := credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &Client{client: sesv2.NewFromConfig(awsCfg)}, nil
}

func (c *Client) Name() string { return "ses" }

func (c *Client) Configured() bool { return c.client != nil }

func (c *Client) Send(ctx context.Context, msg domain.EmailMessage) error {
	if c.client == nil {
		return errors.New("ses: not configured")
	}

	from := msg.FromEmail
	if msg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", msg.FromName, msg.FromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: msg.To,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTML)},
					Text: &types.Content{Data: aws.String(msg.Text)},
				},
			},
		},
	}

	if _, err := c.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}
