package transport

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESSender delivers mail through AWS SES using the SDK v2. SES has no
// native conversation threading, so thread continuity relies on the
// In-Reply-To header alone.
type SESSender struct {
	client *sesv2.Client
	from   string
}

// NewSESSender creates an SES sender. When accessKey and secretKey are
// empty the default AWS credential chain is used.
func NewSESSender(ctx context.Context, region, accessKey, secretKey, from string) (*SESSender, error) {
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return &SESSender{client: sesv2.NewFromConfig(cfg), from: from}, nil
}

// Name identifies the channel in logs and audit entries.
func (s *SESSender) Name() string { return "ses" }

// Send delivers one message through SES.
func (s *SESSender) Send(ctx context.Context, msg Message) (*SendResult, error) {
	from := msg.From
	if from == "" {
		from = s.from
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")},
				},
			},
		},
	}
	if msg.UnsubscribeURL != "" {
		input.Content.Simple.Headers = append(input.Content.Simple.Headers, types.MessageHeader{
			Name:  aws.String("List-Unsubscribe"),
			Value: aws.String("<" + msg.UnsubscribeURL + ">"),
		})
	}
	if msg.InReplyTo != "" {
		input.Content.Simple.Headers = append(input.Content.Simple.Headers,
			types.MessageHeader{Name: aws.String("In-Reply-To"), Value: aws.String(msg.InReplyTo)},
			types.MessageHeader{Name: aws.String("References"), Value: aws.String(msg.InReplyTo)},
		)
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("ses send: %w", err)
	}

	messageID := ""
	if result.MessageId != nil {
		messageID = *result.MessageId
	}

	// Reuse the inbound thread ID so followups keep grouping.
	return &SendResult{MessageID: messageID, ThreadID: msg.ThreadID}, nil
}
