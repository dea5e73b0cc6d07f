package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog/log"
)

// MessageHandler processes one SQS message body. A nil return deletes the
// message; an error leaves it to reappear after the visibility timeout.
type MessageHandler func(ctx context.Context, body string) error

// sqsErrorBackoff is the pause after a failed receive.
const sqsErrorBackoff = 5 * time.Second

// SQSConsumer long-polls one queue.
type SQSConsumer struct {
	client   *sqs.Client
	queueURL string
	backoff  time.Duration
}

// NewSQSConsumer loads the default AWS credential chain. endpoint overrides
// the service URL and may be empty.
func NewSQSConsumer(ctx context.Context, queueURL, region, endpoint string) (*SQSConsumer, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return &SQSConsumer{client: client, queueURL: queueURL, backoff: sqsErrorBackoff}, nil
}

// Run polls until ctx is cancelled.
func (c *SQSConsumer) Run(ctx context.Context, handler MessageHandler) {
	log.Info().Str("queue_url", c.queueURL).Msg("sqs: polling started")
	for {
		if ctx.Err() != nil {
			log.Info().Msg("sqs: polling stopped")
			return
		}
		err := c.pollOnce(ctx, handler)
		if err == nil || errors.Is(err, context.Canceled) {
			continue
		}
		log.Error().Err(err).Dur("retry_in", c.backoff).Msg("sqs: poll failed")
		select {
		case <-ctx.Done():
		case <-time.After(c.backoff):
		}
	}
}

func (c *SQSConsumer) pollOnce(ctx context.Context, handler MessageHandler) error {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     20,
		VisibilityTimeout:   60,
	})
	if err != nil {
		return fmt.Errorf("receive messages: %w", err)
	}

	for _, msg := range out.Messages {
		if msg.Body == nil {
			continue
		}
		if err := handler(ctx, *msg.Body); err != nil {
			log.Warn().Err(err).Str("message_id", aws.ToString(msg.MessageId)).Msg("sqs: message left for redelivery")
			continue
		}
		if _, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(c.queueURL),
			ReceiptHandle: msg.ReceiptHandle,
		}); err != nil {
			log.Error().Err(err).Str("message_id", aws.ToString(msg.MessageId)).Msg("sqs: delete failed")
		}
	}
	return nil
}
