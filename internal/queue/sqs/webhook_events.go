// Package sqsqueue carries provider delivery callbacks from the webhook
// receiver to the processor that folds them into the event log.
package sqsqueue

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"campaigner/internal/domain"
)

type WebhookProducer struct {
	SQS      *sqs.Client
	QueueURL string
}

// Enqueue publishes one provider event. The envelope stays small; SQS
// has a 256KB message size limit and the processor only needs the keys.
func (p *WebhookProducer) Enqueue(ctx context.Context, ev domain.ProviderEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = p.SQS.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &p.QueueURL,
		MessageBody: str(string(body)),
	})
	return err
}

type Handler func(ctx context.Context, ev domain.ProviderEvent) error

type WebhookConsumer struct {
	SQS      *sqs.Client
	QueueURL string

	WaitTimeSeconds   int32
	MaxMessages       int32
	VisibilityTimeout int32
}

// PollConcurrent processes webhook events with a worker pool. A message
// is deleted only after its handler succeeds; handler errors leave it
// for SQS redrive/DLQ. Malformed payloads are deleted immediately so
// they cannot loop forever.
func (c *WebhookConsumer) PollConcurrent(ctx context.Context, workers int, handler Handler) error {
	if workers <= 0 {
		workers = 1
	}

	jobs := make(chan types.Message, workers*2)
	errCh := make(chan error, 1)

	sendErr := func(err error) {
		select {
		case errCh <- err:
		default:
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				c.handleOne(ctx, m, handler)
			}
		}()
	}

	go func() {
		defer close(jobs)

		for {
			if ctx.Err() != nil {
				sendErr(ctx.Err())
				return
			}

			out, err := c.SQS.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
				QueueUrl:            &c.QueueURL,
				MaxNumberOfMessages: c.MaxMessages,
				WaitTimeSeconds:     c.WaitTimeSeconds,
				VisibilityTimeout:   c.VisibilityTimeout,
			})
			if err != nil {
				slog.Error("sqs receive webhook message failed", "err", err)
				time.Sleep(500 * time.Millisecond)
				continue
			}

			for _, m := range out.Messages {
				select {
				case jobs <- m:
				case <-ctx.Done():
					sendErr(ctx.Err())
					return
				}
			}
		}
	}()

	err := <-errCh
	// Drain whatever the producer already handed out before returning.
	wg.Wait()
	return err
}

func (c *WebhookConsumer) handleOne(ctx context.Context, m types.Message, handler Handler) {
	if m.Body == nil {
		c.delete(ctx, m)
		return
	}

	var ev domain.ProviderEvent
	if err := json.Unmarshal([]byte(*m.Body), &ev); err != nil {
		c.delete(ctx, m)
		return
	}

	if err := handler(ctx, ev); err != nil {
		slog.Error("webhook event handler error",
			"err", err, "provider", ev.Provider, "event", ev.Event, "campaign_id", ev.CampaignID)
		return
	}
	c.delete(ctx, m)
}

func (c *WebhookConsumer) delete(ctx context.Context, m types.Message) {
	_, _ = c.SQS.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      &c.QueueURL,
		ReceiptHandle: m.ReceiptHandle,
	})
}

func str(s string) *string { return &s }
