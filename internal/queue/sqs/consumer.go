package sqsqueue

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// queue holds the connection and receive tuning shared by all consumers.
type queue struct {
	SQS      *sqs.Client
	QueueURL string

	WaitTimeSeconds   int32
	MaxMessages       int32
	VisibilityTimeout int32
}

func (q *queue) delete(ctx context.Context, m types.Message) {
	_, _ = q.SQS.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      &q.QueueURL,
		ReceiptHandle: m.ReceiptHandle,
	})
}

// pollConcurrent runs a receive loop feeding a pool of workers. Each
// message is JSON-decoded into T; undecodable messages are deleted so a
// poison payload cannot loop forever. A message is deleted only when its
// handler returns nil; on handler error it is left for SQS redrive and
// eventually the DLQ. Returns when ctx is canceled, after in-flight
// messages finish.
func pollConcurrent[T any](ctx context.Context, q *queue, workers int, kind string, handle func(context.Context, T) error) error {
	if workers <= 0 {
		workers = 1
	}

	msgs := make(chan types.Message, workers*2)
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
			for m := range msgs {
				if m.Body == nil {
					q.delete(ctx, m)
					continue
				}
				var job T
				if err := json.Unmarshal([]byte(*m.Body), &job); err != nil {
					slog.Warn("sqs dropping undecodable message", "queue", kind, "err", err)
					q.delete(ctx, m)
					continue
				}
				if err := handle(ctx, job); err != nil {
					slog.Error("sqs handler error", "queue", kind, "err", err)
					continue
				}
				q.delete(ctx, m)
			}
		}()
	}

	go func() {
		defer close(msgs)
		for {
			if ctx.Err() != nil {
				sendErr(ctx.Err())
				return
			}
			out, err := q.SQS.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
				QueueUrl:            &q.QueueURL,
				MaxNumberOfMessages: q.MaxMessages,
				WaitTimeSeconds:     q.WaitTimeSeconds,
				VisibilityTimeout:   q.VisibilityTimeout,
			})
			if err != nil {
				slog.Error("sqs receive failed", "queue", kind, "err", err)
				time.Sleep(500 * time.Millisecond)
				continue
			}
			for _, m := range out.Messages {
				select {
				case msgs <- m:
				case <-ctx.Done():
					sendErr(ctx.Err())
					return
				}
			}
		}
	}()

	err := <-errCh
	wg.Wait()
	return err
}

// Consumer polls the campaign dispatch queue.
type Consumer struct {
	SQS      *sqs.Client
	QueueURL string

	WaitTimeSeconds   int32
	MaxMessages       int32
	VisibilityTimeout int32
}

type Handler func(ctx context.Context, job CampaignJob) error

func (c *Consumer) Poll(ctx context.Context, handler Handler) error {
	return c.PollConcurrent(ctx, 1, handler)
}

func (c *Consumer) PollConcurrent(ctx context.Context, workers int, handler Handler) error {
	q := &queue{
		SQS: c.SQS, QueueURL: c.QueueURL,
		WaitTimeSeconds: c.WaitTimeSeconds, MaxMessages: c.MaxMessages,
		VisibilityTimeout: c.VisibilityTimeout,
	}
	return pollConcurrent(ctx, q, workers, "campaigns", func(ctx context.Context, job CampaignJob) error {
		return handler(ctx, job)
	})
}
