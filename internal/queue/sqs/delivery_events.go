package sqsqueue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// DeliveryEvent is the internal envelope for vendor delivery reports.
// Keep it small; SQS has a 256KB message size limit.
type DeliveryEvent struct {
	VendorMsgID string    `json:"vendorMsgId"`
	EventType   string    `json:"eventType"`
	Cause       string    `json:"cause,omitempty"`
	ErrCode     string    `json:"errCode,omitempty"`
	DestAddr    string    `json:"destAddr,omitempty"`
	Channel     string    `json:"channel,omitempty"`
	NoOfFrags   int       `json:"noOfFrags,omitempty"`
	EventTs     time.Time `json:"eventTs"`
	ReceivedAt  time.Time `json:"receivedAt"`
}

type DeliveryProducer struct {
	SQS      *sqs.Client
	QueueURL string
}

func (p *DeliveryProducer) Enqueue(ctx context.Context, ev DeliveryEvent) error {
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

type DeliveryHandler func(ctx context.Context, ev DeliveryEvent) error

type DeliveryConsumer struct {
	SQS      *sqs.Client
	QueueURL string

	WaitTimeSeconds   int32
	MaxMessages       int32
	VisibilityTimeout int32
}

// PollConcurrent processes delivery events with a worker pool. Messages
// are deleted only after the handler completes.
func (c *DeliveryConsumer) PollConcurrent(ctx context.Context, workers int, handler DeliveryHandler) error {
	q := &queue{
		SQS: c.SQS, QueueURL: c.QueueURL,
		WaitTimeSeconds: c.WaitTimeSeconds, MaxMessages: c.MaxMessages,
		VisibilityTimeout: c.VisibilityTimeout,
	}
	return pollConcurrent(ctx, q, workers, "delivery-events", func(ctx context.Context, ev DeliveryEvent) error {
		return handler(ctx, ev)
	})
}
