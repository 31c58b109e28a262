package sqsqueue

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type Producer struct {
	SQS      *sqs.Client
	QueueURL string
}

// CampaignJob asks a worker to run one campaign end to end. The
// dispatcher's processing claim keeps duplicate deliveries harmless.
type CampaignJob struct {
	CampaignID string `json:"campaignId"`
}

func (p *Producer) EnqueueCampaign(ctx context.Context, campaignID string) error {
	body, err := json.Marshal(CampaignJob{CampaignID: campaignID})
	if err != nil {
		return err
	}

	// FIFO ordering per campaign; dedup collapses accidental double enqueues.
	_, err = p.SQS.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:               &p.QueueURL,
		MessageBody:            str(string(body)),
		MessageGroupId:         str(campaignID),
		MessageDeduplicationId: str(campaignID),
	})
	return err
}

func str(s string) *string { return &s }
