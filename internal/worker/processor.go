package worker

import (
	"context"
	"errors"
	"log/slog"

	"warelay/internal/domain"
	sqsqueue "warelay/internal/queue/sqs"
)

type Campaigns interface {
	Process(ctx context.Context, campaignID string, onProgress func(int)) error
}

// Processor consumes campaign jobs and runs them through the dispatcher.
type Processor struct {
	Campaigns Campaigns
}

func (p *Processor) Process(ctx context.Context, job sqsqueue.CampaignJob) error {
	if job.CampaignID == "" {
		return errors.New("campaign job missing campaignId")
	}

	err := p.Campaigns.Process(ctx, job.CampaignID, func(pct int) {
		if pct%25 == 0 {
			slog.Info("campaign progress", "campaign_id", job.CampaignID, "pct", pct)
		}
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrCampaignState):
		// Redelivered job for a campaign already claimed or finished.
		// Idempotent consumer: drop it.
		slog.Info("campaign already claimed, skipping", "campaign_id", job.CampaignID)
		return nil
	case errors.Is(err, domain.ErrNotFound):
		slog.Warn("campaign job for unknown campaign", "campaign_id", job.CampaignID)
		return nil
	default:
		return err
	}
}
