package worker

import (
	"context"
	"errors"
	"testing"

	"warelay/internal/domain"
	sqsqueue "warelay/internal/queue/sqs"
)

type fakeCampaigns struct {
	err   error
	calls []string
}

func (f *fakeCampaigns) Process(_ context.Context, id string, onProgress func(int)) error {
	f.calls = append(f.calls, id)
	if f.err == nil && onProgress != nil {
		onProgress(50)
		onProgress(100)
	}
	return f.err
}

func TestProcessorRunsCampaign(t *testing.T) {
	c := &fakeCampaigns{}
	p := &Processor{Campaigns: c}

	if err := p.Process(context.Background(), sqsqueue.CampaignJob{CampaignID: "cmp-1"}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(c.calls) != 1 || c.calls[0] != "cmp-1" {
		t.Fatalf("unexpected calls %v", c.calls)
	}
}

func TestProcessorDropsRedeliveredJobs(t *testing.T) {
	// A redelivered job hits the claim guard; the message must be
	// acked, not redriven forever.
	p := &Processor{Campaigns: &fakeCampaigns{err: domain.ErrCampaignState}}
	if err := p.Process(context.Background(), sqsqueue.CampaignJob{CampaignID: "cmp-1"}); err != nil {
		t.Fatalf("want nil for already-claimed campaign, got %v", err)
	}

	p = &Processor{Campaigns: &fakeCampaigns{err: domain.ErrNotFound}}
	if err := p.Process(context.Background(), sqsqueue.CampaignJob{CampaignID: "cmp-gone"}); err != nil {
		t.Fatalf("want nil for unknown campaign, got %v", err)
	}
}

func TestProcessorPropagatesTransientErrors(t *testing.T) {
	boom := errors.New("db down")
	p := &Processor{Campaigns: &fakeCampaigns{err: boom}}
	if err := p.Process(context.Background(), sqsqueue.CampaignJob{CampaignID: "cmp-1"}); !errors.Is(err, boom) {
		t.Fatalf("want transient error surfaced, got %v", err)
	}
}

func TestProcessorRejectsEmptyJob(t *testing.T) {
	p := &Processor{Campaigns: &fakeCampaigns{}}
	if err := p.Process(context.Background(), sqsqueue.CampaignJob{}); err == nil {
		t.Fatal("want error for empty campaign id")
	}
}
