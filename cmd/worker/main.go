package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"warelay/internal/awsutil"
	"warelay/internal/campaign"
	"warelay/internal/config"
	"warelay/internal/contact"
	"warelay/internal/conversation"
	"warelay/internal/logging"
	"warelay/internal/observability"
	"warelay/internal/providers/pinnacle"
	sqsqueue "warelay/internal/queue/sqs"
	"warelay/internal/store/pg"
	"warelay/internal/util"
	workerproc "warelay/internal/worker"
)

func main() {
	cfg := config.LoadWorker()
	logging.Init("worker", cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())

	db, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		slog.Error("worker db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	dbStore := pg.New(db)

	sqsClient, err := awsutil.NewSQSClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
	if err != nil {
		slog.Error("worker sqs client init failed", "err", err)
		os.Exit(1)
	}

	startupCtx, startupCancel := context.WithTimeout(ctx, 3*time.Second)
	defer startupCancel()
	if err := db.Ping(startupCtx); err != nil {
		slog.Error("db not reachable", "err", err)
		os.Exit(1)
	}
	if _, err := sqsClient.GetQueueAttributes(startupCtx, &sqs.GetQueueAttributesInput{
		QueueUrl:       &cfg.CampaignQueueURL,
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
	}); err != nil {
		slog.Error("sqs not reachable", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	contacts := &contact.Directory{Store: dbStore, IDGen: util.NewContactID, Now: util.NowUTC}
	conversations := &conversation.Service{Store: dbStore, IDGen: util.NewConversationID, Now: util.NowUTC}

	sender := &workerproc.GuardedSender{
		Vendor: &pinnacle.Client{
			APIKey:   cfg.PinnacleAPIKey,
			WaNumber: cfg.PinnacleWaNumber,
			BaseURL:  cfg.PinnacleBaseURL,
			HTTP:     &http.Client{Timeout: 8 * time.Second},
		},
		Breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "pinnacle",
			MaxRequests: 3,
			Timeout:     20 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 10 },
		}),
	}

	dispatcher := &campaign.Dispatcher{
		Store:         dbStore,
		Contacts:      contacts,
		Conversations: conversations,
		Sender:        sender,
		Limiter:       rate.NewLimiter(rate.Limit(cfg.VendorRPS), cfg.VendorBurst),
		IDGen:         util.NewCampaignID,
		MsgID:         util.NewMessageID,
		Now:           util.NowUTC,
	}
	processor := &workerproc.Processor{Campaigns: dispatcher}

	consumer := &sqsqueue.Consumer{
		SQS:               sqsClient,
		QueueURL:          cfg.CampaignQueueURL,
		WaitTimeSeconds:   cfg.SQSWaitTime,
		MaxMessages:       cfg.SQSMaxMsgs,
		VisibilityTimeout: cfg.SQSVizTimeout,
	}

	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: promhttp.Handler()}
	metricsErrCh := make(chan error, 1)
	go func() {
		slog.Info("worker metrics listening", "port", cfg.MetricsPort)
		metricsErrCh <- metricsSrv.ListenAndServe()
	}()

	pollErrCh := make(chan error, 1)
	go func() {
		slog.Info("worker starting poll", "queue_url", cfg.CampaignQueueURL)
		pollErrCh <- consumer.PollConcurrent(ctx, cfg.WorkerConcurrency, func(ctx context.Context, job sqsqueue.CampaignJob) error {
			start := time.Now()
			slog.Info("campaign job start", "campaign_id", job.CampaignID)
			err := processor.Process(ctx, job)
			if err != nil {
				slog.Info("campaign job finish", "campaign_id", job.CampaignID, "status", "error", "duration", time.Since(start), "err", err)
			} else {
				slog.Info("campaign job finish", "campaign_id", job.CampaignID, "status", "ok", "duration", time.Since(start))
			}
			return err
		})
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-pollErrCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("worker poll failed", "err", err)
			os.Exit(1)
		}
	case err := <-metricsErrCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("worker metrics server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		slog.Info("worker shutdown", "signal", sig.String())
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	select {
	case <-pollErrCh:
	case <-time.After(10 * time.Second):
		slog.Info("worker shutdown timeout waiting for poll loop")
	}
}
