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

	"warelay/internal/awsutil"
	"warelay/internal/config"
	"warelay/internal/httpserver"
	"warelay/internal/logging"
	"warelay/internal/observability"
	sqsqueue "warelay/internal/queue/sqs"
	"warelay/internal/reconcile"
	"warelay/internal/store/pg"
	"warelay/internal/util"
)

func main() {
	cfg := config.LoadWebhookProcessor()
	logging.Init("webhook-processor", cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())

	db, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		slog.Error("webhook-processor db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	dbStore := pg.New(db)

	sqsClient, err := awsutil.NewSQSClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
	if err != nil {
		slog.Error("webhook-processor sqs client init failed", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	reconciler := &reconcile.Reconciler{Store: dbStore, Now: util.NowUTC}

	consumer := &sqsqueue.DeliveryConsumer{
		SQS:               sqsClient,
		QueueURL:          cfg.DeliveryQueueURL,
		WaitTimeSeconds:   cfg.SQSWaitTime,
		MaxMessages:       cfg.SQSMaxMsgs,
		VisibilityTimeout: cfg.SQSVizTimeout,
	}

	health := httpserver.New(httpserver.Logging).WithHealth(2*time.Second,
		func(c context.Context) error { return db.Ping(c) },
		func(c context.Context) error {
			_, err := sqsClient.GetQueueAttributes(c, &sqs.GetQueueAttributesInput{
				QueueUrl:       &cfg.DeliveryQueueURL,
				AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
			})
			return err
		},
	)

	healthSrv := &http.Server{Addr: ":" + cfg.Port, Handler: health.Mux}
	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: promhttp.Handler()}

	healthErrCh := make(chan error, 1)
	go func() {
		slog.Info("webhook-processor health listening", "port", cfg.Port)
		healthErrCh <- healthSrv.ListenAndServe()
	}()
	metricsErrCh := make(chan error, 1)
	go func() {
		slog.Info("webhook-processor metrics listening", "port", cfg.MetricsPort)
		metricsErrCh <- metricsSrv.ListenAndServe()
	}()

	pollErrCh := make(chan error, 1)
	go func() {
		slog.Info("webhook-processor starting poll", "queue_url", cfg.DeliveryQueueURL)
		pollErrCh <- consumer.PollConcurrent(ctx, cfg.WorkerConcurrency, func(ctx context.Context, ev sqsqueue.DeliveryEvent) error {
			dbCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			res, err := reconciler.Ingest(dbCtx, reconcile.Report{
				VendorMsgID: ev.VendorMsgID,
				EventType:   ev.EventType,
				Cause:       ev.Cause,
				ErrCode:     ev.ErrCode,
				DestAddr:    ev.DestAddr,
				Channel:     ev.Channel,
				NoOfFrags:   ev.NoOfFrags,
				EventTs:     ev.EventTs,
			})
			if err != nil {
				return err
			}
			if res.Outcome == reconcile.OutcomeNotFound {
				// The sender may not have persisted the vendor id yet;
				// let SQS retry later.
				return errors.New("message not found for vendor_msg_id")
			}
			return nil
		})
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-pollErrCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("webhook-processor poll failed", "err", err)
			os.Exit(1)
		}
	case err := <-healthErrCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("webhook-processor health server failed", "err", err)
			os.Exit(1)
		}
	case err := <-metricsErrCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("webhook-processor metrics server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		slog.Info("webhook-processor shutdown", "signal", sig.String())
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = healthSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)

	select {
	case <-pollErrCh:
	case <-time.After(10 * time.Second):
		slog.Info("webhook-processor shutdown timeout waiting for poll loop")
	}
}
