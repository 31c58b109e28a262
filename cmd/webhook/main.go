package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"warelay/internal/awsutil"
	"warelay/internal/config"
	"warelay/internal/contact"
	"warelay/internal/conversation"
	"warelay/internal/httpserver"
	"warelay/internal/logging"
	"warelay/internal/observability"
	sqsqueue "warelay/internal/queue/sqs"
	"warelay/internal/service"
	"warelay/internal/store/pg"
	"warelay/internal/util"
)

func main() {
	cfg := config.LoadWebhook()
	logging.Init("webhook", cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		slog.Error("webhook db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	dbStore := pg.New(db)

	sqsClient, err := awsutil.NewSQSClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
	if err != nil {
		slog.Error("webhook sqs client init failed", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	contacts := &contact.Directory{Store: dbStore, IDGen: util.NewContactID, Now: util.NowUTC}
	conversations := &conversation.Service{Store: dbStore, IDGen: util.NewConversationID, Now: util.NowUTC}

	hook := &httpserver.Webhook{
		Inbound: &service.Inbound{
			Store:         dbStore,
			Contacts:      contacts,
			Conversations: conversations,
			MsgID:         util.NewMessageID,
			Now:           util.NowUTC,
		},
		Delivery: &sqsqueue.DeliveryProducer{SQS: sqsClient, QueueURL: cfg.DeliveryQueueURL},
		Token:    cfg.WebhookToken,
		Now:      util.NowUTC,
	}

	s := httpserver.New(httpserver.Logging, httpserver.Metrics(observability.APIRequests))
	hook.Register(s.Mux)

	s.WithHealth(2*time.Second, func(c context.Context) error {
		return db.Ping(c)
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: s.Mux}
	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: promhttp.Handler()}

	srvErrCh := make(chan error, 1)
	go func() {
		slog.Info("webhook listening", "port", cfg.Port)
		srvErrCh <- srv.ListenAndServe()
	}()
	metricsErrCh := make(chan error, 1)
	go func() {
		slog.Info("webhook metrics listening", "port", cfg.MetricsPort)
		metricsErrCh <- metricsSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-srvErrCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("webhook server failed", "err", err)
			os.Exit(1)
		}
	case err := <-metricsErrCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("webhook metrics server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		slog.Info("webhook shutdown", "signal", sig.String())
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
