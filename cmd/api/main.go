package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"warelay/internal/awsutil"
	"warelay/internal/campaign"
	"warelay/internal/config"
	"warelay/internal/contact"
	"warelay/internal/conversation"
	"warelay/internal/httpserver"
	"warelay/internal/logging"
	"warelay/internal/observability"
	"warelay/internal/providers/pinnacle"
	sqsqueue "warelay/internal/queue/sqs"
	"warelay/internal/service"
	"warelay/internal/store/pg"
	"warelay/internal/util"
	"warelay/internal/worker"
)

func main() {
	cfg := config.LoadAPI()
	logging.Init("api", cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.NewPool(ctx, cfg.DBDSN, pg.PoolOptions{
		MaxConns:          cfg.DBPoolMaxConns,
		MinConns:          cfg.DBPoolMinConns,
		MaxConnLifetime:   cfg.DBPoolMaxConnLifetime,
		MaxConnIdleTime:   cfg.DBPoolMaxConnIdleTime,
		HealthCheckPeriod: cfg.DBPoolHealthCheck,
	})
	if err != nil {
		slog.Error("api db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	dbStore := pg.New(db)

	sqsClient, err := awsutil.NewSQSClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
	if err != nil {
		slog.Error("api sqs client init failed", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	contacts := &contact.Directory{Store: dbStore, IDGen: util.NewContactID, Now: util.NowUTC}
	conversations := &conversation.Service{Store: dbStore, IDGen: util.NewConversationID, Now: util.NowUTC}

	gateway := &worker.GuardedSender{
		Vendor: &pinnacle.Client{
			APIKey:   cfg.PinnacleAPIKey,
			WaNumber: cfg.PinnacleWaNumber,
			BaseURL:  cfg.PinnacleBaseURL,
			HTTP:     &http.Client{Timeout: 8 * time.Second},
		},
		Limiter: rate.NewLimiter(rate.Limit(cfg.VendorRPS), cfg.VendorBurst),
	}

	messenger := &service.Messenger{
		Store:         dbStore,
		Contacts:      contacts,
		Conversations: conversations,
		Gateway:       gateway,
		MsgID:         util.NewMessageID,
		Now:           util.NowUTC,
	}
	campaigns := &campaign.Dispatcher{
		Store:         dbStore,
		Contacts:      contacts,
		Conversations: conversations,
		IDGen:         util.NewCampaignID,
		MsgID:         util.NewMessageID,
		Now:           util.NowUTC,
	}
	producer := &sqsqueue.Producer{SQS: sqsClient, QueueURL: cfg.CampaignQueueURL}

	s := httpserver.New(httpserver.Logging, httpserver.Metrics(observability.APIRequests))
	api := &httpserver.API{
		Messenger:     messenger,
		Contacts:      contacts,
		Conversations: conversations,
		Campaigns:     campaigns,
		Jobs:          producer,
	}
	api.Register(s.Mux)

	s.WithHealth(2*time.Second, func(c context.Context) error {
		return db.Ping(c)
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: s.Mux}
	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: promhttp.Handler()}

	srvErrCh := make(chan error, 1)
	go func() {
		slog.Info("api listening", "port", cfg.Port)
		srvErrCh <- srv.ListenAndServe()
	}()
	metricsErrCh := make(chan error, 1)
	go func() {
		slog.Info("api metrics listening", "port", cfg.MetricsPort)
		metricsErrCh <- metricsSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-srvErrCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("api server failed", "err", err)
			os.Exit(1)
		}
	case err := <-metricsErrCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("api metrics server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		slog.Info("api shutdown", "signal", sig.String())
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
