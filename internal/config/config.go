package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type APIConfig struct {
	DBDSN       string `envconfig:"DB_DSN" required:"true"`
	Port        string `envconfig:"PORT" default:"8080"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`

	// DB pool tuning
	DBPoolMaxConns        int32         `envconfig:"DB_POOL_MAX_CONNS"`
	DBPoolMinConns        int32         `envconfig:"DB_POOL_MIN_CONNS"`
	DBPoolMaxConnLifetime time.Duration `envconfig:"DB_POOL_MAX_CONN_LIFETIME"`
	DBPoolMaxConnIdleTime time.Duration `envconfig:"DB_POOL_MAX_CONN_IDLE_TIME"`
	DBPoolHealthCheck     time.Duration `envconfig:"DB_POOL_HEALTH_CHECK_PERIOD"`

	// AWS / SQS
	AWSRegion          string `envconfig:"AWS_REGION" required:"true"`
	CampaignQueueURL   string `envconfig:"CAMPAIGN_QUEUE_URL" required:"true"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`

	// Pinnacle gateway (interactive sends)
	PinnacleAPIKey   string  `envconfig:"PINNACLE_API_KEY" required:"true"`
	PinnacleWaNumber string  `envconfig:"PINNACLE_WA_NUMBER" required:"true"`
	PinnacleBaseURL  string  `envconfig:"PINNACLE_BASE_URL" default:"https://api.pinnacle.in"`
	VendorRPS        float64 `envconfig:"VENDOR_RPS" default:"5"`
	VendorBurst      int     `envconfig:"VENDOR_BURST" default:"10"`
}

type WebhookConfig struct {
	DBDSN       string `envconfig:"DB_DSN" required:"true"`
	Port        string `envconfig:"PORT" default:"8080"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`

	// Shared-secret header the gateway is configured to send
	WebhookToken string `envconfig:"WEBHOOK_TOKEN" required:"true"`

	// AWS / SQS
	AWSRegion          string `envconfig:"AWS_REGION" required:"true"`
	DeliveryQueueURL   string `envconfig:"DELIVERY_QUEUE_URL" required:"true"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`
}

type WorkerConfig struct {
	DBDSN       string `envconfig:"DB_DSN" required:"true"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`

	// AWS / SQS
	AWSRegion          string `envconfig:"AWS_REGION" required:"true"`
	CampaignQueueURL   string `envconfig:"CAMPAIGN_QUEUE_URL" required:"true"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`
	SQSWaitTime        int32  `envconfig:"SQS_WAIT_TIME" default:"20"`
	SQSMaxMsgs         int32  `envconfig:"SQS_MAX_MSGS" default:"10"`
	SQSVizTimeout      int32  `envconfig:"SQS_VISIBILITY_TIMEOUT" default:"900"`

	WorkerConcurrency int `envconfig:"WORKER_CONCURRENCY" default:"4"`

	// Pinnacle gateway
	PinnacleAPIKey   string  `envconfig:"PINNACLE_API_KEY" required:"true"`
	PinnacleWaNumber string  `envconfig:"PINNACLE_WA_NUMBER" required:"true"`
	PinnacleBaseURL  string  `envconfig:"PINNACLE_BASE_URL" default:"https://api.pinnacle.in"`
	VendorRPS        float64 `envconfig:"VENDOR_RPS" default:"5"`
	VendorBurst      int     `envconfig:"VENDOR_BURST" default:"10"`
}

type WebhookProcessorConfig struct {
	DBDSN       string `envconfig:"DB_DSN" required:"true"`
	Port        string `envconfig:"PORT" default:"8080"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`

	// AWS / SQS
	AWSRegion          string `envconfig:"AWS_REGION" required:"true"`
	DeliveryQueueURL   string `envconfig:"DELIVERY_QUEUE_URL" required:"true"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`
	SQSWaitTime        int32  `envconfig:"SQS_WAIT_TIME" default:"20"`
	SQSMaxMsgs         int32  `envconfig:"SQS_MAX_MSGS" default:"10"`
	SQSVizTimeout      int32  `envconfig:"SQS_VISIBILITY_TIMEOUT" default:"60"`

	WorkerConcurrency int `envconfig:"WORKER_CONCURRENCY" default:"20"`
}

func LoadAPI() APIConfig {
	var cfg APIConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func LoadWebhook() WebhookConfig {
	var cfg WebhookConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func LoadWorker() WorkerConfig {
	var cfg WorkerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func LoadWebhookProcessor() WebhookProcessorConfig {
	var cfg WebhookProcessorConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}
