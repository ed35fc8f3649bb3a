package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ProviderConfig holds ESP credentials. A backend counts as configured
// when its credential is present; selection is priority ordered
// (SES > SendGrid > Resend) with the first configured backend winning.
type ProviderConfig struct {
	SESRegion    string `envconfig:"SES_REGION"`
	SESAccessKey string `envconfig:"SES_ACCESS_KEY"`
	SESSecretKey string `envconfig:"SES_SECRET_KEY"`

	SendGridAPIKey  string `envconfig:"SENDGRID_API_KEY"`
	SendGridBaseURL string `envconfig:"SENDGRID_BASE_URL" default:"https://api.sendgrid.com"`

	ResendAPIKey  string `envconfig:"RESEND_API_KEY"`
	ResendBaseURL string `envconfig:"RESEND_BASE_URL" default:"https://api.resend.com"`

	SendRPS   float64 `envconfig:"SEND_RPS" default:"14"`
	SendBurst int     `envconfig:"SEND_BURST" default:"28"`
}

type PoolConfig struct {
	DBPoolMaxConns          int32  `envconfig:"DB_POOL_MAX_CONNS" default:"0"`
	DBPoolMinConns          int32  `envconfig:"DB_POOL_MIN_CONNS" default:"0"`
	DBPoolMaxConnLifetime   string `envconfig:"DB_POOL_MAX_CONN_LIFETIME"`
	DBPoolMaxConnIdleTime   string `envconfig:"DB_POOL_MAX_CONN_IDLE_TIME"`
	DBPoolHealthCheckPeriod string `envconfig:"DB_POOL_HEALTH_CHECK_PERIOD"`
}

type DispatchConfig struct {
	BatchSize  int           `envconfig:"DISPATCH_BATCH_SIZE" default:"100"`
	BatchDelay time.Duration `envconfig:"DISPATCH_BATCH_DELAY" default:"1s"`
}

type APIConfig struct {
	DBDSN       string `envconfig:"DB_DSN" required:"true"`
	Port        string `envconfig:"PORT" default:"8080"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`

	SiteBaseURL string `envconfig:"SITE_BASE_URL" default:"http://localhost:3000"`
	CronSecret  string `envconfig:"CRON_SECRET"`

	DefaultFromName  string `envconfig:"DEFAULT_FROM_NAME" default:"Campaigner"`
	DefaultFromEmail string `envconfig:"DEFAULT_FROM_EMAIL" default:"no-reply@localhost"`

	Dispatch DispatchConfig
	Pool     PoolConfig
	Provider ProviderConfig
}

type WorkerConfig struct {
	DBDSN       string `envconfig:"DB_DSN" required:"true"`
	Port        string `envconfig:"PORT" default:"8080"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`

	SiteBaseURL  string        `envconfig:"SITE_BASE_URL" default:"http://localhost:3000"`
	PollInterval time.Duration `envconfig:"SCHEDULER_POLL_INTERVAL" default:"30s"`

	DefaultFromName  string `envconfig:"DEFAULT_FROM_NAME" default:"Campaigner"`
	DefaultFromEmail string `envconfig:"DEFAULT_FROM_EMAIL" default:"no-reply@localhost"`

	Dispatch DispatchConfig
	Pool     PoolConfig
	Provider ProviderConfig
}

type WebhookConfig struct {
	Port        string `envconfig:"PORT" default:"8080"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`

	// Shared secret for HMAC verification of provider callbacks.
	WebhookSecret string `envconfig:"WEBHOOK_SECRET" required:"true"`

	AWSRegion             string `envconfig:"AWS_REGION" required:"true"`
	WebhookEventsQueueURL string `envconfig:"WEBHOOK_EVENTS_QUEUE_URL" required:"true"`
	LocalstackEndpoint    string `envconfig:"LOCALSTACK_ENDPOINT"`
}

type WebhookProcessorConfig struct {
	DBDSN       string `envconfig:"DB_DSN" required:"true"`
	Port        string `envconfig:"PORT" default:"8080"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`

	AWSRegion             string `envconfig:"AWS_REGION" required:"true"`
	WebhookEventsQueueURL string `envconfig:"WEBHOOK_EVENTS_QUEUE_URL" required:"true"`
	LocalstackEndpoint    string `envconfig:"LOCALSTACK_ENDPOINT"`
	SQSWaitTime           int32  `envconfig:"SQS_WAIT_TIME" default:"20"`
	SQSMaxMsgs            int32  `envconfig:"SQS_MAX_MSGS" default:"10"`
	SQSVizTimeout         int32  `envconfig:"SQS_VISIBILITY_TIMEOUT" default:"60"`
	ProcessorConcurrency  int    `envconfig:"PROCESSOR_CONCURRENCY" default:"8"`

	Pool PoolConfig
}

func LoadAPI() APIConfig {
	var cfg APIConfig
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

func LoadWebhook() WebhookConfig {
	var cfg WebhookConfig
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
