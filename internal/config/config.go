package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds process settings read from the environment.
type Config struct {
	HTTPAddr         string
	DatabaseURL      string
	JWTSecret        string
	AuthEnabled      bool
	TenantID         string
	CatalogPath      string
	BatchConcurrency int

	LogLevel  string
	LogFormat string

	SearchEndpoint   string
	SearchIndex      string
	SearchAPIKey     string
	SearchAPIVersion string
	CorpusPath       string

	AlertWebhookURL string
	AlertTemplate   string
	AlertTimeout    time.Duration

	AWSRegion   string
	SNSTopicARN string
	S3Bucket    string
	S3Prefix    string

	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string
}

// Load reads settings from the environment on top of defaults.
func Load() (Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (Config, error) {
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("PG_DSN", "")
	v.SetDefault("AUTH_JWT_SECRET", "")
	v.SetDefault("AUTH_ENABLED", true)
	v.SetDefault("TENANT_ID", "")
	v.SetDefault("CATALOG_PATH", "")
	v.SetDefault("BATCH_CONCURRENCY", 4)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("SEARCH_ENDPOINT", "")
	v.SetDefault("SEARCH_INDEX", "")
	v.SetDefault("SEARCH_API_KEY", "")
	v.SetDefault("SEARCH_API_VERSION", "")
	v.SetDefault("CORPUS_PATH", "")
	v.SetDefault("ALERT_WEBHOOK_URL", "")
	v.SetDefault("ALERT_NOTIFY_TEMPLATE", "")
	v.SetDefault("ALERT_NOTIFY_TIMEOUT", "5s")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_SNS_TOPIC_ARN", "")
	v.SetDefault("AWS_S3_BUCKET", "")
	v.SetDefault("AWS_S3_PREFIX", "maintenance-reports")
	v.SetDefault("MQTT_BROKER", "tcp://localhost:1883")
	v.SetDefault("MQTT_TOPIC", "devices/+/telemetry")
	v.SetDefault("MQTT_CLIENT_ID", "smart-maintenance")
	v.AutomaticEnv()

	cfg := Config{
		HTTPAddr:         v.GetString("HTTP_ADDR"),
		DatabaseURL:      firstNonEmpty(v.GetString("PG_DSN"), v.GetString("DATABASE_URL")),
		JWTSecret:        v.GetString("AUTH_JWT_SECRET"),
		AuthEnabled:      v.GetBool("AUTH_ENABLED"),
		TenantID:         v.GetString("TENANT_ID"),
		CatalogPath:      v.GetString("CATALOG_PATH"),
		BatchConcurrency: v.GetInt("BATCH_CONCURRENCY"),
		LogLevel:         strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:        strings.ToLower(v.GetString("LOG_FORMAT")),
		SearchEndpoint:   v.GetString("SEARCH_ENDPOINT"),
		SearchIndex:      v.GetString("SEARCH_INDEX"),
		SearchAPIKey:     v.GetString("SEARCH_API_KEY"),
		SearchAPIVersion: v.GetString("SEARCH_API_VERSION"),
		CorpusPath:       v.GetString("CORPUS_PATH"),
		AlertWebhookURL:  v.GetString("ALERT_WEBHOOK_URL"),
		AlertTemplate:    v.GetString("ALERT_NOTIFY_TEMPLATE"),
		AlertTimeout:     v.GetDuration("ALERT_NOTIFY_TIMEOUT"),
		AWSRegion:        v.GetString("AWS_REGION"),
		SNSTopicARN:      v.GetString("AWS_SNS_TOPIC_ARN"),
		S3Bucket:         v.GetString("AWS_S3_BUCKET"),
		S3Prefix:         v.GetString("AWS_S3_PREFIX"),
		MQTTBroker:       v.GetString("MQTT_BROKER"),
		MQTTTopic:        v.GetString("MQTT_TOPIC"),
		MQTTClientID:     v.GetString("MQTT_CLIENT_ID"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that cannot fall back to a default.
func (c Config) Validate() error {
	if c.AuthEnabled && c.JWTSecret == "" {
		return errors.New("config: AUTH_JWT_SECRET is required when AUTH_ENABLED")
	}
	if c.BatchConcurrency <= 0 {
		return errors.New("config: BATCH_CONCURRENCY must be positive")
	}
	if c.SearchEndpoint != "" && c.SearchIndex == "" {
		return errors.New("config: SEARCH_INDEX is required with SEARCH_ENDPOINT")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return errors.New("config: LOG_FORMAT must be json or console")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
