package config

import "time"

// Webhook represents the configuration for outbound billing events
type Webhook struct {
	Enabled bool   `mapstructure:"enabled"`
	Topic   string `mapstructure:"topic" validate:"required_if=Enabled true"`
	// ExcludedEvents lists event names that are never published
	ExcludedEvents []string `mapstructure:"excluded_events"`

	// delivery retries, exponential backoff
	MaxRetries      int           `mapstructure:"max_retries" validate:"gte=0"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
	// RequestTimeout bounds a single delivery attempt
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// Tenants maps a tenant id to its delivery endpoint
	Tenants map[string]TenantWebhookConfig `mapstructure:"tenants" validate:"dive"`
}

// TenantWebhookConfig represents webhook configuration for a specific tenant
type TenantWebhookConfig struct {
	Enabled        bool              `mapstructure:"enabled"`
	Endpoint       string            `mapstructure:"endpoint" validate:"required_if=Enabled true,omitempty,url"`
	Headers        map[string]string `mapstructure:"headers"`
	ExcludedEvents []string          `mapstructure:"excluded_events"`
	// RateLimit caps deliveries per second to the endpoint, 0 disables it
	RateLimit float64 `mapstructure:"rate_limit" validate:"gte=0"`
	RateBurst int     `mapstructure:"rate_burst" validate:"gte=0"`
}
