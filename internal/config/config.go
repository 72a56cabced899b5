package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flexprice/billing-engine/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Server     ServerConfig     `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Postgres   PostgresConfig   `validate:"required"`
	Billing    BillingConfig    `validate:"required"`
	Webhook    Webhook          `mapstructure:"webhook"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Sentry     SentryConfig     `mapstructure:"sentry"`
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type ServerConfig struct {
	Address string `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type PostgresConfig struct {
	Host                   string `mapstructure:"host"`
	Port                   int    `mapstructure:"port"`
	User                   string `mapstructure:"user"`
	Password               string `mapstructure:"password"`
	DBName                 string `mapstructure:"dbname"`
	SSLMode                string `mapstructure:"sslmode"`
	MaxOpenConns           int    `mapstructure:"max_open_conns" default:"10"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns" default:"5"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes" default:"60"`
}

// BillingConfig drives the recurring billing engine
type BillingConfig struct {
	// SchedulerEnabled turns the in-process cron scheduler on. Deployments that
	// trigger generation through the cron API leave it off.
	SchedulerEnabled bool `mapstructure:"scheduler_enabled"`
	// SchedulerSpec is a standard 5-field cron expression
	SchedulerSpec string `mapstructure:"scheduler_spec" validate:"required_if=SchedulerEnabled true"`
	// DefaultTimezone is used for plans that do not carry their own timezone
	DefaultTimezone string `mapstructure:"default_timezone" validate:"required"`
	// InvoiceDueDays is the fallback payment term for bridged invoices
	InvoiceDueDays       int    `mapstructure:"invoice_due_days" validate:"gte=0"`
	InvoiceCodePrefix    string `mapstructure:"invoice_code_prefix" validate:"required"`
	CreditNoteCodePrefix string `mapstructure:"credit_note_code_prefix" validate:"required"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

func NewConfig() (*Configuration, error) {
	// A local .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/billing-engine")

	v.SetEnvPrefix("BILLING")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Error reading config file: %v\n", err)
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", types.ModeLocal)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", types.LogLevelInfo)
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime_minutes", 60)
	v.SetDefault("billing.scheduler_spec", "*/15 * * * *")
	v.SetDefault("billing.default_timezone", "UTC")
	v.SetDefault("billing.invoice_due_days", 14)
	v.SetDefault("billing.invoice_code_prefix", "INV-")
	v.SetDefault("billing.credit_note_code_prefix", "CN-")
	v.SetDefault("webhook.topic", "billing_events")
	v.SetDefault("webhook.max_retries", 3)
	v.SetDefault("webhook.initial_interval", time.Second)
	v.SetDefault("webhook.max_interval", 10*time.Second)
	v.SetDefault("webhook.multiplier", 2.0)
	v.SetDefault("webhook.max_elapsed_time", 2*time.Minute)
	v.SetDefault("webhook.request_timeout", 10*time.Second)
	v.SetDefault("cache.ttl", 10*time.Minute)
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := time.LoadLocation(c.Billing.DefaultTimezone); err != nil {
		return fmt.Errorf("invalid billing.default_timezone %q: %w", c.Billing.DefaultTimezone, err)
	}
	return nil
}

// GetDefaultConfig returns a default configuration for local development
// This is useful for running scripts, tests or other non-web applications
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Billing: BillingConfig{
			SchedulerSpec:        "*/15 * * * *",
			DefaultTimezone:      "UTC",
			InvoiceDueDays:       14,
			InvoiceCodePrefix:    "INV-",
			CreditNoteCodePrefix: "CN-",
		},
		Webhook: Webhook{
			Topic:           "billing_events",
			MaxRetries:      3,
			InitialInterval: time.Second,
			MaxInterval:     10 * time.Second,
			Multiplier:      2,
			MaxElapsedTime:  2 * time.Minute,
			RequestTimeout:  10 * time.Second,
		},
		Cache:   CacheConfig{TTL: 10 * time.Minute},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}
