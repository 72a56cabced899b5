package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := GetDefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "UTC", cfg.Billing.DefaultTimezone)
}

func TestValidateRejectsUnknownTimezone(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Billing.DefaultTimezone = "Mars/Olympus_Mons"
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresSchedulerSpecWhenEnabled(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Billing.SchedulerEnabled = true
	cfg.Billing.SchedulerSpec = ""
	assert.Error(t, cfg.Validate())
}

func TestNewConfigFromEnvironment(t *testing.T) {
	t.Setenv("BILLING_POSTGRES_HOST", "db.internal")
	t.Setenv("BILLING_BILLING_INVOICE_DUE_DAYS", "30")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, 30, cfg.Billing.InvoiceDueDays)
}

func TestGetDSN(t *testing.T) {
	c := PostgresConfig{Host: "h", Port: 5432, User: "u", Password: "p", DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "user=u password=p dbname=d host=h port=5432 sslmode=disable", c.GetDSN())
}
