package testutil

import (
	"context"

	"github.com/flexprice/billing-engine/internal/logger"
	"github.com/flexprice/billing-engine/internal/postgres"
)

var _ postgres.IClient = (*MockPostgresClient)(nil)

// MockPostgresClient runs the unit of work without a database. Nothing is
// rolled back on error, so tests assert on what the service wrote before
// failing.
type MockPostgresClient struct {
	logger *logger.Logger
	txs    int
}

func NewMockPostgresClient(logger *logger.Logger) *MockPostgresClient {
	return &MockPostgresClient{
		logger: logger,
	}
}

func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	c.txs++
	return fn(ctx)
}

// Transactions returns how many units of work were started
func (c *MockPostgresClient) Transactions() int {
	return c.txs
}
