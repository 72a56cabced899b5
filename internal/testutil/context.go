package testutil

import (
	"context"

	"github.com/flexprice/billing-engine/internal/types"
)

// SetupContext returns a context carrying the default tenant, user and a
// fresh request id
func SetupContext() context.Context {
	ctx := context.Background()
	ctx = types.SetTenantID(ctx, types.DefaultTenantID)
	ctx = types.SetUserID(ctx, types.DefaultUserID)
	ctx = types.SetRequestID(ctx, types.GenerateUUID())
	return ctx
}
