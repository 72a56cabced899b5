package internal

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/flexprice/billing-engine/internal/api/dto"
	"github.com/flexprice/billing-engine/internal/types"
)

// RunBilling runs occurrence generation once. TENANT_ID limits the run to a
// single tenant and UP_TO (RFC 3339 or YYYY-MM-DD) moves the horizon, which
// defaults to now.
func RunBilling() error {
	upTo := time.Now().UTC()
	if v := os.Getenv("UP_TO"); v != "" {
		parsed, err := parseUpTo(v)
		if err != nil {
			return err
		}
		upTo = parsed
	}

	script, err := newScriptServices()
	if err != nil {
		return err
	}
	defer script.db.Close()

	ctx := context.Background()
	var resp *dto.RunDuePlansResponse
	if tenantID := os.Getenv("TENANT_ID"); tenantID != "" {
		resp, err = script.occurrenceSvc.RunDuePlans(types.SetTenantID(ctx, tenantID), upTo)
	} else {
		resp, err = script.occurrenceSvc.RunAllTenants(ctx, upTo)
	}
	if err != nil {
		return fmt.Errorf("billing run failed: %w", err)
	}

	for _, f := range resp.Failures {
		script.log.Errorw("plan failed", "tenant_id", f.TenantID, "plan_id", f.PlanID, "error", f.Error)
	}
	script.log.Infow("billing run finished",
		"up_to", upTo.Format(time.RFC3339),
		"tenants", resp.Tenants,
		"plans", resp.Plans,
		"generated", resp.Generated,
		"failed", resp.Failed,
	)
	return nil
}

func parseUpTo(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid up_to %q: expected RFC 3339 or YYYY-MM-DD", v)
	}
	return t, nil
}
