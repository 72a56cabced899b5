package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/flexprice/billing-engine/internal/api/dto"
	"github.com/flexprice/billing-engine/internal/types"
)

// ImportBillingPlans creates a billing plan for every entry of the JSON file
// in PLANS_FILE. With ACTIVATE=true each created plan is activated as well.
// Entries that fail are reported and skipped.
func ImportBillingPlans() error {
	plansFile := os.Getenv("PLANS_FILE")
	tenantID := os.Getenv("TENANT_ID")
	if plansFile == "" || tenantID == "" {
		return fmt.Errorf("plans_file and tenant_id are required")
	}

	raw, err := os.ReadFile(plansFile)
	if err != nil {
		return fmt.Errorf("failed to read plans file: %w", err)
	}

	var requests []dto.CreateBillingPlanRequest
	if err := json.Unmarshal(raw, &requests); err != nil {
		return fmt.Errorf("failed to parse plans file: %w", err)
	}

	script, err := newScriptServices()
	if err != nil {
		return err
	}
	defer script.db.Close()

	ctx := types.SetTenantID(context.Background(), tenantID)
	if userID := os.Getenv("USER_ID"); userID != "" {
		ctx = types.SetUserID(ctx, userID)
	}
	activate := os.Getenv("ACTIVATE") == "true"

	var created, failed int
	for i, req := range requests {
		plan, err := script.billingPlanSvc.CreateBillingPlan(ctx, req)
		if err != nil {
			script.log.Errorw("failed to create billing plan", "index", i, "code", req.Code, "error", err)
			failed++
			continue
		}

		if activate {
			_, err = script.billingPlanSvc.UpdateBillingPlanStatus(ctx, plan.ID, dto.UpdateBillingPlanStatusRequest{
				Status: types.PlanStatusActive,
			})
			if err != nil {
				script.log.Errorw("failed to activate billing plan", "plan_id", plan.ID, "error", err)
				failed++
				continue
			}
		}

		script.log.Infow("imported billing plan", "plan_id", plan.ID, "code", plan.Code)
		created++
	}

	script.log.Infow("billing plan import finished", "created", created, "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d plans failed to import", failed, len(requests))
	}
	return nil
}
