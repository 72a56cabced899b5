package service

import (
	"context"
	"encoding/json"

	"github.com/flexprice/billing-engine/internal/domain/billingplan"
	"github.com/flexprice/billing-engine/internal/domain/invoice"
	"github.com/flexprice/billing-engine/internal/domain/occurrence"
	"github.com/flexprice/billing-engine/internal/types"
	webhookDto "github.com/flexprice/billing-engine/internal/webhook/dto"
	"github.com/samber/lo"
)

// publishWebhookEvent is fire and forget: a failed publish is logged and
// never fails the write that triggered it
func (p ServiceParams) publishWebhookEvent(ctx context.Context, eventName string, payload interface{}) {
	if p.WebhookPublisher == nil {
		p.Logger.Warnw("webhook publisher not initialized", "event", eventName)
		return
	}

	webhookPayload, err := json.Marshal(payload)
	if err != nil {
		p.Logger.Errorw("failed to marshal webhook payload", "event", eventName, "error", err)
		return
	}

	webhookEvent := &types.WebhookEvent{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_WEBHOOK_EVENT),
		EventName: eventName,
		TenantID:  types.GetTenantID(ctx),
		UserID:    types.GetUserID(ctx),
		Timestamp: p.now(),
		Payload:   json.RawMessage(webhookPayload),
	}
	if err := p.WebhookPublisher.PublishWebhook(ctx, webhookEvent); err != nil {
		p.Logger.Errorf("failed to publish %s event: %v", webhookEvent.EventName, err)
	}
}

func billingPlanEvent(plan *billingplan.BillingPlan) webhookDto.InternalBillingPlanEvent {
	return webhookDto.InternalBillingPlanEvent{
		PlanID:     plan.ID,
		TenantID:   plan.TenantID,
		PlanStatus: string(plan.PlanStatus),
	}
}

func occurrenceEvent(planID, tenantID string, occs []*occurrence.BillingOccurrence) webhookDto.InternalOccurrenceEvent {
	e := webhookDto.InternalOccurrenceEvent{
		PlanID:        planID,
		TenantID:      tenantID,
		OccurrenceIDs: lo.Map(occs, func(o *occurrence.BillingOccurrence, _ int) string { return o.ID }),
		Seqs:          lo.Map(occs, func(o *occurrence.BillingOccurrence, _ int) int { return o.Seq }),
	}
	if len(occs) == 1 {
		e.Status = string(occs[0].OccurrenceStatus)
	}
	return e
}

func invoiceEvent(inv *invoice.Invoice) webhookDto.InternalInvoiceEvent {
	return webhookDto.InternalInvoiceEvent{
		InvoiceID:     inv.ID,
		TenantID:      inv.TenantID,
		InvoiceType:   string(inv.InvoiceType),
		InvoiceStatus: string(inv.InvoiceStatus),
		GrandTotal:    inv.Totals.GrandTotal.String(),
		Balance:       inv.Totals.Balance.String(),
	}
}
