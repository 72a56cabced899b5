package types

import (
	"encoding/json"
	"time"
)

// WebhookEvent represents a webhook event to be delivered
type WebhookEvent struct {
	ID        string          `json:"id"`
	EventName string          `json:"event_name"`
	TenantID  string          `json:"tenant_id"`
	UserID    string          `json:"user_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// billing plan event names
const (
	WebhookEventBillingPlanCreated       = "billing_plan.created"
	WebhookEventBillingPlanStatusUpdated = "billing_plan.status_updated"
)

// billing occurrence event names
const (
	WebhookEventBillingOccurrenceGenerated     = "billing_occurrence.generated"
	WebhookEventBillingOccurrenceStatusUpdated = "billing_occurrence.status_updated"
)

// invoice event names
const (
	WebhookEventInvoiceCreated         = "invoice.created"
	WebhookEventInvoiceStatusUpdated   = "invoice.status_updated"
	WebhookEventInvoicePaymentRecorded = "invoice.payment_recorded"
)
