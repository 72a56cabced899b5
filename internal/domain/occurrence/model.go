package occurrence

import (
	"time"

	"github.com/flexprice/billing-engine/internal/types"
	"github.com/shopspring/decimal"
)

// BillingOccurrence is one billable period generated from a billing plan.
// Amount is locked when the occurrence is generated.
type BillingOccurrence struct {
	ID               string                 `json:"id"`
	PlanID           string                 `json:"plan_id"`
	Seq              int                    `json:"seq"`
	WindowStart      time.Time              `json:"window_start"`
	WindowEnd        time.Time              `json:"window_end"`
	DueAt            time.Time              `json:"due_at"`
	Amount           decimal.Decimal        `json:"amount"`
	Currency         string                 `json:"currency"`
	OccurrenceStatus types.OccurrenceStatus `json:"occurrence_status"`
	InvoiceID        *string                `json:"invoice_id,omitempty"`
	types.BaseModel
}

// IsPending reports whether the occurrence can still be invoiced
func (o *BillingOccurrence) IsPending() bool {
	return o.OccurrenceStatus == types.OccurrenceStatusPending
}
