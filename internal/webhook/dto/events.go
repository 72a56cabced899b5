package webhookDto

// InternalBillingPlanEvent is published on billing_plan.* events
type InternalBillingPlanEvent struct {
	PlanID     string `json:"plan_id"`
	TenantID   string `json:"tenant_id"`
	PlanStatus string `json:"plan_status"`
}

// InternalOccurrenceEvent covers a batch of occurrences of one plan. Status
// is only set when the event is about a single occurrence.
type InternalOccurrenceEvent struct {
	PlanID        string   `json:"plan_id"`
	TenantID      string   `json:"tenant_id"`
	OccurrenceIDs []string `json:"occurrence_ids"`
	Seqs          []int    `json:"seqs"`
	Status        string   `json:"status,omitempty"`
}

// InternalInvoiceEvent is published on invoice.* events. Amounts are decimal
// strings so receivers never lose precision.
type InternalInvoiceEvent struct {
	InvoiceID     string `json:"invoice_id"`
	TenantID      string `json:"tenant_id"`
	InvoiceType   string `json:"invoice_type"`
	InvoiceStatus string `json:"invoice_status"`
	GrandTotal    string `json:"grand_total"`
	Balance       string `json:"balance"`
}
