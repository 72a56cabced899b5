package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	baseMixin "github.com/flexprice/billing-engine/ent/schema/mixin"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/shopspring/decimal"
)

// Idx_billing_occurrence_plan_seq makes generation idempotent: a second
// writer of the same seq fails on it.
const Idx_billing_occurrence_plan_seq = "idx_billing_occurrences_plan_seq"

// BillingOccurrence holds the schema definition for the BillingOccurrence entity.
type BillingOccurrence struct {
	ent.Schema
}

// Annotations of the BillingOccurrence.
func (BillingOccurrence) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "billing_occurrences"},
	}
}

// Mixin of the BillingOccurrence.
func (BillingOccurrence) Mixin() []ent.Mixin {
	return []ent.Mixin{
		baseMixin.BaseMixin{},
	}
}

// Fields of the BillingOccurrence.
func (BillingOccurrence) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			SchemaType(map[string]string{
				"postgres": "varchar(50)",
			}).
			Unique().
			Immutable(),
		field.String("plan_id").
			SchemaType(map[string]string{
				"postgres": "varchar(50)",
			}).
			NotEmpty().
			Immutable(),
		field.Int("seq").
			Positive().
			Immutable(),
		field.Time("window_start").
			Immutable(),
		field.Time("window_end").
			Immutable(),
		field.Time("due_at").
			Immutable(),
		field.Other("amount", decimal.Decimal{}).
			SchemaType(map[string]string{
				"postgres": "numeric(20,8)",
			}).
			Immutable(),
		field.String("currency").
			SchemaType(map[string]string{
				"postgres": "varchar(3)",
			}).
			NotEmpty().
			Immutable(),
		field.String("occurrence_status").
			SchemaType(map[string]string{
				"postgres": "varchar(20)",
			}).
			Default(string(types.OccurrenceStatusPending)),
		field.String("invoice_id").
			SchemaType(map[string]string{
				"postgres": "varchar(50)",
			}).
			Optional().
			Nillable(),
	}
}

// Indexes of the BillingOccurrence.
func (BillingOccurrence) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("tenant_id", "plan_id", "seq").
			Unique().
			StorageKey(Idx_billing_occurrence_plan_seq),
		index.Fields("tenant_id", "plan_id", "occurrence_status"),
		index.Fields("tenant_id", "invoice_id"),
	}
}
