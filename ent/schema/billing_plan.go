package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	baseMixin "github.com/flexprice/billing-engine/ent/schema/mixin"
	"github.com/flexprice/billing-engine/internal/types"
)

const Idx_billing_plan_tenant_code = "idx_billing_plans_tenant_code"

// BillingPlan holds the schema definition for the BillingPlan entity.
// Source, schedule and revisions are stored as jsonb; contract and customer
// are copied out of the source so lists can filter on them.
type BillingPlan struct {
	ent.Schema
}

// Annotations of the BillingPlan.
func (BillingPlan) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "billing_plans"},
	}
}

// Mixin of the BillingPlan.
func (BillingPlan) Mixin() []ent.Mixin {
	return []ent.Mixin{
		baseMixin.BaseMixin{},
		baseMixin.MetadataMixin{},
	}
}

// Fields of the BillingPlan.
func (BillingPlan) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			SchemaType(map[string]string{
				"postgres": "varchar(50)",
			}).
			Unique().
			Immutable(),
		field.String("code").
			SchemaType(map[string]string{
				"postgres": "varchar(100)",
			}).
			NotEmpty().
			Immutable(),
		field.String("contract_id").
			SchemaType(map[string]string{
				"postgres": "varchar(100)",
			}).
			Optional(),
		field.String("customer_id").
			SchemaType(map[string]string{
				"postgres": "varchar(100)",
			}).
			Optional(),
		field.JSON("source", map[string]interface{}{}).
			SchemaType(map[string]string{
				"postgres": "jsonb",
			}),
		field.JSON("schedule", map[string]interface{}{}).
			SchemaType(map[string]string{
				"postgres": "jsonb",
			}),
		field.JSON("revisions", []map[string]interface{}{}).
			SchemaType(map[string]string{
				"postgres": "jsonb",
			}).
			Optional(),
		field.String("plan_status").
			SchemaType(map[string]string{
				"postgres": "varchar(20)",
			}).
			Default(string(types.PlanStatusDraft)),
		field.Time("last_run_at").
			Optional().
			Nillable(),
		field.Time("next_due_at").
			Optional().
			Nillable(),
		field.Time("activated_at").
			Optional().
			Nillable(),
	}
}

// Indexes of the BillingPlan.
func (BillingPlan) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("tenant_id", "code").
			Unique().
			StorageKey(Idx_billing_plan_tenant_code).
			Annotations(entsql.IndexWhere("status <> 'deleted'")),
		index.Fields("tenant_id", "plan_status").
			Annotations(entsql.IndexWhere("status = 'published'")),
		index.Fields("tenant_id", "contract_id"),
		index.Fields("tenant_id", "customer_id"),
	}
}
