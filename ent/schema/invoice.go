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

const Idx_invoice_tenant_code = "idx_invoices_tenant_code"

// Invoice holds the schema definition for the Invoice entity. Items, totals
// and party snapshots live in jsonb; grand_total and balance are copied out
// for reporting queries.
type Invoice struct {
	ent.Schema
}

// Annotations of the Invoice.
func (Invoice) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "invoices"},
	}
}

// Mixin of the Invoice.
func (Invoice) Mixin() []ent.Mixin {
	return []ent.Mixin{
		baseMixin.BaseMixin{},
		baseMixin.MetadataMixin{},
	}
}

func jsonb(name string, typ interface{}) ent.Field {
	return field.JSON(name, typ).
		SchemaType(map[string]string{
			"postgres": "jsonb",
		})
}

// optionalJSONB is a nullable jsonb column
func optionalJSONB(name string, typ interface{}) ent.Field {
	return field.JSON(name, typ).
		SchemaType(map[string]string{
			"postgres": "jsonb",
		}).
		Optional()
}

func money(name string) ent.Field {
	return field.Other(name, decimal.Decimal{}).
		SchemaType(map[string]string{
			"postgres": "numeric(20,8)",
		}).
		Default(decimal.Zero)
}

// Fields of the Invoice.
func (Invoice) Fields() []ent.Field {
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
		field.String("invoice_type").
			SchemaType(map[string]string{
				"postgres": "varchar(20)",
			}).
			Default(string(types.InvoiceTypeInvoice)).
			Immutable(),
		field.String("invoice_status").
			SchemaType(map[string]string{
				"postgres": "varchar(20)",
			}).
			Default(string(types.InvoiceStatusDraft)),
		field.String("currency").
			SchemaType(map[string]string{
				"postgres": "varchar(3)",
			}).
			NotEmpty(),
		field.Other("fx_rate", decimal.Decimal{}).
			SchemaType(map[string]string{
				"postgres": "numeric(20,8)",
			}).
			Optional().
			Nillable(),
		field.String("customer_id").
			Optional(),
		field.String("billing_plan_id").
			Optional(),
		jsonb("seller", map[string]interface{}{}),
		jsonb("buyer", map[string]interface{}{}),
		jsonb("items", []map[string]interface{}{}),
		optionalJSONB("invoice_discount", map[string]interface{}{}),
		jsonb("totals", map[string]interface{}{}),
		jsonb("links", map[string]interface{}{}),
		optionalJSONB("notes", map[string]string{}),
		optionalJSONB("terms", map[string]string{}),
		money("grand_total"),
		money("balance"),
		field.Time("issue_date").Optional().Nillable(),
		field.Time("due_date").Optional().Nillable(),
		field.Time("issued_at").Optional().Nillable(),
		field.Time("sent_at").Optional().Nillable(),
		field.Time("paid_at").Optional().Nillable(),
		field.Time("canceled_at").Optional().Nillable(),
	}
}

// Indexes of the Invoice.
func (Invoice) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("tenant_id", "code").
			Unique().
			StorageKey(Idx_invoice_tenant_code).
			Annotations(entsql.IndexWhere("status <> 'deleted'")),
		index.Fields("tenant_id", "invoice_status"),
		index.Fields("tenant_id", "customer_id"),
		index.Fields("tenant_id", "billing_plan_id"),
	}
}
