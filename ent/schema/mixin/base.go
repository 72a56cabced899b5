package mixin

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"entgo.io/ent/schema/mixin"
)

// BaseMixin carries the tenant, soft-delete status and audit columns every
// billing table has. They map onto types.BaseModel.
type BaseMixin struct {
	mixin.Schema
}

// Fields of the BaseMixin.
func (BaseMixin) Fields() []ent.Field {
	return []ent.Field{
		field.String("tenant_id").
			SchemaType(map[string]string{
				"postgres": "varchar(50)",
			}).
			NotEmpty().
			Immutable(),
		field.String("status").
			SchemaType(map[string]string{
				"postgres": "varchar(20)",
			}).
			Default("published"),
		field.Time("created_at").
			Immutable().
			Default(time.Now),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
		field.String("created_by").
			Optional().
			Immutable(),
		field.String("updated_by").
			Optional(),
	}
}

// Indexes of the BaseMixin.
func (BaseMixin) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("tenant_id", "status"),
	}
}
