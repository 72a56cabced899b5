package mixin

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/mixin"
)

// MetadataMixin adds the free-form string map stored as jsonb
type MetadataMixin struct {
	mixin.Schema
}

// Fields of the MetadataMixin.
func (MetadataMixin) Fields() []ent.Field {
	return []ent.Field{
		field.JSON("metadata", map[string]string{}).
			SchemaType(map[string]string{
				"postgres": "jsonb",
			}).
			Default(map[string]string{}),
	}
}
