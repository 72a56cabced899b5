package types

// Status is the soft-delete status of a row. It is separate from the
// lifecycle status each billing entity carries.
type Status string

const (
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
	StatusDeleted   Status = "deleted"
)
