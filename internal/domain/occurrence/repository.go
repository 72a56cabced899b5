package occurrence

import (
	"context"

	"github.com/flexprice/billing-engine/internal/types"
)

// Repository defines the interface for billing occurrence persistence.
// Implementations enforce a unique (tenant, plan, seq) and report a
// duplicate as ierr.ErrAlreadyExists.
type Repository interface {
	Create(ctx context.Context, o *BillingOccurrence) error
	Get(ctx context.Context, id string) (*BillingOccurrence, error)
	// Update writes the status and invoice of o, but only while the stored
	// status is still from. Otherwise it is ierr.ErrInvalidState and
	// nothing is written.
	Update(ctx context.Context, o *BillingOccurrence, from types.OccurrenceStatus) error
	List(ctx context.Context, filter *types.OccurrenceFilter) ([]*BillingOccurrence, error)
	Count(ctx context.Context, filter *types.OccurrenceFilter) (int, error)

	// GetMaxSeq returns the highest persisted seq of the plan, 0 when none
	GetMaxSeq(ctx context.Context, planID string) (int, error)
}
