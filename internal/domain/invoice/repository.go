package invoice

import (
	"context"

	"github.com/flexprice/billing-engine/internal/types"
)

// Repository defines the interface for invoice persistence operations.
// Codes are unique per tenant; a duplicate is ierr.ErrAlreadyExists.
type Repository interface {
	// Create creates a new invoice
	Create(ctx context.Context, invoice *Invoice) error

	// Get retrieves an invoice by ID
	Get(ctx context.Context, id string) (*Invoice, error)

	// GetByCode retrieves an invoice by its tenant-unique code
	GetByCode(ctx context.Context, code string) (*Invoice, error)

	// Update updates an existing invoice
	Update(ctx context.Context, invoice *Invoice) error

	// Delete soft deletes an invoice
	Delete(ctx context.Context, invoice *Invoice) error

	// List retrieves invoices based on filter criteria
	List(ctx context.Context, filter *types.InvoiceFilter) ([]*Invoice, error)

	// Count returns the total count of invoices based on filter criteria
	Count(ctx context.Context, filter *types.InvoiceFilter) (int, error)
}
