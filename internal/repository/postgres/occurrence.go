package postgres

import (
	"context"
	"time"

	"github.com/flexprice/billing-engine/ent/schema"
	"github.com/flexprice/billing-engine/internal/domain/occurrence"
	"github.com/flexprice/billing-engine/internal/logger"
	"github.com/flexprice/billing-engine/internal/postgres"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const occurrenceColumns = `
	id, tenant_id, plan_id, seq, window_start, window_end, due_at, amount, currency,
	occurrence_status, invoice_id, status, created_at, updated_at, created_by, updated_by`

var occurrenceIndexHints = map[string]string{
	schema.Idx_billing_occurrence_plan_seq: "This occurrence of the plan was already generated",
}

type occurrenceRow struct {
	ID               string                 `db:"id"`
	PlanID           string                 `db:"plan_id"`
	Seq              int                    `db:"seq"`
	WindowStart      time.Time              `db:"window_start"`
	WindowEnd        time.Time              `db:"window_end"`
	DueAt            time.Time              `db:"due_at"`
	Amount           decimal.Decimal        `db:"amount"`
	Currency         string                 `db:"currency"`
	OccurrenceStatus types.OccurrenceStatus `db:"occurrence_status"`
	InvoiceID        *string                `db:"invoice_id"`
	types.BaseModel
}

func (r occurrenceRow) toDomain() *occurrence.BillingOccurrence {
	return &occurrence.BillingOccurrence{
		ID:               r.ID,
		PlanID:           r.PlanID,
		Seq:              r.Seq,
		WindowStart:      r.WindowStart.UTC(),
		WindowEnd:        r.WindowEnd.UTC(),
		DueAt:            r.DueAt.UTC(),
		Amount:           r.Amount,
		Currency:         r.Currency,
		OccurrenceStatus: r.OccurrenceStatus,
		InvoiceID:        r.InvoiceID,
		BaseModel:        r.BaseModel,
	}
}

type occurrenceRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewOccurrenceRepository(db *postgres.DB, logger *logger.Logger) occurrence.Repository {
	return &occurrenceRepository{db: db, logger: logger}
}

func (r *occurrenceRepository) Create(ctx context.Context, o *occurrence.BillingOccurrence) error {
	span := StartRepositorySpan(ctx, "occurrence", "create", map[string]interface{}{
		"plan_id": o.PlanID,
		"seq":     o.Seq,
	})

	query := `
	INSERT INTO billing_occurrences (
		id, tenant_id, plan_id, seq, window_start, window_end, due_at, amount, currency,
		occurrence_status, invoice_id, status, created_at, updated_at, created_by, updated_by
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
	)`

	_, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		o.ID,
		o.TenantID,
		o.PlanID,
		o.Seq,
		o.WindowStart,
		o.WindowEnd,
		o.DueAt,
		o.Amount,
		o.Currency,
		o.OccurrenceStatus,
		o.InvoiceID,
		o.Status,
		o.CreatedAt,
		o.UpdatedAt,
		o.CreatedBy,
		o.UpdatedBy,
	)
	err = dbError(err, "Billing occurrence", o.ID, occurrenceIndexHints)
	FinishSpan(span, err)
	return err
}

func (r *occurrenceRepository) Get(ctx context.Context, id string) (*occurrence.BillingOccurrence, error) {
	query, args, err := NewQueryBuilder(ctx, nil).
		Eq("id", id).
		Build("SELECT " + occurrenceColumns + " FROM billing_occurrences")
	if err != nil {
		return nil, dbError(err, "Billing occurrence", id, nil)
	}

	var row occurrenceRow
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &row, query, args...); err != nil {
		return nil, dbError(err, "Billing occurrence", id, nil)
	}
	return row.toDomain(), nil
}

// Update persists the mutable part of an occurrence: its status and the
// invoice it was billed on. The window and amount are locked at generation.
// The write only lands while the row is still in status from, which is what
// keeps two bridge runs from billing the same occurrence.
func (r *occurrenceRepository) Update(ctx context.Context, o *occurrence.BillingOccurrence, from types.OccurrenceStatus) error {
	query := `
	UPDATE billing_occurrences SET
		occurrence_status = $1,
		invoice_id = $2,
		updated_at = $3,
		updated_by = $4
	WHERE id = $5 AND tenant_id = $6 AND status = $7 AND occurrence_status = $8`

	res, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		o.OccurrenceStatus,
		o.InvoiceID,
		o.UpdatedAt,
		o.UpdatedBy,
		o.ID,
		types.GetTenantID(ctx),
		types.StatusPublished,
		from,
	)
	if err != nil {
		return dbError(err, "Billing occurrence", o.ID, nil)
	}
	return expectRowInState(res, "Billing occurrence", o.ID, from)
}

func (r *occurrenceRepository) filterQuery(ctx context.Context, filter *types.OccurrenceFilter) *QueryBuilder {
	return NewQueryBuilder(ctx, filter.QueryFilter).
		Eq("plan_id", filter.PlanID).
		In("id", filter.OccurrenceIDs, len(filter.OccurrenceIDs)).
		In("occurrence_status", filter.OccurrenceStatus, len(filter.OccurrenceStatus))
}

// List returns occurrences ordered by plan and seq
func (r *occurrenceRepository) List(ctx context.Context, filter *types.OccurrenceFilter) ([]*occurrence.BillingOccurrence, error) {
	if filter == nil {
		filter = types.NewNoLimitOccurrenceFilter()
	}

	span := StartRepositorySpan(ctx, "occurrence", "list", map[string]interface{}{
		"plan_id": filter.PlanID,
	})

	query, args, err := r.filterQuery(ctx, filter).
		OrderBy("plan_id ASC, seq ASC").
		WithPagination(filter.QueryFilter).
		Build("SELECT " + occurrenceColumns + " FROM billing_occurrences")
	if err != nil {
		err = dbError(err, "Billing occurrence", "", nil)
		FinishSpan(span, err)
		return nil, err
	}

	var rows []occurrenceRow
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		err = dbError(err, "Billing occurrence", "", nil)
		FinishSpan(span, err)
		return nil, err
	}
	FinishSpan(span, nil)

	return lo.Map(rows, func(row occurrenceRow, _ int) *occurrence.BillingOccurrence {
		return row.toDomain()
	}), nil
}

func (r *occurrenceRepository) Count(ctx context.Context, filter *types.OccurrenceFilter) (int, error) {
	if filter == nil {
		filter = types.NewNoLimitOccurrenceFilter()
	}

	query, args, err := r.filterQuery(ctx, filter).Build("SELECT COUNT(*) FROM billing_occurrences")
	if err != nil {
		return 0, dbError(err, "Billing occurrence", "", nil)
	}

	var count int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &count, query, args...); err != nil {
		return 0, dbError(err, "Billing occurrence", "", nil)
	}
	return count, nil
}

// GetMaxSeq counts every row of the plan regardless of status so a seq is
// never reused
func (r *occurrenceRepository) GetMaxSeq(ctx context.Context, planID string) (int, error) {
	query := `
	SELECT COALESCE(MAX(seq), 0) FROM billing_occurrences
	WHERE tenant_id = $1 AND plan_id = $2`

	var seq int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &seq, query, types.GetTenantID(ctx), planID); err != nil {
		return 0, dbError(err, "Billing occurrence", planID, nil)
	}
	return seq, nil
}
