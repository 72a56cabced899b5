package postgres

import (
	"context"
	"time"

	"github.com/flexprice/billing-engine/ent/schema"
	"github.com/flexprice/billing-engine/internal/cache"
	"github.com/flexprice/billing-engine/internal/domain/billingplan"
	"github.com/flexprice/billing-engine/internal/logger"
	"github.com/flexprice/billing-engine/internal/postgres"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/samber/lo"
)

const billingPlanColumns = `
	id, tenant_id, code, contract_id, customer_id, source, schedule, revisions,
	plan_status, last_run_at, next_due_at, activated_at, metadata,
	status, created_at, updated_at, created_by, updated_by`

var billingPlanIndexHints = map[string]string{
	schema.Idx_billing_plan_tenant_code: "A billing plan with this code already exists",
}

type billingPlanRow struct {
	ID          string                        `db:"id"`
	Code        string                        `db:"code"`
	ContractID  string                        `db:"contract_id"`
	CustomerID  string                        `db:"customer_id"`
	Source      jsonb[billingplan.Source]     `db:"source"`
	Schedule    jsonb[billingplan.Schedule]   `db:"schedule"`
	Revisions   jsonb[[]billingplan.Revision] `db:"revisions"`
	PlanStatus  types.PlanStatus              `db:"plan_status"`
	LastRunAt   *time.Time                    `db:"last_run_at"`
	NextDueAt   *time.Time                    `db:"next_due_at"`
	ActivatedAt *time.Time                    `db:"activated_at"`
	Metadata    types.Metadata                `db:"metadata"`
	types.BaseModel
}

func newBillingPlanRow(p *billingplan.BillingPlan) *billingPlanRow {
	return &billingPlanRow{
		ID:          p.ID,
		Code:        p.Code,
		ContractID:  p.Source.ContractID,
		CustomerID:  p.Source.Snapshot.CustomerID,
		Source:      jsonb[billingplan.Source]{V: p.Source},
		Schedule:    jsonb[billingplan.Schedule]{V: p.Schedule},
		Revisions:   jsonb[[]billingplan.Revision]{V: lo.Ternary(p.Revisions == nil, []billingplan.Revision{}, p.Revisions)},
		PlanStatus:  p.PlanStatus,
		LastRunAt:   p.LastRunAt,
		NextDueAt:   p.NextDueAt,
		ActivatedAt: p.ActivatedAt,
		Metadata:    p.Metadata,
		BaseModel:   p.BaseModel,
	}
}

// toDomain copies every reference field so callers never share state with
// a cached row
func (r *billingPlanRow) toDomain() *billingplan.BillingPlan {
	source := r.Source.V
	source.Snapshot.Title = lo.Assign(source.Snapshot.Title)
	return &billingplan.BillingPlan{
		ID:          r.ID,
		Code:        r.Code,
		Source:      source,
		Schedule:    r.Schedule.V,
		PlanStatus:  r.PlanStatus,
		LastRunAt:   copyTime(r.LastRunAt),
		NextDueAt:   copyTime(r.NextDueAt),
		ActivatedAt: copyTime(r.ActivatedAt),
		Revisions:   append([]billingplan.Revision(nil), r.Revisions.V...),
		Metadata:    lo.Assign(r.Metadata),
		BaseModel:   r.BaseModel,
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	return lo.ToPtr(*t)
}

type billingPlanRepository struct {
	db     *postgres.DB
	logger *logger.Logger
	cache  cache.Cache
}

func NewBillingPlanRepository(db *postgres.DB, logger *logger.Logger, cache cache.Cache) billingplan.Repository {
	return &billingPlanRepository{db: db, logger: logger, cache: cache}
}

func (r *billingPlanRepository) Create(ctx context.Context, p *billingplan.BillingPlan) error {
	span := StartRepositorySpan(ctx, "billing_plan", "create", map[string]interface{}{
		"plan_id": p.ID,
		"code":    p.Code,
	})

	query := `
	INSERT INTO billing_plans (` + billingPlanColumns + `
	) VALUES (
		:id, :tenant_id, :code, :contract_id, :customer_id, :source, :schedule, :revisions,
		:plan_status, :last_run_at, :next_due_at, :activated_at, :metadata,
		:status, :created_at, :updated_at, :created_by, :updated_by
	)`

	_, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, newBillingPlanRow(p))
	err = dbError(err, "Billing plan", p.ID, billingPlanIndexHints)
	FinishSpan(span, err)
	return err
}

func (r *billingPlanRepository) Get(ctx context.Context, id string) (*billingplan.BillingPlan, error) {
	if row := r.getCache(ctx, id); row != nil {
		return row.toDomain(), nil
	}

	span := StartRepositorySpan(ctx, "billing_plan", "get", map[string]interface{}{
		"plan_id": id,
	})

	query, args, err := NewQueryBuilder(ctx, nil).
		Eq("id", id).
		Build("SELECT " + billingPlanColumns + " FROM billing_plans")
	if err != nil {
		FinishSpan(span, err)
		return nil, dbError(err, "Billing plan", id, nil)
	}

	var row billingPlanRow
	err = r.db.GetQuerier(ctx).GetContext(ctx, &row, query, args...)
	if err != nil {
		err = dbError(err, "Billing plan", id, nil)
		FinishSpan(span, err)
		return nil, err
	}
	FinishSpan(span, nil)

	r.setCache(ctx, &row)
	return row.toDomain(), nil
}

func (r *billingPlanRepository) GetByCode(ctx context.Context, code string) (*billingplan.BillingPlan, error) {
	query, args, err := NewQueryBuilder(ctx, nil).
		Eq("code", code).
		Build("SELECT " + billingPlanColumns + " FROM billing_plans")
	if err != nil {
		return nil, dbError(err, "Billing plan", code, nil)
	}

	var row billingPlanRow
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &row, query, args...); err != nil {
		return nil, dbError(err, "Billing plan with code", code, nil)
	}
	return row.toDomain(), nil
}

func (r *billingPlanRepository) Update(ctx context.Context, p *billingplan.BillingPlan) error {
	span := StartRepositorySpan(ctx, "billing_plan", "update", map[string]interface{}{
		"plan_id":     p.ID,
		"plan_status": p.PlanStatus,
	})

	query := `
	UPDATE billing_plans SET
		contract_id = :contract_id,
		customer_id = :customer_id,
		source = :source,
		schedule = :schedule,
		revisions = :revisions,
		plan_status = :plan_status,
		last_run_at = :last_run_at,
		next_due_at = :next_due_at,
		activated_at = :activated_at,
		metadata = :metadata,
		updated_at = :updated_at,
		updated_by = :updated_by
	WHERE id = :id AND tenant_id = :tenant_id AND status = :status`

	res, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, newBillingPlanRow(p))
	if err == nil {
		err = expectOneRow(res, "Billing plan", p.ID)
	} else {
		err = dbError(err, "Billing plan", p.ID, billingPlanIndexHints)
	}
	FinishSpan(span, err)

	r.deleteCache(ctx, p.ID)
	return err
}

// UpdateRunPointers leaves the plan lifecycle columns alone, so a pause or
// revision committed during a run survives it
func (r *billingPlanRepository) UpdateRunPointers(ctx context.Context, p *billingplan.BillingPlan) error {
	span := StartRepositorySpan(ctx, "billing_plan", "update_run_pointers", map[string]interface{}{
		"plan_id":     p.ID,
		"next_due_at": p.NextDueAt,
	})

	query := `
	UPDATE billing_plans SET
		last_run_at = $1,
		next_due_at = $2,
		updated_at = $3,
		updated_by = $4
	WHERE id = $5 AND tenant_id = $6 AND status = $7 AND plan_status = $8`

	res, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		p.LastRunAt,
		p.NextDueAt,
		p.UpdatedAt,
		p.UpdatedBy,
		p.ID,
		types.GetTenantID(ctx),
		types.StatusPublished,
		types.PlanStatusActive,
	)
	if err == nil {
		err = expectRowInState(res, "Billing plan", p.ID, types.PlanStatusActive)
	} else {
		err = dbError(err, "Billing plan", p.ID, nil)
	}
	FinishSpan(span, err)

	r.deleteCache(ctx, p.ID)
	return err
}

func (r *billingPlanRepository) Delete(ctx context.Context, p *billingplan.BillingPlan) error {
	query := `
	UPDATE billing_plans SET status = $1, updated_at = $2, updated_by = $3
	WHERE id = $4 AND tenant_id = $5 AND status = $6`

	res, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		types.StatusDeleted,
		time.Now().UTC(),
		types.GetUserID(ctx),
		p.ID,
		types.GetTenantID(ctx),
		types.StatusPublished,
	)
	r.deleteCache(ctx, p.ID)
	if err != nil {
		return dbError(err, "Billing plan", p.ID, nil)
	}
	return expectOneRow(res, "Billing plan", p.ID)
}

func (r *billingPlanRepository) filterQuery(ctx context.Context, filter *types.BillingPlanFilter) *QueryBuilder {
	return NewQueryBuilder(ctx, filter.QueryFilter).
		In("id", filter.PlanIDs, len(filter.PlanIDs)).
		In("plan_status", filter.PlanStatus, len(filter.PlanStatus)).
		Eq("contract_id", filter.ContractID).
		Eq("customer_id", filter.CustomerID)
}

func (r *billingPlanRepository) List(ctx context.Context, filter *types.BillingPlanFilter) ([]*billingplan.BillingPlan, error) {
	if filter == nil {
		filter = types.NewNoLimitBillingPlanFilter()
	}

	query, args, err := r.filterQuery(ctx, filter).
		WithSort(filter.QueryFilter).
		WithPagination(filter.QueryFilter).
		Build("SELECT " + billingPlanColumns + " FROM billing_plans")
	if err != nil {
		return nil, dbError(err, "Billing plan", "", nil)
	}

	var rows []billingPlanRow
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, dbError(err, "Billing plan", "", nil)
	}
	return lo.Map(rows, func(row billingPlanRow, _ int) *billingplan.BillingPlan {
		return row.toDomain()
	}), nil
}

func (r *billingPlanRepository) Count(ctx context.Context, filter *types.BillingPlanFilter) (int, error) {
	if filter == nil {
		filter = types.NewNoLimitBillingPlanFilter()
	}

	query, args, err := r.filterQuery(ctx, filter).Build("SELECT COUNT(*) FROM billing_plans")
	if err != nil {
		return 0, dbError(err, "Billing plan", "", nil)
	}

	var count int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &count, query, args...); err != nil {
		return 0, dbError(err, "Billing plan", "", nil)
	}
	return count, nil
}

// ListActiveTenants is the only unscoped read: the scheduler uses it to
// fan out across tenants
func (r *billingPlanRepository) ListActiveTenants(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT tenant_id FROM billing_plans
	WHERE plan_status = $1 AND status = $2
	ORDER BY tenant_id`

	var tenants []string
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &tenants, query, types.PlanStatusActive, types.StatusPublished); err != nil {
		return nil, dbError(err, "Billing plan", "", nil)
	}
	return tenants, nil
}

// Plans are only cached outside transactions, where a read must observe
// the transaction's own writes.
func (r *billingPlanRepository) cacheKey(ctx context.Context, id string) string {
	return cache.GenerateKey(cache.PrefixBillingPlan, types.GetTenantID(ctx), id)
}

func (r *billingPlanRepository) getCache(ctx context.Context, id string) *billingPlanRow {
	if _, inTx := postgres.GetTx(ctx); inTx || r.cache == nil {
		return nil
	}
	if v, found := r.cache.Get(ctx, r.cacheKey(ctx, id)); found {
		if row, ok := v.(billingPlanRow); ok {
			return &row
		}
	}
	return nil
}

func (r *billingPlanRepository) setCache(ctx context.Context, row *billingPlanRow) {
	if _, inTx := postgres.GetTx(ctx); inTx || r.cache == nil {
		return
	}
	r.cache.Set(ctx, r.cacheKey(ctx, row.ID), *row, 0)
}

// deleteCache drops the row now and again after commit, since a read
// outside the transaction may cache the old row while it is still open
func (r *billingPlanRepository) deleteCache(ctx context.Context, id string) {
	if r.cache == nil {
		return
	}
	key := r.cacheKey(ctx, id)
	r.cache.Delete(ctx, key)
	postgres.AfterCommit(ctx, func() {
		r.cache.Delete(context.WithoutCancel(ctx), key)
	})
}
