package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/flexprice/billing-engine/ent/schema"
	"github.com/flexprice/billing-engine/internal/cache"
	"github.com/flexprice/billing-engine/internal/config"
	"github.com/flexprice/billing-engine/internal/domain/billingplan"
	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/flexprice/billing-engine/internal/logger"
	"github.com/flexprice/billing-engine/internal/postgres"
	"github.com/flexprice/billing-engine/internal/testutil"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

var planRowColumns = []string{
	"id", "tenant_id", "code", "contract_id", "customer_id", "source", "schedule", "revisions",
	"plan_status", "last_run_at", "next_due_at", "activated_at", "metadata",
	"status", "created_at", "updated_at", "created_by", "updated_by",
}

// repositorySuite wires a postgres.DB onto go-sqlmock
type repositorySuite struct {
	suite.Suite
	ctx  context.Context
	db   *postgres.DB
	mock sqlmock.Sqlmock
}

func (s *repositorySuite) SetupTest() {
	mockDB, mock, err := sqlmock.New()
	s.Require().NoError(err)
	s.db = postgres.NewFromSqlx(sqlx.NewDb(mockDB, "sqlmock"), logger.NewNoopLogger())
	s.mock = mock
	s.ctx = testutil.SetupContext()
}

func (s *repositorySuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func q(sql string) string {
	return regexp.QuoteMeta(sql)
}

type BillingPlanRepositorySuite struct {
	repositorySuite
	repo billingplan.Repository
}

func TestBillingPlanRepository(t *testing.T) {
	suite.Run(t, new(BillingPlanRepositorySuite))
}

func (s *BillingPlanRepositorySuite) SetupTest() {
	s.repositorySuite.SetupTest()
	cfg := config.GetDefaultConfig()
	cfg.Cache = config.CacheConfig{Enabled: true, TTL: time.Minute}
	s.repo = NewBillingPlanRepository(s.db, logger.NewNoopLogger(), cache.NewInMemoryCache(cfg))
}

func (s *BillingPlanRepositorySuite) plan() *billingplan.BillingPlan {
	return &billingplan.BillingPlan{
		ID:   "bplan_01",
		Code: "BP-1",
		Source: billingplan.Source{
			ContractID: "contract_1",
			Snapshot:   billingplan.Snapshot{CustomerID: "cust_1", ServiceName: "Cleaning"},
		},
		Schedule: billingplan.Schedule{
			Amount:    decimal.NewFromInt(100),
			Currency:  "EUR",
			Period:    types.BillingPeriodMonthly,
			DueRule:   types.DueRule{Type: types.DueRuleDayOfMonth, Day: 1},
			StartDate: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		},
		PlanStatus: types.PlanStatusDraft,
		BaseModel:  types.GetDefaultBaseModel(s.ctx),
	}
}

func (s *BillingPlanRepositorySuite) rows(p *billingplan.BillingPlan) *sqlmock.Rows {
	row := newBillingPlanRow(p)
	source, err := row.Source.Value()
	s.Require().NoError(err)
	schedule, err := row.Schedule.Value()
	s.Require().NoError(err)
	return sqlmock.NewRows(planRowColumns).AddRow(
		p.ID, p.TenantID, p.Code, row.ContractID, row.CustomerID, source, schedule, []byte(`[]`),
		string(p.PlanStatus), nil, nil, nil, []byte(`{}`),
		string(p.Status), p.CreatedAt, p.UpdatedAt, p.CreatedBy, p.UpdatedBy,
	)
}

func (s *BillingPlanRepositorySuite) expectGet(p *billingplan.BillingPlan) {
	s.mock.ExpectQuery(q("FROM billing_plans WHERE tenant_id = $1 AND status = $2 AND id = $3")).
		WithArgs(types.DefaultTenantID, "published", p.ID).
		WillReturnRows(s.rows(p))
}

func (s *BillingPlanRepositorySuite) TestCreate() {
	s.mock.ExpectExec(q("INSERT INTO billing_plans")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.NoError(s.repo.Create(s.ctx, s.plan()))
}

func (s *BillingPlanRepositorySuite) TestCreate_DuplicateCode() {
	s.mock.ExpectExec(q("INSERT INTO billing_plans")).
		WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: schema.Idx_billing_plan_tenant_code})

	err := s.repo.Create(s.ctx, s.plan())
	s.Error(err)
	s.True(ierr.IsAlreadyExists(err))
}

func (s *BillingPlanRepositorySuite) TestGet() {
	p := s.plan()
	s.expectGet(p)

	got, err := s.repo.Get(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(p.Code, got.Code)
	s.Equal("contract_1", got.Source.ContractID)
	s.Equal("Cleaning", got.Source.Snapshot.ServiceName)
	s.True(got.Schedule.Amount.Equal(decimal.NewFromInt(100)))
	s.True(got.Schedule.StartDate.Equal(p.Schedule.StartDate))
	s.Equal(types.PlanStatusDraft, got.PlanStatus)
	s.Empty(got.Revisions)

	// served from cache, no second query expected
	again, err := s.repo.Get(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(got.ID, again.ID)

	// mutating a returned plan never reaches the cached copy
	again.Revisions = append(again.Revisions, billingplan.Revision{Amount: decimal.NewFromInt(1)})
	third, err := s.repo.Get(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Empty(third.Revisions)
}

func (s *BillingPlanRepositorySuite) TestGet_NotFound() {
	s.mock.ExpectQuery(q("FROM billing_plans")).
		WillReturnRows(sqlmock.NewRows(planRowColumns))

	_, err := s.repo.Get(s.ctx, "bplan_missing")
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *BillingPlanRepositorySuite) TestUpdate_InvalidatesCache() {
	p := s.plan()
	s.expectGet(p)
	_, err := s.repo.Get(s.ctx, p.ID)
	s.Require().NoError(err)

	s.mock.ExpectExec(q("UPDATE billing_plans SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	p.PlanStatus = types.PlanStatusActive
	s.Require().NoError(s.repo.Update(s.ctx, p))

	s.expectGet(p)
	got, err := s.repo.Get(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(types.PlanStatusActive, got.PlanStatus)
}

func (s *BillingPlanRepositorySuite) TestUpdate_NoRow() {
	s.mock.ExpectExec(q("UPDATE billing_plans SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.repo.Update(s.ctx, s.plan())
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *BillingPlanRepositorySuite) TestUpdateRunPointers() {
	p := s.plan()
	p.PlanStatus = types.PlanStatusActive
	runAt := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	nextDue := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	p.LastRunAt = &runAt
	p.NextDueAt = &nextDue

	s.mock.ExpectExec(q("UPDATE billing_plans SET")).
		WithArgs(&runAt, &nextDue, sqlmock.AnyArg(), sqlmock.AnyArg(), p.ID, types.DefaultTenantID, "published", "active").
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.NoError(s.repo.UpdateRunPointers(s.ctx, p))
}

func (s *BillingPlanRepositorySuite) TestUpdateRunPointers_LeavesLifecycleColumns() {
	s.mock.ExpectExec(`(?s)SET\s+last_run_at = \$1,\s+next_due_at = \$2,\s+updated_at = \$3,\s+updated_by = \$4\s+WHERE`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.NoError(s.repo.UpdateRunPointers(s.ctx, s.plan()))
}

// A plan paused while occurrences were being generated keeps its pause
func (s *BillingPlanRepositorySuite) TestUpdateRunPointers_PlanNoLongerActive() {
	s.mock.ExpectExec(q("AND plan_status = $8")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.repo.UpdateRunPointers(s.ctx, s.plan())
	s.Error(err)
	s.True(ierr.IsInvalidState(err))
}

func (s *BillingPlanRepositorySuite) TestUpdateRunPointers_InvalidatesCacheAfterCommit() {
	p := s.plan()
	p.PlanStatus = types.PlanStatusActive
	repo := s.repo.(*billingPlanRepository)

	s.mock.ExpectBegin()
	s.mock.ExpectExec(q("UPDATE billing_plans SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()

	err := s.db.WithTx(s.ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateRunPointers(ctx, p); err != nil {
			return err
		}
		// a reader outside the transaction still sees the old row
		repo.setCache(s.ctx, newBillingPlanRow(p))
		s.NotNil(repo.getCache(s.ctx, p.ID))
		return nil
	})
	s.Require().NoError(err)
	s.Nil(repo.getCache(s.ctx, p.ID))
}

func (s *BillingPlanRepositorySuite) TestDelete() {
	p := s.plan()
	s.mock.ExpectExec(q("UPDATE billing_plans SET status = $1")).
		WithArgs("deleted", sqlmock.AnyArg(), types.DefaultUserID, p.ID, types.DefaultTenantID, "published").
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.NoError(s.repo.Delete(s.ctx, p))
}

func (s *BillingPlanRepositorySuite) TestList_Filters() {
	filter := types.NewBillingPlanFilter()
	filter.PlanStatus = []types.PlanStatus{types.PlanStatusActive, types.PlanStatusPaused}
	filter.CustomerID = "cust_1"

	p := s.plan()
	s.mock.ExpectQuery(q("WHERE tenant_id = $1 AND status = $2 AND plan_status IN ($3, $4) AND customer_id = $5 ORDER BY created_at DESC, id ASC LIMIT $6 OFFSET $7")).
		WithArgs(types.DefaultTenantID, "published", "active", "paused", "cust_1", 50, 0).
		WillReturnRows(s.rows(p))

	plans, err := s.repo.List(s.ctx, filter)
	s.Require().NoError(err)
	s.Require().Len(plans, 1)
	s.Equal(p.ID, plans[0].ID)
}

func (s *BillingPlanRepositorySuite) TestList_NoLimit() {
	filter := types.NewNoLimitBillingPlanFilter()
	filter.PlanIDs = []string{"bplan_01", "bplan_02"}
	filter.Order = lo.ToPtr(types.OrderAsc)

	s.mock.ExpectQuery(`id IN \(\$3, \$4\) ORDER BY created_at ASC, id ASC$`).
		WillReturnRows(sqlmock.NewRows(planRowColumns))

	plans, err := s.repo.List(s.ctx, filter)
	s.Require().NoError(err)
	s.Empty(plans)
}

func (s *BillingPlanRepositorySuite) TestCount() {
	filter := types.NewBillingPlanFilter()
	filter.ContractID = "contract_1"

	s.mock.ExpectQuery(q("SELECT COUNT(*) FROM billing_plans WHERE tenant_id = $1 AND status = $2 AND contract_id = $3")).
		WithArgs(types.DefaultTenantID, "published", "contract_1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := s.repo.Count(s.ctx, filter)
	s.Require().NoError(err)
	s.Equal(2, count)
}

func (s *BillingPlanRepositorySuite) TestListActiveTenants() {
	s.mock.ExpectQuery(q("SELECT DISTINCT tenant_id FROM billing_plans")).
		WithArgs("active", "published").
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id"}).AddRow("tenant_a").AddRow("tenant_b"))

	tenants, err := s.repo.ListActiveTenants(context.Background())
	s.Require().NoError(err)
	s.Equal([]string{"tenant_a", "tenant_b"}, tenants)
}
