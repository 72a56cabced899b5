package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/flexprice/billing-engine/internal/types"
	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
)

// sortColumns limits ORDER BY to indexed columns; the value is interpolated
var sortColumns = []string{"created_at", "updated_at"}

// QueryBuilder collects WHERE conditions with named args. Every query it
// builds is scoped to the tenant in ctx and the soft-delete status of the
// filter.
type QueryBuilder struct {
	conditions []string
	suffix     string
	args       map[string]interface{}
}

func NewQueryBuilder(ctx context.Context, filter *types.QueryFilter) *QueryBuilder {
	qb := &QueryBuilder{
		conditions: []string{
			"tenant_id = :tenant_id",
			"status = :status",
		},
		args: map[string]interface{}{
			"tenant_id": types.GetTenantID(ctx),
			"status":    filter.GetStatus(),
		},
	}
	return qb
}

// Eq adds column = value, skipping empty strings
func (qb *QueryBuilder) Eq(column string, value interface{}) *QueryBuilder {
	if s, ok := value.(string); ok && s == "" {
		return qb
	}
	qb.conditions = append(qb.conditions, fmt.Sprintf("%s = :%s", column, column))
	qb.args[column] = value
	return qb
}

// In adds column IN (...) when values is non-empty. The slice is expanded by
// sqlx.In in Build.
func (qb *QueryBuilder) In(column string, values interface{}, n int) *QueryBuilder {
	if n == 0 {
		return qb
	}
	name := column + "_in"
	qb.conditions = append(qb.conditions, fmt.Sprintf("%s IN (:%s)", column, name))
	qb.args[name] = values
	return qb
}

// Where adds a raw condition that references its own named arg
func (qb *QueryBuilder) Where(condition, name string, value interface{}) *QueryBuilder {
	qb.conditions = append(qb.conditions, condition)
	qb.args[name] = value
	return qb
}

// WithTimeRange filters created_at into [start, end)
func (qb *QueryBuilder) WithTimeRange(f *types.TimeRangeFilter) *QueryBuilder {
	if f == nil {
		return qb
	}
	if f.StartTime != nil {
		qb.Where("created_at >= :start_time", "start_time", *f.StartTime)
	}
	if f.EndTime != nil {
		qb.Where("created_at < :end_time", "end_time", *f.EndTime)
	}
	return qb
}

// OrderBy sets the ORDER BY clause verbatim
func (qb *QueryBuilder) OrderBy(clause string) *QueryBuilder {
	qb.suffix = " ORDER BY " + clause
	return qb
}

// WithSort orders by the filter's sort column with id as tie breaker
func (qb *QueryBuilder) WithSort(filter *types.QueryFilter) *QueryBuilder {
	column := filter.GetSort()
	if !lo.Contains(sortColumns, column) {
		column = types.FILTER_DEFAULT_SORT
	}
	dir := "DESC"
	if filter.GetOrder() == types.OrderAsc {
		dir = "ASC"
	}
	return qb.OrderBy(fmt.Sprintf("%s %s, id ASC", column, dir))
}

// WithPagination appends LIMIT and OFFSET unless the filter is unlimited
func (qb *QueryBuilder) WithPagination(filter *types.QueryFilter) *QueryBuilder {
	if filter.IsUnlimited() {
		return qb
	}
	qb.suffix += " LIMIT :limit OFFSET :offset"
	qb.args["limit"] = filter.GetLimit()
	qb.args["offset"] = filter.GetOffset()
	return qb
}

// Build appends the WHERE clause and suffix to base and returns a
// postgres-bound query with positional args
func (qb *QueryBuilder) Build(base string) (string, []interface{}, error) {
	query := base + " WHERE " + strings.Join(qb.conditions, " AND ") + qb.suffix

	query, args, err := sqlx.Named(query, qb.args)
	if err != nil {
		return "", nil, err
	}
	query, args, err = sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return sqlx.Rebind(sqlx.DOLLAR, query), args, nil
}
