package billingplan

import (
	"testing"
	"time"

	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountAt(t *testing.T) {
	plan := activeMonthlyPlan(date(2025, time.January, 1), 1)
	plan.Revisions = []Revision{
		{Amount: decimal.NewFromInt(110), ValidFrom: date(2025, time.March, 1)},
		{Amount: decimal.NewFromInt(105), ValidFrom: date(2025, time.February, 1)},
		{Amount: decimal.NewFromInt(130), ValidFrom: date(2025, time.March, 1)},
	}

	tests := []struct {
		at   time.Time
		want int64
	}{
		{date(2025, time.January, 15), 100},
		{date(2025, time.February, 1), 105},
		{date(2025, time.February, 28), 105},
		// two revisions share a ValidFrom; the later entry wins
		{date(2025, time.March, 1), 130},
		{date(2026, time.January, 1), 130},
	}
	for _, tt := range tests {
		t.Run(tt.at.Format(time.DateOnly), func(t *testing.T) {
			assert.True(t, plan.AmountAt(tt.at).Equal(decimal.NewFromInt(tt.want)), "got %s", plan.AmountAt(tt.at))
		})
	}
}

func TestAddRevision(t *testing.T) {
	plan := activeMonthlyPlan(date(2025, time.January, 1), 1)

	assert.True(t, ierr.IsValidation(plan.AddRevision(Revision{Amount: decimal.NewFromInt(5)})))
	assert.True(t, ierr.IsValidation(plan.AddRevision(Revision{Amount: decimal.NewFromInt(-5), ValidFrom: date(2025, time.May, 1)})))
	require.NoError(t, plan.AddRevision(Revision{Amount: decimal.NewFromInt(5), ValidFrom: date(2025, time.May, 1)}))
	assert.Len(t, plan.Revisions, 1)

	plan.PlanStatus = types.PlanStatusEnded
	assert.True(t, ierr.IsInvalidOperation(plan.AddRevision(Revision{Amount: decimal.NewFromInt(5), ValidFrom: date(2025, time.June, 1)})))
}

func TestScheduleValidate(t *testing.T) {
	valid := func() Schedule {
		return activeMonthlyPlan(date(2025, time.January, 1), 1).Schedule
	}

	tests := []struct {
		name   string
		mutate func(s *Schedule)
	}{
		{"negative amount", func(s *Schedule) { s.Amount = decimal.NewFromInt(-1) }},
		{"bad currency", func(s *Schedule) { s.Currency = "EURO" }},
		{"bad period", func(s *Schedule) { s.Period = "daily" }},
		{"rule not valid for period", func(s *Schedule) { s.Period = types.BillingPeriodWeekly }},
		{"missing start", func(s *Schedule) { s.StartDate = time.Time{} }},
		{"end before start", func(s *Schedule) { s.EndDate = lo.ToPtr(date(2024, time.December, 1)) }},
		{"negative grace", func(s *Schedule) { s.GraceDays = -2 }},
		{"unknown timezone", func(s *Schedule) { s.Timezone = "Nowhere/Atlantis" }},
	}

	s := valid()
	require.NoError(t, s.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(&s)
			assert.True(t, ierr.IsValidation(s.Validate()))
		})
	}
}

func TestDueWithGrace(t *testing.T) {
	plan := activeMonthlyPlan(date(2025, time.January, 1), 1)
	plan.Schedule.GraceDays = 10
	due := time.Date(2025, time.February, 25, 9, 0, 0, 0, time.UTC)
	assert.True(t, plan.DueWithGrace(due).Equal(time.Date(2025, time.March, 7, 9, 0, 0, 0, time.UTC)))
}
