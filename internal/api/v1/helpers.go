package v1

import (
	"time"

	"github.com/flexprice/billing-engine/internal/types"
	"github.com/samber/lo"
)

// withDefaultLimit keeps list endpoints paginated when the caller sends no limit
func withDefaultLimit(f *types.QueryFilter) *types.QueryFilter {
	if f == nil {
		return types.NewDefaultQueryFilter()
	}
	if f.GetLimit() == 0 {
		f.Limit = lo.ToPtr(types.FILTER_DEFAULT_LIMIT)
	}
	return f
}

func upTo(t *time.Time) time.Time {
	if t == nil {
		return time.Now().UTC()
	}
	return t.UTC()
}
