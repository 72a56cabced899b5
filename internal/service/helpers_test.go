package service

import (
	"time"

	"github.com/flexprice/billing-engine/internal/testutil"
)

// fixedNow is the clock every service suite runs on
var fixedNow = time.Date(2025, time.April, 15, 10, 0, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestParams(s *testutil.BaseServiceTestSuite) ServiceParams {
	stores := s.GetStores()
	return ServiceParams{
		Logger:           s.GetLogger(),
		Config:           s.GetConfig(),
		DB:               s.GetDB(),
		BillingPlanRepo:  stores.BillingPlanRepo,
		OccurrenceRepo:   stores.OccurrenceRepo,
		InvoiceRepo:      stores.InvoiceRepo,
		WebhookPublisher: s.GetWebhookPublisher(),
		Clock:            func() time.Time { return fixedNow },
	}
}
