package service

import (
	"strings"
	"testing"

	"github.com/flexprice/billing-engine/internal/api/dto"
	"github.com/flexprice/billing-engine/internal/domain/invoice"
	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/flexprice/billing-engine/internal/testutil"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type InvoiceServiceSuite struct {
	testutil.BaseServiceTestSuite
	service InvoiceService
}

func TestInvoiceService(t *testing.T) {
	suite.Run(t, new(InvoiceServiceSuite))
}

func (s *InvoiceServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewInvoiceService(newTestParams(&s.BaseServiceTestSuite))
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// scenarioRequest is two rows of 2 x 50 at 19% tax with a 10% invoice discount
func scenarioRequest() dto.CreateInvoiceRequest {
	row := dto.LineItemRequest{
		Kind:      "manual",
		Quantity:  dec(2),
		UnitPrice: dec(50),
		TaxRate:   lo.ToPtr(dec(19)),
	}
	return dto.CreateInvoiceRequest{
		Currency: "EUR",
		Seller:   invoice.PartySnapshot{Name: "Facility GmbH"},
		Buyer:    invoice.PartySnapshot{Name: "ACME AG"},
		Items:    []dto.LineItemRequest{row, row},
		InvoiceDiscount: &types.Discount{
			Type:  types.DiscountTypeRate,
			Value: dec(10),
		},
	}
}

func (s *InvoiceServiceSuite) createInvoice(req dto.CreateInvoiceRequest) *dto.InvoiceResponse {
	resp, err := s.service.CreateInvoice(s.GetContext(), req)
	s.Require().NoError(err)
	return resp
}

func (s *InvoiceServiceSuite) issue(id string) {
	_, err := s.service.UpdateInvoiceStatus(s.GetContext(), id, dto.UpdateInvoiceStatusRequest{Status: types.InvoiceStatusIssued})
	s.Require().NoError(err)
}

func (s *InvoiceServiceSuite) TestCreateInvoice_ComputesTotals() {
	resp := s.createInvoice(scenarioRequest())

	s.Equal(types.InvoiceStatusDraft, resp.InvoiceStatus)
	s.True(strings.HasPrefix(resp.Code, s.GetConfig().Billing.InvoiceCodePrefix), "code %s", resp.Code)

	s.Require().Len(resp.Items, 2)
	s.True(resp.Items[0].RowSubtotal.Equal(dec(100)))
	s.True(resp.Items[0].RowTax.Equal(dec(19)))
	s.True(resp.Items[0].RowTotal.Equal(dec(119)))

	s.True(resp.Totals.ItemsSubtotal.Equal(dec(200)))
	s.True(resp.Totals.InvoiceDiscountTotal.Equal(dec(20)))
	s.True(resp.Totals.TaxTotal.Equal(dec(38)))
	s.True(resp.Totals.GrandTotal.Equal(dec(218)), "grand total %s", resp.Totals.GrandTotal)
	s.True(resp.Totals.Balance.Equal(dec(218)))

	s.Equal([]string{types.WebhookEventInvoiceCreated}, s.GetPublishedEvents())
}

func (s *InvoiceServiceSuite) TestCreateInvoice_CreditNoteNegated() {
	req := scenarioRequest()
	req.InvoiceType = types.InvoiceTypeCreditNote
	resp := s.createInvoice(req)

	s.True(strings.HasPrefix(resp.Code, s.GetConfig().Billing.CreditNoteCodePrefix))
	s.True(resp.Totals.GrandTotal.Equal(dec(-218)))
	s.True(resp.Totals.Balance.Equal(dec(-218)))
}

func (s *InvoiceServiceSuite) TestCreateInvoice_Validation() {
	testCases := []struct {
		name   string
		mutate func(r *dto.CreateInvoiceRequest)
	}{
		{name: "negative_quantity", mutate: func(r *dto.CreateInvoiceRequest) { r.Items[0].Quantity = dec(-1) }},
		{name: "tax_rate_above_100", mutate: func(r *dto.CreateInvoiceRequest) { r.Items[0].TaxRate = lo.ToPtr(dec(120)) }},
		{name: "bad_currency", mutate: func(r *dto.CreateInvoiceRequest) { r.Currency = "EURO" }},
		{name: "unknown_type", mutate: func(r *dto.CreateInvoiceRequest) { r.InvoiceType = "receipt" }},
		{
			name: "discount_rate_above_100",
			mutate: func(r *dto.CreateInvoiceRequest) {
				r.InvoiceDiscount = &types.Discount{Type: types.DiscountTypeRate, Value: dec(150)}
			},
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			req := scenarioRequest()
			tc.mutate(&req)
			resp, err := s.service.CreateInvoice(s.GetContext(), req)
			s.Error(err)
			s.Nil(resp)
			s.True(ierr.IsValidation(err), "unexpected error: %v", err)
		})
	}
}

func (s *InvoiceServiceSuite) TestCreateInvoice_DuplicateCode() {
	req := scenarioRequest()
	req.Code = "INV-0001"
	s.createInvoice(req)

	_, err := s.service.CreateInvoice(s.GetContext(), req)
	s.Error(err)
	s.True(ierr.IsAlreadyExists(err))
}

func (s *InvoiceServiceSuite) TestUpdateInvoice_RecomputesTotals() {
	inv := s.createInvoice(scenarioRequest())

	resp, err := s.service.UpdateInvoice(s.GetContext(), inv.ID, dto.UpdateInvoiceRequest{
		RemoveInvoiceDiscount: true,
		Rounding:              lo.ToPtr(decimal.RequireFromString("-0.5")),
	})
	s.Require().NoError(err)
	s.Nil(resp.InvoiceDiscount)
	s.True(resp.Totals.GrandTotal.Equal(decimal.RequireFromString("237.5")), "grand total %s", resp.Totals.GrandTotal)

	resp, err = s.service.UpdateInvoice(s.GetContext(), inv.ID, dto.UpdateInvoiceRequest{
		Items: []dto.LineItemRequest{{Kind: "manual", Quantity: dec(1), UnitPrice: dec(10)}},
	})
	s.Require().NoError(err)
	s.Len(resp.Items, 1)
	s.True(resp.Totals.GrandTotal.Equal(decimal.RequireFromString("9.5")))

	stored, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.Require().NoError(err)
	s.True(stored.Totals.GrandTotal.Equal(resp.Totals.GrandTotal))
}

func (s *InvoiceServiceSuite) TestUpdateInvoice_OnlyDrafts() {
	inv := s.createInvoice(scenarioRequest())
	s.issue(inv.ID)

	_, err := s.service.UpdateInvoice(s.GetContext(), inv.ID, dto.UpdateInvoiceRequest{Rounding: lo.ToPtr(dec(1))})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *InvoiceServiceSuite) TestUpdateInvoiceStatus() {
	s.Run("issue_stamps_dates", func() {
		inv := s.createInvoice(scenarioRequest())
		resp, err := s.service.UpdateInvoiceStatus(s.GetContext(), inv.ID, dto.UpdateInvoiceStatusRequest{Status: types.InvoiceStatusIssued})
		s.Require().NoError(err)
		s.Require().NotNil(resp.IssuedAt)
		s.True(resp.IssuedAt.Equal(fixedNow))
		s.NotNil(resp.IssueDate)
	})

	s.Run("issue_requires_parties", func() {
		req := scenarioRequest()
		req.Buyer = invoice.PartySnapshot{}
		inv := s.createInvoice(req)

		_, err := s.service.UpdateInvoiceStatus(s.GetContext(), inv.ID, dto.UpdateInvoiceStatusRequest{Status: types.InvoiceStatusIssued})
		s.Error(err)
		s.True(ierr.IsValidation(err))

		stored, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
		s.Require().NoError(err)
		s.Equal(types.InvoiceStatusDraft, stored.InvoiceStatus)
	})

	s.Run("send_stamps_sent_at", func() {
		inv := s.createInvoice(scenarioRequest())
		s.issue(inv.ID)
		resp, err := s.service.UpdateInvoiceStatus(s.GetContext(), inv.ID, dto.UpdateInvoiceStatusRequest{Status: types.InvoiceStatusSent})
		s.Require().NoError(err)
		s.NotNil(resp.SentAt)
	})

	s.Run("paid_needs_a_payment", func() {
		inv := s.createInvoice(scenarioRequest())
		s.issue(inv.ID)
		_, err := s.service.UpdateInvoiceStatus(s.GetContext(), inv.ID, dto.UpdateInvoiceStatusRequest{Status: types.InvoiceStatusPaid})
		s.Error(err)
		s.True(ierr.IsInvalidOperation(err))
	})

	s.Run("zero_invoice_can_be_marked_paid", func() {
		req := scenarioRequest()
		req.Items = []dto.LineItemRequest{{Kind: "manual", Quantity: dec(1), UnitPrice: dec(0)}}
		inv := s.createInvoice(req)
		s.issue(inv.ID)
		resp, err := s.service.UpdateInvoiceStatus(s.GetContext(), inv.ID, dto.UpdateInvoiceStatusRequest{Status: types.InvoiceStatusPaid})
		s.Require().NoError(err)
		s.NotNil(resp.PaidAt)
	})

	s.Run("canceled_is_terminal", func() {
		inv := s.createInvoice(scenarioRequest())
		_, err := s.service.UpdateInvoiceStatus(s.GetContext(), inv.ID, dto.UpdateInvoiceStatusRequest{Status: types.InvoiceStatusCanceled})
		s.Require().NoError(err)

		_, err = s.service.UpdateInvoiceStatus(s.GetContext(), inv.ID, dto.UpdateInvoiceStatusRequest{Status: types.InvoiceStatusIssued})
		s.Error(err)
		s.True(ierr.IsInvalidState(err))
	})

	s.Run("unknown_status", func() {
		inv := s.createInvoice(scenarioRequest())
		_, err := s.service.UpdateInvoiceStatus(s.GetContext(), inv.ID, dto.UpdateInvoiceStatusRequest{Status: "void"})
		s.Error(err)
		s.True(ierr.IsValidation(err))
	})
}

func (s *InvoiceServiceSuite) TestRecordPayment() {
	inv := s.createInvoice(scenarioRequest())
	s.issue(inv.ID)
	s.GetPubSub().ClearMessages()

	partial, err := s.service.RecordPayment(s.GetContext(), inv.ID, dto.RecordPaymentRequest{Amount: dec(100)})
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPartiallyPaid, partial.InvoiceStatus)
	s.True(partial.Totals.AmountPaid.Equal(dec(100)))
	s.True(partial.Totals.Balance.Equal(dec(118)))

	s.Run("overpayment_rejected", func() {
		_, err := s.service.RecordPayment(s.GetContext(), inv.ID, dto.RecordPaymentRequest{Amount: dec(200)})
		s.Error(err)
		s.True(ierr.IsValidation(err))
	})

	paid, err := s.service.RecordPayment(s.GetContext(), inv.ID, dto.RecordPaymentRequest{Amount: dec(118)})
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPaid, paid.InvoiceStatus)
	s.True(paid.Totals.Balance.IsZero())
	s.Require().NotNil(paid.PaidAt)
	s.True(paid.PaidAt.Equal(fixedNow))

	s.Equal([]string{
		types.WebhookEventInvoicePaymentRecorded,
		types.WebhookEventInvoiceStatusUpdated,
		types.WebhookEventInvoicePaymentRecorded,
		types.WebhookEventInvoiceStatusUpdated,
	}, s.GetPublishedEvents())

	s.Run("paid_invoice_takes_no_payment", func() {
		_, err := s.service.RecordPayment(s.GetContext(), inv.ID, dto.RecordPaymentRequest{Amount: dec(1)})
		s.Error(err)
		s.True(ierr.IsInvalidState(err))
	})
}

func (s *InvoiceServiceSuite) TestRecordPayment_Rejections() {
	draft := s.createInvoice(scenarioRequest())
	_, err := s.service.RecordPayment(s.GetContext(), draft.ID, dto.RecordPaymentRequest{Amount: dec(10)})
	s.Error(err)
	s.True(ierr.IsInvalidState(err))

	_, err = s.service.RecordPayment(s.GetContext(), draft.ID, dto.RecordPaymentRequest{Amount: dec(-10)})
	s.Error(err)
	s.True(ierr.IsValidation(err))

	req := scenarioRequest()
	req.InvoiceType = types.InvoiceTypeCreditNote
	cn := s.createInvoice(req)
	s.issue(cn.ID)
	_, err = s.service.RecordPayment(s.GetContext(), cn.ID, dto.RecordPaymentRequest{Amount: dec(10)})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *InvoiceServiceSuite) TestDeleteInvoice() {
	draft := s.createInvoice(scenarioRequest())
	s.NoError(s.service.DeleteInvoice(s.GetContext(), draft.ID))
	_, err := s.service.GetInvoice(s.GetContext(), draft.ID)
	s.True(ierr.IsNotFound(err))

	issued := s.createInvoice(scenarioRequest())
	s.issue(issued.ID)
	err = s.service.DeleteInvoice(s.GetContext(), issued.ID)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))

	req := scenarioRequest()
	req.Links.BillingOccurrenceIDs = []string{"bocc_1"}
	bridged := s.createInvoice(req)
	err = s.service.DeleteInvoice(s.GetContext(), bridged.ID)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *InvoiceServiceSuite) TestCreateCreditNote() {
	req := scenarioRequest()
	req.Links = invoice.Links{CustomerID: "cust_1", BillingPlanID: "bplan_1", BillingOccurrenceIDs: []string{"bocc_1"}}
	inv := s.createInvoice(req)

	s.Run("draft_not_creditable", func() {
		_, err := s.service.CreateCreditNote(s.GetContext(), inv.ID)
		s.Error(err)
		s.True(ierr.IsInvalidOperation(err))
	})

	s.issue(inv.ID)
	cn, err := s.service.CreateCreditNote(s.GetContext(), inv.ID)
	s.Require().NoError(err)

	s.Equal(types.InvoiceTypeCreditNote, cn.InvoiceType)
	s.Equal(types.InvoiceStatusDraft, cn.InvoiceStatus)
	s.Equal(inv.ID, cn.Links.CreditedInvoiceID)
	s.Equal("cust_1", cn.Links.CustomerID)
	s.Empty(cn.Links.BillingOccurrenceIDs)
	s.True(cn.Totals.GrandTotal.Equal(dec(-218)))
	s.Require().Len(cn.Items, 2)
	s.NotEqual(inv.Items[0].ID, cn.Items[0].ID)

	s.Run("credit_note_not_creditable", func() {
		s.issue(cn.ID)
		_, err := s.service.CreateCreditNote(s.GetContext(), cn.ID)
		s.Error(err)
		s.True(ierr.IsInvalidOperation(err))
	})
}

func (s *InvoiceServiceSuite) TestListInvoices() {
	s.createInvoice(scenarioRequest())
	s.createInvoice(scenarioRequest())
	req := scenarioRequest()
	req.InvoiceType = types.InvoiceTypeCreditNote
	s.createInvoice(req)

	all, err := s.service.ListInvoices(s.GetContext(), nil)
	s.Require().NoError(err)
	s.Equal(3, all.Pagination.Total)

	filter := types.NewInvoiceFilter()
	filter.InvoiceType = types.InvoiceTypeCreditNote
	notes, err := s.service.ListInvoices(s.GetContext(), filter)
	s.Require().NoError(err)
	s.Len(notes.Items, 1)

	other, err := s.service.ListInvoices(s.GetContextForTenant("tenant_other"), nil)
	s.Require().NoError(err)
	s.Empty(other.Items)
}
