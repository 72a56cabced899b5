package invoice

import (
	"strings"
	"time"

	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/shopspring/decimal"
)

// invoiceTransition runs when an allowed transition is taken. It must check
// its preconditions before mutating anything.
type invoiceTransition func(inv *Invoice, now time.Time) error

var transitions = map[types.InvoiceStatus]map[types.InvoiceStatus]invoiceTransition{
	types.InvoiceStatusDraft: {
		types.InvoiceStatusIssued:   issue,
		types.InvoiceStatusCanceled: cancel,
	},
	types.InvoiceStatusIssued: {
		types.InvoiceStatusSent:          send,
		types.InvoiceStatusPartiallyPaid: nil,
		types.InvoiceStatusPaid:          pay,
		types.InvoiceStatusCanceled:      cancel,
	},
	types.InvoiceStatusSent: {
		types.InvoiceStatusPartiallyPaid: nil,
		types.InvoiceStatusPaid:          pay,
		types.InvoiceStatusCanceled:      cancel,
	},
	types.InvoiceStatusPartiallyPaid: {
		types.InvoiceStatusPaid:     pay,
		types.InvoiceStatusCanceled: cancel,
	},
	types.InvoiceStatusPaid:     {},
	types.InvoiceStatusCanceled: {},
}

// CanTransition reports whether from -> to is in the transition table
func CanTransition(from, to types.InvoiceStatus) bool {
	_, ok := transitions[from][to]
	return ok
}

// TransitionTo moves the invoice to status to, running the side effect of
// the table entry. An unknown target is rejected before anything changes and
// a same-state request returns false with no error.
func (inv *Invoice) TransitionTo(to types.InvoiceStatus, now time.Time) (bool, error) {
	if err := to.Validate(); err != nil {
		return false, err
	}
	if inv.InvoiceStatus == to {
		return false, nil
	}

	effect, ok := transitions[inv.InvoiceStatus][to]
	if !ok {
		return false, ierr.NewError("invoice status transition not allowed").
			WithHintf("Cannot move invoice from %s to %s", inv.InvoiceStatus, to).
			WithReportableDetails(map[string]any{
				"from": inv.InvoiceStatus,
				"to":   to,
			}).
			Mark(ierr.ErrInvalidState)
	}
	if effect != nil {
		if err := effect(inv, now); err != nil {
			return false, err
		}
	}
	inv.InvoiceStatus = to
	return true, nil
}

func issue(inv *Invoice, now time.Time) error {
	missing := []string{}
	if strings.TrimSpace(inv.Seller.Name) == "" {
		missing = append(missing, "seller.name")
	}
	if strings.TrimSpace(inv.Buyer.Name) == "" {
		missing = append(missing, "buyer.name")
	}
	if len(missing) > 0 {
		return ierr.NewError("party details missing").
			WithHint("Seller and buyer names are required to issue an invoice").
			WithReportableDetails(map[string]any{
				"missing": missing,
			}).
			Mark(ierr.ErrValidation)
	}

	issuedAt := now
	inv.IssuedAt = &issuedAt
	if inv.IssueDate == nil {
		issueDate := now
		inv.IssueDate = &issueDate
	}
	return nil
}

func send(inv *Invoice, now time.Time) error {
	if inv.SentAt == nil {
		sentAt := now
		inv.SentAt = &sentAt
	}
	return nil
}

func pay(inv *Invoice, now time.Time) error {
	if inv.PaidAt == nil {
		paidAt := now
		inv.PaidAt = &paidAt
	}
	return nil
}

func cancel(inv *Invoice, now time.Time) error {
	canceledAt := now
	inv.CanceledAt = &canceledAt
	return nil
}

// ApplyPayment adds amount to the amount paid, recomputes the totals and
// moves the invoice to partially_paid or paid. Credit notes do not take
// payments and a payment may not exceed the open balance.
func (inv *Invoice) ApplyPayment(amount decimal.Decimal, now time.Time) error {
	if inv.IsCreditNote() {
		return ierr.NewError("credit notes do not take payments").
			WithHint("Payments can only be recorded against invoices").
			Mark(ierr.ErrInvalidOperation)
	}
	switch inv.InvoiceStatus {
	case types.InvoiceStatusIssued, types.InvoiceStatusSent, types.InvoiceStatusPartiallyPaid:
	default:
		return ierr.NewError("invoice is not payable").
			WithHintf("Payments cannot be recorded on a %s invoice", inv.InvoiceStatus).
			WithReportableDetails(map[string]any{
				"status": inv.InvoiceStatus,
			}).
			Mark(ierr.ErrInvalidState)
	}
	if !amount.IsPositive() {
		return ierr.NewError("payment amount must be positive").
			WithHint("Payment amount must be greater than zero").
			Mark(ierr.ErrValidation)
	}
	if amount.GreaterThan(inv.Totals.Balance) {
		return ierr.NewError("payment exceeds balance").
			WithHint("Payment amount exceeds the open balance").
			WithReportableDetails(map[string]any{
				"amount":  amount.String(),
				"balance": inv.Totals.Balance.String(),
			}).
			Mark(ierr.ErrValidation)
	}

	inv.Totals.AmountPaid = inv.Totals.AmountPaid.Add(amount)
	inv.Recalculate()

	target := types.InvoiceStatusPartiallyPaid
	if inv.Totals.Balance.IsZero() {
		target = types.InvoiceStatusPaid
	}
	_, err := inv.TransitionTo(target, now)
	return err
}
