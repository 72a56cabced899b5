package postgres

import (
	"context"
	"time"

	"github.com/flexprice/billing-engine/ent/schema"
	"github.com/flexprice/billing-engine/internal/domain/invoice"
	"github.com/flexprice/billing-engine/internal/logger"
	"github.com/flexprice/billing-engine/internal/postgres"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const invoiceColumns = `
	id, tenant_id, code, invoice_type, invoice_status, currency, fx_rate,
	customer_id, billing_plan_id, seller, buyer, items, invoice_discount, totals, links,
	notes, terms, grand_total, balance, issue_date, due_date, issued_at, sent_at,
	paid_at, canceled_at, metadata, status, created_at, updated_at, created_by, updated_by`

var invoiceIndexHints = map[string]string{
	schema.Idx_invoice_tenant_code: "An invoice with this code already exists",
}

type invoiceRow struct {
	ID              string                       `db:"id"`
	Code            string                       `db:"code"`
	InvoiceType     types.InvoiceType            `db:"invoice_type"`
	InvoiceStatus   types.InvoiceStatus          `db:"invoice_status"`
	Currency        string                       `db:"currency"`
	FXRate          *decimal.Decimal             `db:"fx_rate"`
	CustomerID      string                       `db:"customer_id"`
	BillingPlanID   string                       `db:"billing_plan_id"`
	Seller          jsonb[invoice.PartySnapshot] `db:"seller"`
	Buyer           jsonb[invoice.PartySnapshot] `db:"buyer"`
	Items           jsonb[[]*invoice.LineItem]   `db:"items"`
	InvoiceDiscount jsonb[*types.Discount]       `db:"invoice_discount"`
	Totals          jsonb[invoice.Totals]        `db:"totals"`
	Links           jsonb[invoice.Links]         `db:"links"`
	Notes           jsonb[types.LocalizedText]   `db:"notes"`
	Terms           jsonb[types.LocalizedText]   `db:"terms"`
	GrandTotal      decimal.Decimal              `db:"grand_total"`
	Balance         decimal.Decimal              `db:"balance"`
	IssueDate       *time.Time                   `db:"issue_date"`
	DueDate         *time.Time                   `db:"due_date"`
	IssuedAt        *time.Time                   `db:"issued_at"`
	SentAt          *time.Time                   `db:"sent_at"`
	PaidAt          *time.Time                   `db:"paid_at"`
	CanceledAt      *time.Time                   `db:"canceled_at"`
	Metadata        types.Metadata               `db:"metadata"`
	types.BaseModel
}

func newInvoiceRow(inv *invoice.Invoice) *invoiceRow {
	return &invoiceRow{
		ID:              inv.ID,
		Code:            inv.Code,
		InvoiceType:     inv.InvoiceType,
		InvoiceStatus:   inv.InvoiceStatus,
		Currency:        inv.Currency,
		FXRate:          inv.FXRate,
		CustomerID:      inv.Links.CustomerID,
		BillingPlanID:   inv.Links.BillingPlanID,
		Seller:          jsonb[invoice.PartySnapshot]{V: inv.Seller},
		Buyer:           jsonb[invoice.PartySnapshot]{V: inv.Buyer},
		Items:           jsonb[[]*invoice.LineItem]{V: lo.Ternary(inv.Items == nil, []*invoice.LineItem{}, inv.Items)},
		InvoiceDiscount: jsonb[*types.Discount]{V: inv.InvoiceDiscount},
		Totals:          jsonb[invoice.Totals]{V: inv.Totals},
		Links:           jsonb[invoice.Links]{V: inv.Links},
		Notes:           jsonb[types.LocalizedText]{V: inv.Notes},
		Terms:           jsonb[types.LocalizedText]{V: inv.Terms},
		GrandTotal:      inv.Totals.GrandTotal,
		Balance:         inv.Totals.Balance,
		IssueDate:       inv.IssueDate,
		DueDate:         inv.DueDate,
		IssuedAt:        inv.IssuedAt,
		SentAt:          inv.SentAt,
		PaidAt:          inv.PaidAt,
		CanceledAt:      inv.CanceledAt,
		Metadata:        inv.Metadata,
		BaseModel:       inv.BaseModel,
	}
}

func (r *invoiceRow) toDomain() *invoice.Invoice {
	return &invoice.Invoice{
		ID:              r.ID,
		Code:            r.Code,
		InvoiceType:     r.InvoiceType,
		InvoiceStatus:   r.InvoiceStatus,
		Currency:        r.Currency,
		FXRate:          r.FXRate,
		Seller:          r.Seller.V,
		Buyer:           r.Buyer.V,
		Items:           r.Items.V,
		InvoiceDiscount: r.InvoiceDiscount.V,
		Totals:          r.Totals.V,
		Links:           r.Links.V,
		Notes:           r.Notes.V,
		Terms:           r.Terms.V,
		IssueDate:       r.IssueDate,
		DueDate:         r.DueDate,
		IssuedAt:        r.IssuedAt,
		SentAt:          r.SentAt,
		PaidAt:          r.PaidAt,
		CanceledAt:      r.CanceledAt,
		Metadata:        r.Metadata,
		BaseModel:       r.BaseModel,
	}
}

type invoiceRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewInvoiceRepository(db *postgres.DB, logger *logger.Logger) invoice.Repository {
	return &invoiceRepository{db: db, logger: logger}
}

func (r *invoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	span := StartRepositorySpan(ctx, "invoice", "create", map[string]interface{}{
		"invoice_id":   inv.ID,
		"invoice_type": inv.InvoiceType,
	})

	query := `
	INSERT INTO invoices (` + invoiceColumns + `
	) VALUES (
		:id, :tenant_id, :code, :invoice_type, :invoice_status, :currency, :fx_rate,
		:customer_id, :billing_plan_id, :seller, :buyer, :items, :invoice_discount, :totals, :links,
		:notes, :terms, :grand_total, :balance, :issue_date, :due_date, :issued_at, :sent_at,
		:paid_at, :canceled_at, :metadata, :status, :created_at, :updated_at, :created_by, :updated_by
	)`

	_, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, newInvoiceRow(inv))
	err = dbError(err, "Invoice", inv.ID, invoiceIndexHints)
	FinishSpan(span, err)
	return err
}

func (r *invoiceRepository) get(ctx context.Context, column, value string) (*invoice.Invoice, error) {
	query, args, err := NewQueryBuilder(ctx, nil).
		Eq(column, value).
		Build("SELECT " + invoiceColumns + " FROM invoices")
	if err != nil {
		return nil, dbError(err, "Invoice", value, nil)
	}

	var row invoiceRow
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &row, query, args...); err != nil {
		return nil, dbError(err, "Invoice", value, nil)
	}
	return row.toDomain(), nil
}

func (r *invoiceRepository) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.get(ctx, "id", id)
}

func (r *invoiceRepository) GetByCode(ctx context.Context, code string) (*invoice.Invoice, error) {
	return r.get(ctx, "code", code)
}

func (r *invoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	span := StartRepositorySpan(ctx, "invoice", "update", map[string]interface{}{
		"invoice_id":     inv.ID,
		"invoice_status": inv.InvoiceStatus,
	})

	query := `
	UPDATE invoices SET
		invoice_status = :invoice_status,
		currency = :currency,
		fx_rate = :fx_rate,
		customer_id = :customer_id,
		billing_plan_id = :billing_plan_id,
		seller = :seller,
		buyer = :buyer,
		items = :items,
		invoice_discount = :invoice_discount,
		totals = :totals,
		links = :links,
		notes = :notes,
		terms = :terms,
		grand_total = :grand_total,
		balance = :balance,
		issue_date = :issue_date,
		due_date = :due_date,
		issued_at = :issued_at,
		sent_at = :sent_at,
		paid_at = :paid_at,
		canceled_at = :canceled_at,
		metadata = :metadata,
		updated_at = :updated_at,
		updated_by = :updated_by
	WHERE id = :id AND tenant_id = :tenant_id AND status = :status`

	res, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, newInvoiceRow(inv))
	if err == nil {
		err = expectOneRow(res, "Invoice", inv.ID)
	} else {
		err = dbError(err, "Invoice", inv.ID, nil)
	}
	FinishSpan(span, err)
	return err
}

func (r *invoiceRepository) Delete(ctx context.Context, inv *invoice.Invoice) error {
	query := `
	UPDATE invoices SET status = $1, updated_at = $2, updated_by = $3
	WHERE id = $4 AND tenant_id = $5 AND status = $6`

	res, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		types.StatusDeleted,
		time.Now().UTC(),
		types.GetUserID(ctx),
		inv.ID,
		types.GetTenantID(ctx),
		types.StatusPublished,
	)
	if err != nil {
		return dbError(err, "Invoice", inv.ID, nil)
	}
	return expectOneRow(res, "Invoice", inv.ID)
}

func (r *invoiceRepository) filterQuery(ctx context.Context, filter *types.InvoiceFilter) *QueryBuilder {
	qb := NewQueryBuilder(ctx, filter.QueryFilter).
		In("id", filter.InvoiceIDs, len(filter.InvoiceIDs)).
		Eq("customer_id", filter.CustomerID).
		Eq("billing_plan_id", filter.BillingPlanID).
		In("invoice_status", filter.InvoiceStatus, len(filter.InvoiceStatus)).
		WithTimeRange(filter.TimeRangeFilter)
	if filter.InvoiceType != "" {
		qb.Eq("invoice_type", filter.InvoiceType)
	}
	return qb
}

func (r *invoiceRepository) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	if filter == nil {
		filter = types.NewNoLimitInvoiceFilter()
	}

	span := StartRepositorySpan(ctx, "invoice", "list", nil)

	query, args, err := r.filterQuery(ctx, filter).
		WithSort(filter.QueryFilter).
		WithPagination(filter.QueryFilter).
		Build("SELECT " + invoiceColumns + " FROM invoices")
	if err != nil {
		err = dbError(err, "Invoice", "", nil)
		FinishSpan(span, err)
		return nil, err
	}

	var rows []invoiceRow
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		err = dbError(err, "Invoice", "", nil)
		FinishSpan(span, err)
		return nil, err
	}
	FinishSpan(span, nil)

	return lo.Map(rows, func(row invoiceRow, _ int) *invoice.Invoice {
		return row.toDomain()
	}), nil
}

func (r *invoiceRepository) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	if filter == nil {
		filter = types.NewNoLimitInvoiceFilter()
	}

	query, args, err := r.filterQuery(ctx, filter).Build("SELECT COUNT(*) FROM invoices")
	if err != nil {
		return 0, dbError(err, "Invoice", "", nil)
	}

	var count int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &count, query, args...); err != nil {
		return 0, dbError(err, "Invoice", "", nil)
	}
	return count, nil
}
