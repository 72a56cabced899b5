package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/flexprice/billing-engine/internal/logger"
	"github.com/jmoiron/sqlx"
)

// TracedQuerier logs every statement with its duration at debug level and
// failures at error level
type TracedQuerier struct {
	Querier
	logger *logger.Logger
	txID   string
}

func NewTracedQuerier(q Querier, logger *logger.Logger, txID string) *TracedQuerier {
	return &TracedQuerier{Querier: q, logger: logger, txID: txID}
}

func (tq *TracedQuerier) done(query string, start time.Time, err error) {
	fields := []interface{}{
		"duration_ms", time.Since(start).Milliseconds(),
		"query", query,
	}
	if tq.txID != "" {
		fields = append(fields, "tx_id", tq.txID)
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		fields = append(fields, "error", err.Error())
		tq.logger.Errorw("database query failed", fields...)
		return
	}
	tq.logger.Debugw("database query completed", fields...)
}

func (tq *TracedQuerier) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	start := time.Now()
	res, err := tq.Querier.ExecContext(ctx, query, args...)
	tq.done(query, start, err)
	return res, err
}

func (tq *TracedQuerier) NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error) {
	start := time.Now()
	res, err := tq.Querier.NamedExecContext(ctx, query, arg)
	tq.done(query, start, err)
	return res, err
}

func (tq *TracedQuerier) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	start := time.Now()
	err := tq.Querier.GetContext(ctx, dest, query, args...)
	tq.done(query, start, err)
	return err
}

func (tq *TracedQuerier) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	start := time.Now()
	err := tq.Querier.SelectContext(ctx, dest, query, args...)
	tq.done(query, start, err)
	return err
}

func (tq *TracedQuerier) QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row {
	start := time.Now()
	row := tq.Querier.QueryRowxContext(ctx, query, args...)
	tq.done(query, start, row.Err())
	return row
}
