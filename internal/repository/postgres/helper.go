package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/getsentry/sentry-go"
	"github.com/lib/pq"
)

// pqUniqueViolation is the SQLSTATE postgres reports for a unique index hit
const pqUniqueViolation = "23505"

// jsonb stores V as a jsonb column
type jsonb[T any] struct {
	V T
}

func (j jsonb[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(j.V)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (j *jsonb[T]) Scan(src interface{}) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported jsonb source %T", src)
	}
	return json.Unmarshal(b, &j.V)
}

// dbError translates driver errors into the ierr kinds services branch on.
// indexHints maps unique index names to the hint shown for a conflict.
func dbError(err error, entity, id string, indexHints map[string]string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ierr.WithError(err).
			WithHintf("%s %s was not found", entity, id).
			WithReportableDetails(map[string]any{
				"id": id,
			}).
			Mark(ierr.ErrNotFound)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		hint, ok := indexHints[pqErr.Constraint]
		if !ok {
			hint = fmt.Sprintf("%s already exists", entity)
		}
		return ierr.WithError(err).
			WithHint(hint).
			WithReportableDetails(map[string]any{
				"constraint": pqErr.Constraint,
			}).
			Mark(ierr.ErrAlreadyExists)
	}

	return ierr.WithError(err).
		WithHintf("Failed to access %s", entity).
		Mark(ierr.ErrDatabase)
}

// notFound is returned when an update or delete touched no row
func notFound(entity, id string) error {
	return ierr.NewErrorf("%s not found", entity).
		WithHintf("%s %s was not found", entity, id).
		Mark(ierr.ErrNotFound)
}

func expectOneRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return dbError(err, entity, id, nil)
	}
	if n == 0 {
		return notFound(entity, id)
	}
	return nil
}

// expectRowInState is expectOneRow for writes guarded on a lifecycle state:
// no row means the state moved since the caller read it
func expectRowInState(res sql.Result, entity, id string, state interface{}) error {
	n, err := res.RowsAffected()
	if err != nil {
		return dbError(err, entity, id, nil)
	}
	if n == 0 {
		return ierr.NewErrorf("%s is no longer %v", entity, state).
			WithHintf("%s %s is no longer %v", entity, id, state).
			WithReportableDetails(map[string]any{
				"id":       id,
				"expected": state,
			}).
			Mark(ierr.ErrInvalidState)
	}
	return nil
}

// StartRepositorySpan creates a span for a repository operation. It returns
// nil when no sentry hub travels with ctx.
func StartRepositorySpan(ctx context.Context, repository, operation string, params map[string]interface{}) *sentry.Span {
	if sentry.GetHubFromContext(ctx) == nil {
		return nil
	}

	span := sentry.StartSpan(ctx, "repository."+repository+"."+operation)
	span.Description = "repository." + repository + "." + operation
	span.Op = "db.postgres"
	span.SetData("repository", repository)
	span.SetData("operation", operation)
	for k, v := range params {
		span.SetData(k, v)
	}
	return span
}

// FinishSpan records the outcome and finishes a possibly nil span
func FinishSpan(span *sentry.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		span.SetData("error", err.Error())
	} else {
		span.Status = sentry.SpanStatusOK
	}
	span.Finish()
}
