package router

import (
	"context"
	"net"
	"testing"

	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/flexprice/billing-engine/internal/httpclient"
	"github.com/flexprice/billing-engine/internal/logger"
	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestShouldRetry(t *testing.T) {
	log := logger.NewNoopLogger()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate_limited", httpclient.NewError(429, nil), true},
		{"bad_gateway", httpclient.NewError(502, nil), true},
		{"unavailable", httpclient.NewError(503, nil), true},
		{"client_error", httpclient.NewError(400, nil), false},
		{"gone", httpclient.NewError(410, nil), false},
		{"network_timeout", ierr.WithError(timeoutErr{}).Mark(ierr.ErrHTTPClient), true},
		{"validation", ierr.NewError("bad").Mark(ierr.ErrValidation), false},
		{"not_found", ierr.NewError("missing").Mark(ierr.ErrNotFound), false},
		{"unknown", context.DeadlineExceeded, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldRetry(log, tt.err))
		})
	}
}
