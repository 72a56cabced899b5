package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/billing-engine/internal/config"
	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/flexprice/billing-engine/internal/httpclient"
	"github.com/flexprice/billing-engine/internal/logger"
	"github.com/flexprice/billing-engine/internal/pubsub"
	pubsubRouter "github.com/flexprice/billing-engine/internal/pubsub/router"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/samber/lo"
	"golang.org/x/time/rate"
)

const (
	HeaderWebhookID    = "X-Webhook-ID"
	HeaderWebhookEvent = "X-Webhook-Event"
)

// Handler delivers billing events to tenant endpoints
type Handler interface {
	RegisterHandler(router *pubsubRouter.Router)
}

type handler struct {
	pubSub pubsub.PubSub
	config *config.Webhook
	client httpclient.Client
	logger *logger.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewHandler(
	pubSub pubsub.PubSub,
	cfg *config.Configuration,
	client httpclient.Client,
	logger *logger.Logger,
) Handler {
	return &handler{
		pubSub: pubSub,
		config: &cfg.Webhook,
		client:   client,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (h *handler) RegisterHandler(router *pubsubRouter.Router) {
	router.AddNoPublishHandler(
		"webhook_handler",
		h.config.Topic,
		h.pubSub,
		h.processMessage,
	)
}

func (h *handler) processMessage(msg *message.Message) error {
	var event types.WebhookEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		h.logger.Errorw("failed to unmarshal webhook event",
			"error", err,
			"message_uuid", msg.UUID,
		)
		// a malformed message never gets better
		return nil
	}

	ctx := types.SetTenantID(msg.Context(), event.TenantID)
	ctx = types.SetUserID(ctx, event.UserID)

	tenantCfg, ok := h.config.Tenants[event.TenantID]
	if !ok || !tenantCfg.Enabled {
		h.logger.Debugw("no webhook endpoint for tenant",
			"tenant_id", event.TenantID,
			"event", event.EventName,
		)
		return nil
	}
	if lo.Contains(tenantCfg.ExcludedEvents, event.EventName) {
		h.logger.Debugw("event excluded for tenant",
			"tenant_id", event.TenantID,
			"event", event.EventName,
		)
		return nil
	}

	if limiter := h.limiter(event.TenantID, tenantCfg); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return ierr.WithError(err).
				WithHintf("Webhook delivery to tenant %s was throttled", event.TenantID).
				Mark(ierr.ErrSystem)
		}
	}

	return h.deliver(ctx, tenantCfg, &event, msg.Payload)
}

// limiter returns the tenant's delivery limiter, nil when unlimited
func (h *handler) limiter(tenantID string, tenantCfg config.TenantWebhookConfig) *rate.Limiter {
	if tenantCfg.RateLimit <= 0 {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if l, ok := h.limiters[tenantID]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(tenantCfg.RateLimit), max(tenantCfg.RateBurst, 1))
	h.limiters[tenantID] = l
	return l
}

func (h *handler) deliver(ctx context.Context, tenantCfg config.TenantWebhookConfig, event *types.WebhookEvent, body []byte) error {
	headers := lo.Assign(tenantCfg.Headers, map[string]string{
		HeaderWebhookID:    event.ID,
		HeaderWebhookEvent: event.EventName,
	})

	resp, err := h.client.Send(ctx, &httpclient.Request{
		Method:  http.MethodPost,
		URL:     tenantCfg.Endpoint,
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		h.logger.Errorw("failed to send webhook",
			"error", err,
			"event_id", event.ID,
			"tenant_id", event.TenantID,
			"event", event.EventName,
		)
		return err
	}

	h.logger.Infow("webhook sent successfully",
		"event_id", event.ID,
		"tenant_id", event.TenantID,
		"event", event.EventName,
		"status_code", resp.StatusCode,
	)
	return nil
}
