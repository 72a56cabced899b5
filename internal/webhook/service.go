package webhook

import (
	"context"
	"fmt"

	"github.com/flexprice/billing-engine/internal/config"
	"github.com/flexprice/billing-engine/internal/logger"
	pubsubRouter "github.com/flexprice/billing-engine/internal/pubsub/router"
	"github.com/flexprice/billing-engine/internal/webhook/handler"
	"github.com/flexprice/billing-engine/internal/webhook/publisher"
)

// WebhookService runs delivery of published billing events
type WebhookService struct {
	config    *config.Configuration
	publisher publisher.WebhookPublisher
	handler   handler.Handler
	router    *pubsubRouter.Router
	logger    *logger.Logger
}

func NewWebhookService(
	cfg *config.Configuration,
	publisher publisher.WebhookPublisher,
	h handler.Handler,
	router *pubsubRouter.Router,
	l *logger.Logger,
) *WebhookService {
	return &WebhookService{
		config:    cfg,
		publisher: publisher,
		handler:   h,
		router:    router,
		logger:    l,
	}
}

// Start subscribes the delivery handler and returns once it is consuming
func (s *WebhookService) Start(ctx context.Context) error {
	if !s.config.Webhook.Enabled {
		s.logger.Info("webhook service disabled")
		return nil
	}

	s.handler.RegisterHandler(s.router)

	errCh := make(chan error, 1)
	go func() {
		// the router outlives the start hook context
		errCh <- s.router.Run(context.Background())
	}()

	select {
	case <-s.router.Running():
	case err := <-errCh:
		return fmt.Errorf("failed to start webhook router: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.Info("webhook service started successfully")
	return nil
}

func (s *WebhookService) Stop() error {
	if s.config.Webhook.Enabled {
		if err := s.router.Close(); err != nil {
			s.logger.Errorw("failed to close webhook router", "error", err)
			return fmt.Errorf("failed to close webhook router: %w", err)
		}
	}

	if err := s.publisher.Close(); err != nil {
		s.logger.Errorw("failed to close webhook publisher", "error", err)
		return fmt.Errorf("failed to close webhook publisher: %w", err)
	}

	s.logger.Info("webhook service stopped successfully")
	return nil
}
