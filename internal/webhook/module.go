package webhook

import (
	"context"

	"github.com/flexprice/billing-engine/internal/config"
	"github.com/flexprice/billing-engine/internal/httpclient"
	"github.com/flexprice/billing-engine/internal/logger"
	"github.com/flexprice/billing-engine/internal/pubsub"
	"github.com/flexprice/billing-engine/internal/pubsub/memory"
	pubsubRouter "github.com/flexprice/billing-engine/internal/pubsub/router"
	"github.com/flexprice/billing-engine/internal/webhook/handler"
	"github.com/flexprice/billing-engine/internal/webhook/publisher"
	"go.uber.org/fx"
)

// Module provides the event pubsub, the publisher services write to and
// the delivery side that consumes it
var Module = fx.Options(
	fx.Provide(
		providePubSub,
		provideHTTPClient,
		publisher.NewPublisher,
		handler.NewHandler,
		pubsubRouter.NewRouter,
		NewWebhookService,
	),
	fx.Invoke(registerHooks),
)

func providePubSub(logger *logger.Logger) pubsub.PubSub {
	return memory.NewPubSub(logger)
}

func provideHTTPClient(cfg *config.Configuration) httpclient.Client {
	return httpclient.NewClient(httpclient.ClientConfig{Timeout: cfg.Webhook.RequestTimeout})
}

func registerHooks(lc fx.Lifecycle, svc *WebhookService) {
	lc.Append(fx.Hook{
		OnStart: svc.Start,
		OnStop: func(ctx context.Context) error {
			return svc.Stop()
		},
	})
}
