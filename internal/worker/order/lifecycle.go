package order

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Vesta-Code/vesta/internal/config"
	"github.com/Vesta-Code/vesta/internal/gateway/notify"
	"github.com/Vesta-Code/vesta/internal/messaging"
	"github.com/Vesta-Code/vesta/internal/service/escrow"
	"github.com/Vesta-Code/vesta/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Vesta-Code/vesta/worker/order")

// Module registers order lifecycle worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewLifecycleHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewLifecycleHandler consumes order lifecycle events and fans out
// notifications to the affected parties.
func NewLifecycleHandler(logger *zap.Logger, dispatcher notify.Dispatcher, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var event escrow.OrderEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode order event", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}

		span.SetAttributes(
			attribute.String("event.kind", event.Kind),
			attribute.Int64("order.id", event.OrderID),
		)

		logger.Info("order event processed",
			zap.String("kind", event.Kind),
			zap.Int64("order_id", event.OrderID),
			zap.String("reference", event.Reference),
			zap.String("status", string(event.Status)),
		)

		for _, n := range notifications(event) {
			if err := dispatcher.Send(ctx, n.recipient, n.message); err != nil {
				// Notification delivery is best-effort; the event itself
				// is already committed.
				logger.Warn("notification dispatch failed",
					zap.String("recipient", n.recipient),
					zap.Error(err),
				)
				span.RecordError(err)
			}
		}

		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}

type notification struct {
	recipient string
	message   string
}

func notifications(event escrow.OrderEvent) []notification {
	buyer := fmt.Sprintf("party:%d", event.BuyerID)
	seller := fmt.Sprintf("party:%d", event.SellerID)

	switch event.Kind {
	case escrow.EventOrderPaid:
		return []notification{
			{seller, fmt.Sprintf("Order %s was paid; funds are held in escrow.", event.Reference)},
		}
	case escrow.EventOrderCompleted:
		return []notification{
			{buyer, fmt.Sprintf("Order %s is complete. Thanks for your purchase.", event.Reference)},
			{seller, fmt.Sprintf("Order %s is complete; escrow has been released.", event.Reference)},
		}
	case escrow.EventOrderCancelled:
		return []notification{
			{buyer, fmt.Sprintf("Order %s was cancelled.", event.Reference)},
			{seller, fmt.Sprintf("Order %s was cancelled.", event.Reference)},
		}
	default:
		return nil
	}
}
