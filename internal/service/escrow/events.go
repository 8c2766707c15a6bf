package escrow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Vesta-Code/vesta/internal/entity"
)

// Event kinds published to the order lifecycle topic.
const (
	EventOrderPaid      = "order.paid"
	EventOrderCompleted = "order.completed"
	EventOrderCancelled = "order.cancelled"
)

// OrderEvent is emitted after a lifecycle transition commits.
type OrderEvent struct {
	Kind       string              `json:"kind"`
	OrderID    int64               `json:"order_id"`
	Reference  string              `json:"reference"`
	BuyerID    int64               `json:"buyer_id"`
	SellerID   int64               `json:"seller_id"`
	CourierID  *int64              `json:"courier_id,omitempty"`
	Amount     int64               `json:"amount"`
	Status     entity.OrderStatus  `json:"status"`
	Escrow     entity.EscrowStatus `json:"escrow_status"`
	OccurredAt time.Time           `json:"occurred_at"`
}

func (s *Coordinator) publish(ctx context.Context, kind string, order *entity.Order) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	event := OrderEvent{
		Kind:       kind,
		OrderID:    order.ID,
		Reference:  order.Reference,
		BuyerID:    order.BuyerID,
		SellerID:   order.SellerID,
		CourierID:  order.CourierID,
		Amount:     order.Amount,
		Status:     order.Status,
		Escrow:     order.Escrow,
		OccurredAt: s.clock.Now(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order event", zap.String("kind", kind), zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, []byte(fmt.Sprintf("order-%d", order.ID)), payload); err != nil {
		s.logger.Error("publish order event", zap.String("kind", kind), zap.Error(err))
	}
}
