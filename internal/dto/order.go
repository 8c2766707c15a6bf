package dto

import (
	"time"

	"github.com/Vesta-Code/vesta/internal/entity"
)

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID          int64      `json:"id"`
	Reference   string     `json:"reference"`
	BuyerID     int64      `json:"buyer_id"`
	SellerID    int64      `json:"seller_id"`
	CourierID   *int64     `json:"courier_id,omitempty"`
	ProductID   int64      `json:"product_id"`
	Quantity    int        `json:"quantity"`
	Amount      int64      `json:"amount"`
	Fulfillment string     `json:"fulfillment"`
	Status      string     `json:"status"`
	Escrow      string     `json:"escrow_status"`
	CreatedAt   time.Time  `json:"created_at"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// FromOrder converts an order entity for transport.
func FromOrder(order *entity.Order) OrderResponse {
	return OrderResponse{
		ID:          order.ID,
		Reference:   order.Reference,
		BuyerID:     order.BuyerID,
		SellerID:    order.SellerID,
		CourierID:   order.CourierID,
		ProductID:   order.ProductID,
		Quantity:    order.Quantity,
		Amount:      order.Amount,
		Fulfillment: string(order.Fulfillment),
		Status:      string(order.Status),
		Escrow:      string(order.Escrow),
		CreatedAt:   order.CreatedAt,
		PaidAt:      order.PaidAt,
		DeliveredAt: order.DeliveredAt,
	}
}

// CheckoutRequest is the fixed input shape for order creation.
type CheckoutRequest struct {
	ProductID   int64  `json:"product_id"`
	Quantity    int    `json:"quantity"`
	Fulfillment string `json:"fulfillment"`
}

// CheckoutResponse is returned from a successful checkout.
type CheckoutResponse struct {
	OrderID         int64  `json:"order_id"`
	Reference       string `json:"reference"`
	TotalAmount     int64  `json:"total_amount"`
	ProductTitle    string `json:"product_title"`
	CampaignApplied bool   `json:"campaign_applied"`
}

// CancelResponse reports the terminal state after cancellation.
type CancelResponse struct {
	Status string `json:"status"`
	Escrow string `json:"escrow_status"`
}
