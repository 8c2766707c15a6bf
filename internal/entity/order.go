package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// OrderStatus tracks the fulfillment lifecycle of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderPreparing OrderStatus = "preparing"
	OrderReady     OrderStatus = "ready"
	OrderPickedUp  OrderStatus = "picked_up"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
	OrderFailed    OrderStatus = "failed"
)

// EscrowStatus tracks where the buyer's funds sit. Transitions are monotonic:
// PENDING -> HELD -> RELEASED or REFUNDED. RELEASED and REFUNDED are terminal.
type EscrowStatus string

const (
	EscrowPending  EscrowStatus = "pending"
	EscrowHeld     EscrowStatus = "held"
	EscrowReleased EscrowStatus = "released"
	EscrowRefunded EscrowStatus = "refunded"
)

// Fulfillment selects how an order reaches the buyer.
type Fulfillment string

const (
	FulfillmentPickup   Fulfillment = "pickup"
	FulfillmentDelivery Fulfillment = "delivery"
)

// Order represents a single escrow-backed purchase.
//
// CourierID is set if and only if a delivery order has been claimed.
// ProofToken is set once escrow is held and is superseded (not accumulated)
// on re-mint. Amount is in minor currency units; it is frozen at checkout
// and never recomputed from the campaign afterwards.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID          int64        `bun:",pk,autoincrement"`
	Reference   string       `bun:"reference"`
	BuyerID     int64        `bun:"buyer_id"`
	SellerID    int64        `bun:"seller_id"`
	CourierID   *int64       `bun:"courier_id"`
	ProductID   int64        `bun:"product_id"`
	Quantity    int          `bun:"quantity"`
	Amount      int64        `bun:"amount"`
	CampaignID  *int64       `bun:"campaign_id"`
	Fulfillment Fulfillment  `bun:"fulfillment"`
	Status      OrderStatus  `bun:"status"`
	Escrow      EscrowStatus `bun:"escrow_status"`
	ProofToken  string       `bun:"proof_token"`
	PickupCode  string       `bun:"pickup_code"`
	ReleaseKey  string       `bun:"release_key"`
	CreatedAt   time.Time    `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	PaidAt      *time.Time   `bun:"paid_at"`
	DeliveredAt *time.Time   `bun:"delivered_at"`
	UpdatedAt   time.Time    `bun:"updated_at,nullzero"`
}

// Terminal reports whether the order can accept no further transitions.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderCompleted, OrderCancelled, OrderFailed:
		return true
	}
	return false
}

// Terminal reports whether the escrow can accept no further transitions.
func (s EscrowStatus) Terminal() bool {
	return s == EscrowReleased || s == EscrowRefunded
}

// Claimed reports whether a courier currently holds this order.
func (o *Order) Claimed() bool {
	return o.CourierID != nil
}

// PartyOnOrder reports whether the given party participates in this order.
func (o *Order) PartyOnOrder(partyID int64) bool {
	if o.BuyerID == partyID || o.SellerID == partyID {
		return true
	}
	return o.CourierID != nil && *o.CourierID == partyID
}
