package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// MissionStatus mirrors the courier-facing slice of the order lifecycle.
type MissionStatus string

const (
	MissionAssigned  MissionStatus = "assigned"
	MissionPickedUp  MissionStatus = "picked_up"
	MissionDelivered MissionStatus = "delivered"
)

// Mission is the courier-facing work unit for one delivery order. It is
// created lazily on first claim (or on self-delivery) and there is at most
// one per order.
type Mission struct {
	bun.BaseModel `bun:"table:missions"`

	ID        int64         `bun:",pk,autoincrement"`
	Reference string        `bun:"reference"`
	OrderID   int64         `bun:"order_id"`
	CourierID int64         `bun:"courier_id"`
	Status    MissionStatus `bun:"status"`
	CreatedAt time.Time     `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time     `bun:"updated_at,nullzero"`
}
