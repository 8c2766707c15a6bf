package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// DiscountCampaign is a time-boxed reduced-price offer for one product.
// StockConsumed only ever grows, and the reserve path guarantees it never
// exceeds StockLimit even under concurrent checkouts.
type DiscountCampaign struct {
	bun.BaseModel `bun:"table:discount_campaigns"`

	ID              int64     `bun:",pk,autoincrement"`
	ProductID       int64     `bun:"product_id"`
	OriginalPrice   int64     `bun:"original_price"`
	DiscountedPrice int64     `bun:"discounted_price"`
	DiscountPercent int       `bun:"discount_percent"`
	StockLimit      int       `bun:"stock_limit"`
	StockConsumed   int       `bun:"stock_consumed"`
	Active          bool      `bun:"active"`
	StartsAt        time.Time `bun:"starts_at"`
	EndsAt          time.Time `bun:"ends_at"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}

// Live reports whether the campaign can price an order at the given instant.
// Remaining stock is checked separately by the reserve statement.
func (c *DiscountCampaign) Live(now time.Time) bool {
	if c == nil || !c.Active {
		return false
	}
	return !now.Before(c.StartsAt) && now.Before(c.EndsAt)
}

// Exhausted reports whether every discounted unit has been reserved.
func (c *DiscountCampaign) Exhausted() bool {
	return c.StockConsumed >= c.StockLimit
}
