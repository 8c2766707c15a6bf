package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Product is a sellable catalog item. BasePrice is in minor currency units.
type Product struct {
	bun.BaseModel `bun:"table:products"`

	ID        int64     `bun:",pk,autoincrement"`
	SellerID  int64     `bun:"seller_id"`
	Title     string    `bun:"title"`
	BasePrice int64     `bun:"base_price"`
	Available bool      `bun:"available"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
