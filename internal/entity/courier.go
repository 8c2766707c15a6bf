package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Courier carries the availability flag consulted by claim and release.
type Courier struct {
	bun.BaseModel `bun:"table:couriers"`

	ID        int64     `bun:",pk,autoincrement"`
	Name      string    `bun:"name"`
	Phone     string    `bun:"phone"`
	Available bool      `bun:"available"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `bun:"updated_at,nullzero"`
}
