package seeder

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Vesta-Code/vesta/internal/clock"
	"github.com/Vesta-Code/vesta/internal/database"
	"github.com/Vesta-Code/vesta/internal/entity"
)

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	clock  clock.Clock
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, clk clock.Clock, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, clock: clk, logger: logger}
}

// Marketplace seeds a minimal catalog: products, couriers, and one live
// discount campaign. Inserts are idempotent.
func (s *Seeder) Marketplace(ctx context.Context) error {
	if err := s.products(ctx); err != nil {
		return err
	}
	if err := s.couriers(ctx); err != nil {
		return err
	}
	return s.campaigns(ctx)
}

func (s *Seeder) products(ctx context.Context) error {
	now := s.clock.Now()
	samples := []entity.Product{
		{ID: 1, SellerID: 101, Title: "Ceramic pour-over set", BasePrice: 2000, Available: true, CreatedAt: now},
		{ID: 2, SellerID: 101, Title: "Hand-thrown mug", BasePrice: 850, Available: true, CreatedAt: now},
		{ID: 3, SellerID: 102, Title: "Walnut serving board", BasePrice: 4500, Available: true, CreatedAt: now},
	}

	for _, sample := range samples {
		product := sample
		_, err := s.db.NewInsert().Model(&product).
			On("CONFLICT (id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded products", zap.Int("count", len(samples)))
	}
	return nil
}

func (s *Seeder) couriers(ctx context.Context) error {
	now := s.clock.Now()
	samples := []entity.Courier{
		{ID: 301, Name: "Ama Mensah", Phone: "+233200000301", Available: true, CreatedAt: now, UpdatedAt: now},
		{ID: 302, Name: "Kofi Boateng", Phone: "+233200000302", Available: true, CreatedAt: now, UpdatedAt: now},
	}

	for _, sample := range samples {
		courier := sample
		_, err := s.db.NewInsert().Model(&courier).
			On("CONFLICT (id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded couriers", zap.Int("count", len(samples)))
	}
	return nil
}

func (s *Seeder) campaigns(ctx context.Context) error {
	now := s.clock.Now()
	campaign := entity.DiscountCampaign{
		ID:              1,
		ProductID:       1,
		OriginalPrice:   2000,
		DiscountedPrice: 1500,
		DiscountPercent: 25,
		StockLimit:      50,
		StockConsumed:   0,
		Active:          true,
		StartsAt:        now,
		EndsAt:          now.Add(72 * time.Hour),
		CreatedAt:       now,
	}

	_, err := s.db.NewInsert().Model(&campaign).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("seeded discount campaign", zap.Int64("product_id", campaign.ProductID))
	}
	return nil
}
