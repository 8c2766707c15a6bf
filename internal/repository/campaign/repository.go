package campaign

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Vesta-Code/vesta/internal/database"
	"github.com/Vesta-Code/vesta/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Vesta-Code/vesta/repository/campaign")

// ErrNotFound is returned when no campaign matches.
var ErrNotFound = errors.New("campaign not found")

// Repository is the inventory ledger for discount campaigns. Reservation is
// a single conditional increment; stock_consumed can never pass stock_limit
// no matter how many checkouts race.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// GetLiveByProduct returns the campaign currently pricing a product: active,
// inside its window, with stock remaining. ErrNotFound when none applies.
func (r *Repository) GetLiveByProduct(ctx context.Context, productID int64, now time.Time) (*entity.DiscountCampaign, error) {
	ctx, span := repoTracer.Start(ctx, "CampaignRepository.GetLiveByProduct", trace.WithAttributes(attribute.Int64("product.id", productID)))
	defer span.End()

	campaign := new(entity.DiscountCampaign)
	err := database.IDB(ctx, r.reader).NewSelect().
		Model(campaign).
		Where("product_id = ?", productID).
		Where("active = ?", true).
		Where("starts_at <= ?", now).
		Where("ends_at > ?", now).
		Where("stock_consumed < stock_limit").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return campaign, nil
}

// Reserve consumes quantity units of discounted stock. The increment and the
// limit check happen in one statement, so either the whole quantity is
// reserved or nothing is. Returns the modified row count: 1 on success, 0
// when the campaign is exhausted, closed, or outside its window.
func (r *Repository) Reserve(ctx context.Context, campaignID int64, quantity int, now time.Time) (int64, error) {
	ctx, span := repoTracer.Start(ctx, "CampaignRepository.Reserve", trace.WithAttributes(
		attribute.Int64("campaign.id", campaignID),
		attribute.Int("quantity", quantity),
	))
	defer span.End()

	res, err := database.IDB(ctx, r.writer).NewUpdate().
		Model((*entity.DiscountCampaign)(nil)).
		Set("stock_consumed = stock_consumed + ?", quantity).
		Where("id = ?", campaignID).
		Where("stock_consumed + ? <= stock_limit", quantity).
		Where("active = ?", true).
		Where("starts_at <= ?", now).
		Where("ends_at > ?", now).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", n))
	return n, nil
}

// GetByID fetches a campaign by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.DiscountCampaign, error) {
	ctx, span := repoTracer.Start(ctx, "CampaignRepository.GetByID", trace.WithAttributes(attribute.Int64("campaign.id", id)))
	defer span.End()

	campaign := new(entity.DiscountCampaign)
	err := r.reader.NewSelect().Model(campaign).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return campaign, nil
}
