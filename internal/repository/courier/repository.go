package courier

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

var repoTracer = otel.Tracer("github.com/Vesta-Code/vesta/repository/courier")

// ErrNotFound is returned when a courier is missing.
var ErrNotFound = errors.New("courier not found")

// Repository owns the courier availability flag.
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

// GetByID fetches a courier by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Courier, error) {
	ctx, span := repoTracer.Start(ctx, "CourierRepository.GetByID", trace.WithAttributes(attribute.Int64("courier.id", id)))
	defer span.End()

	courier := new(entity.Courier)
	err := r.reader.NewSelect().Model(courier).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return courier, nil
}

// SetAvailable flips the availability flag. The flag is only ever mutated by
// the claim holder, so this write is intentionally unconditional.
func (r *Repository) SetAvailable(ctx context.Context, id int64, available bool, at time.Time) error {
	ctx, span := repoTracer.Start(ctx, "CourierRepository.SetAvailable", trace.WithAttributes(
		attribute.Int64("courier.id", id),
		attribute.Bool("courier.available", available),
	))
	defer span.End()

	_, err := database.IDB(ctx, r.writer).NewUpdate().
		Model((*entity.Courier)(nil)).
		Set("available = ?", available).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
	}
	return err
}
