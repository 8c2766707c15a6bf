package mission

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

var repoTracer = otel.Tracer("github.com/Vesta-Code/vesta/repository/mission")

// ErrNotFound is returned when a mission is missing.
var ErrNotFound = errors.New("mission not found")

// Repository persists courier missions. There is at most one mission per
// order, enforced by a unique index on order_id.
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

// Create inserts the mission for an order; a duplicate insert for the same
// order is a no-op so lazy creation is safe to repeat.
func (r *Repository) Create(ctx context.Context, mission *entity.Mission) error {
	if mission == nil {
		return errors.New("nil mission")
	}
	ctx, span := repoTracer.Start(ctx, "MissionRepository.Create", trace.WithAttributes(attribute.Int64("order.id", mission.OrderID)))
	defer span.End()

	_, err := database.IDB(ctx, r.writer).NewInsert().
		Model(mission).
		On("CONFLICT (order_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByOrderID fetches the mission attached to an order.
func (r *Repository) GetByOrderID(ctx context.Context, orderID int64) (*entity.Mission, error) {
	ctx, span := repoTracer.Start(ctx, "MissionRepository.GetByOrderID", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	mission := new(entity.Mission)
	err := r.reader.NewSelect().Model(mission).Where("order_id = ?", orderID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return mission, nil
}

// UpdateStatus advances the mission only from the allowed predecessors.
func (r *Repository) UpdateStatus(ctx context.Context, orderID int64, to entity.MissionStatus, at time.Time, from ...entity.MissionStatus) (int64, error) {
	ctx, span := repoTracer.Start(ctx, "MissionRepository.UpdateStatus", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("mission.status", string(to)),
	))
	defer span.End()

	res, err := database.IDB(ctx, r.writer).NewUpdate().
		Model((*entity.Mission)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", at).
		Where("order_id = ?", orderID).
		Where("status IN (?)", bun.In(from)).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes the mission for an order after its claim is released.
func (r *Repository) Delete(ctx context.Context, orderID int64) error {
	ctx, span := repoTracer.Start(ctx, "MissionRepository.Delete", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	_, err := database.IDB(ctx, r.writer).NewDelete().
		Model((*entity.Mission)(nil)).
		Where("order_id = ?", orderID).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
	}
	return err
}
