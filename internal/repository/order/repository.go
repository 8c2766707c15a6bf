package order

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

var repoTracer = otel.Tracer("github.com/Vesta-Code/vesta/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// Repository is the order ledger: it persists orders and applies lifecycle
// transitions as single conditional UPDATE statements. Every transition
// reports how many rows it actually modified, so a lost race is observable
// and nothing is ever silently overwritten. No transition is implemented as
// read-then-write; the WHERE clause is the sole arbiter.
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

// Create persists a new order using the write connection.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("order.reference", order.Reference)))
	defer span.End()

	_, err := database.IDB(ctx, r.writer).NewInsert().Model(order).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches an order by primary key using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// GetByReference fetches an order by its public reference. Transition
// decisions read through the writer so a just-committed state is visible.
func (r *Repository) GetByReference(ctx context.Context, reference string) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByReference", trace.WithAttributes(attribute.String("order.reference", reference)))
	defer span.End()

	order := new(entity.Order)
	err := database.IDB(ctx, r.writer).NewSelect().Model(order).Where("reference = ?", reference).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// MarkPaid opens escrow: escrow PENDING -> HELD, status PENDING -> PAID,
// stores the freshly minted proof token. Both predicates are in the WHERE so
// a cancelled order can never be resurrected by a late confirmation. Returns
// the number of rows transitioned; zero means the order was not awaiting
// payment and the caller decides between the idempotent duplicate-confirmation
// case and an invalid state.
func (r *Repository) MarkPaid(ctx context.Context, orderID int64, proofToken string, paidAt time.Time) (int64, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.MarkPaid", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	res, err := database.IDB(ctx, r.writer).NewUpdate().
		Model((*entity.Order)(nil)).
		Set("escrow_status = ?", entity.EscrowHeld).
		Set("status = ?", entity.OrderPaid).
		Set("proof_token = ?", proofToken).
		Set("paid_at = ?", paidAt).
		Set("updated_at = ?", paidAt).
		Where("id = ?", orderID).
		Where("escrow_status = ?", entity.EscrowPending).
		Where("status = ?", entity.OrderPending).
		Exec(ctx)
	return rowsAffected(span, res, err)
}

// ReleaseEscrow pays the seller out: escrow HELD -> RELEASED, status ->
// COMPLETED. Zero rows means escrow was not HELD.
func (r *Repository) ReleaseEscrow(ctx context.Context, orderID int64, deliveredAt time.Time) (int64, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ReleaseEscrow", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	res, err := database.IDB(ctx, r.writer).NewUpdate().
		Model((*entity.Order)(nil)).
		Set("escrow_status = ?", entity.EscrowReleased).
		Set("status = ?", entity.OrderCompleted).
		Set("delivered_at = ?", deliveredAt).
		Set("updated_at = ?", deliveredAt).
		Where("id = ?", orderID).
		Where("escrow_status = ?", entity.EscrowHeld).
		Exec(ctx)
	return rowsAffected(span, res, err)
}

// RefundEscrow returns held funds to the buyer: escrow HELD -> REFUNDED,
// status -> CANCELLED. Zero rows means escrow was not HELD.
func (r *Repository) RefundEscrow(ctx context.Context, orderID int64, at time.Time) (int64, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.RefundEscrow", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	res, err := database.IDB(ctx, r.writer).NewUpdate().
		Model((*entity.Order)(nil)).
		Set("escrow_status = ?", entity.EscrowRefunded).
		Set("status = ?", entity.OrderCancelled).
		Set("updated_at = ?", at).
		Where("id = ?", orderID).
		Where("escrow_status = ?", entity.EscrowHeld).
		Exec(ctx)
	return rowsAffected(span, res, err)
}

// UpdateStatus moves status to the target only when the current status is
// one of the allowed predecessors.
func (r *Repository) UpdateStatus(ctx context.Context, orderID int64, to entity.OrderStatus, at time.Time, from ...entity.OrderStatus) (int64, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdateStatus", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("order.status", string(to)),
	))
	defer span.End()

	res, err := database.IDB(ctx, r.writer).NewUpdate().
		Model((*entity.Order)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", at).
		Where("id = ?", orderID).
		Where("status IN (?)", bun.In(from)).
		Exec(ctx)
	return rowsAffected(span, res, err)
}

// ClaimableStatuses are the order states in which a courier slot may be won:
// escrow is open and the goods are still headed for a handoff.
var ClaimableStatuses = []entity.OrderStatus{entity.OrderPaid, entity.OrderPreparing, entity.OrderReady}

// Claim assigns a courier to an unclaimed, in-flight delivery order in one
// statement. Exactly one concurrent caller can see a modified count of 1;
// everyone else observes 0 and the re-read decides between a race loss and
// an order that was never claimable.
func (r *Repository) Claim(ctx context.Context, orderID, courierID int64, pickupCode string, at time.Time) (int64, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Claim", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.Int64("courier.id", courierID),
	))
	defer span.End()

	res, err := database.IDB(ctx, r.writer).NewUpdate().
		Model((*entity.Order)(nil)).
		Set("courier_id = ?", courierID).
		Set("pickup_code = ?", pickupCode).
		Set("updated_at = ?", at).
		Where("id = ?", orderID).
		Where("courier_id IS NULL").
		Where("fulfillment = ?", entity.FulfillmentDelivery).
		Where("status IN (?)", bun.In(ClaimableStatuses)).
		Exec(ctx)
	return rowsAffected(span, res, err)
}

// ReleaseClaim clears the courier slot. Unconditional: only the claim holder
// can ever be released, so there is no race to guard here.
func (r *Repository) ReleaseClaim(ctx context.Context, orderID int64, at time.Time) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ReleaseClaim", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	_, err := database.IDB(ctx, r.writer).NewUpdate().
		Model((*entity.Order)(nil)).
		Set("courier_id = NULL").
		Set("pickup_code = ?", "").
		Set("updated_at = ?", at).
		Where("id = ?", orderID).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
	}
	return err
}

// MarkPickedUp transitions READY -> PICKED_UP and records the release key
// handed over at the handshake. Strictly requires READY.
func (r *Repository) MarkPickedUp(ctx context.Context, orderID int64, releaseKey string, at time.Time) (int64, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.MarkPickedUp", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	res, err := database.IDB(ctx, r.writer).NewUpdate().
		Model((*entity.Order)(nil)).
		Set("status = ?", entity.OrderPickedUp).
		Set("release_key = ?", releaseKey).
		Set("updated_at = ?", at).
		Where("id = ?", orderID).
		Where("status = ?", entity.OrderReady).
		Exec(ctx)
	return rowsAffected(span, res, err)
}

// Balance aggregates a seller's escrow totals for reconciliation.
type Balance struct {
	ReleasedTotal int64
	RefundedTotal int64
	HeldTotal     int64
}

// SellerBalance sums order amounts per escrow state for one seller.
func (r *Repository) SellerBalance(ctx context.Context, sellerID int64) (Balance, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.SellerBalance", trace.WithAttributes(attribute.Int64("seller.id", sellerID)))
	defer span.End()

	var rows []struct {
		Escrow entity.EscrowStatus `bun:"escrow_status"`
		Total  int64               `bun:"total"`
	}
	err := r.reader.NewSelect().
		Model((*entity.Order)(nil)).
		ColumnExpr("escrow_status").
		ColumnExpr("COALESCE(SUM(amount), 0) AS total").
		Where("seller_id = ?", sellerID).
		Group("escrow_status").
		Scan(ctx, &rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return Balance{}, err
	}

	var balance Balance
	for _, row := range rows {
		switch row.Escrow {
		case entity.EscrowReleased:
			balance.ReleasedTotal = row.Total
		case entity.EscrowRefunded:
			balance.RefundedTotal = row.Total
		case entity.EscrowHeld:
			balance.HeldTotal = row.Total
		}
	}
	return balance, nil
}

func rowsAffected(span trace.Span, res sql.Result, err error) (int64, error) {
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
