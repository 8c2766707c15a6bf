package claim

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Vesta-Code/vesta/internal/clock"
	"github.com/Vesta-Code/vesta/internal/config"
	"github.com/Vesta-Code/vesta/internal/entity"
	"github.com/Vesta-Code/vesta/internal/identity"
	courierrepo "github.com/Vesta-Code/vesta/internal/repository/courier"
	missionrepo "github.com/Vesta-Code/vesta/internal/repository/mission"
	orderrepo "github.com/Vesta-Code/vesta/internal/repository/order"
	"github.com/Vesta-Code/vesta/internal/token"
	"github.com/Vesta-Code/vesta/pkg/errorbank"
)

var brokerTracer = otel.Tracer("github.com/Vesta-Code/vesta/service/claim")

// orderLedger is the slice of the order repository the broker needs.
type orderLedger interface {
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
	Claim(ctx context.Context, orderID, courierID int64, pickupCode string, at time.Time) (int64, error)
	ReleaseClaim(ctx context.Context, orderID int64, at time.Time) error
}

// courierDirectory owns the courier availability flag.
type courierDirectory interface {
	GetByID(ctx context.Context, id int64) (*entity.Courier, error)
	SetAvailable(ctx context.Context, id int64, available bool, at time.Time) error
}

// missionLog records the courier-facing work unit per claimed order.
type missionLog interface {
	Create(ctx context.Context, mission *entity.Mission) error
	Delete(ctx context.Context, orderID int64) error
}

// Broker assigns exactly one courier to a delivery order. The assignment is
// a single conditional write against the order ledger; there is no lock held
// across a read, and losing callers get a Conflict they can show as "too
// slow, already taken".
type Broker struct {
	orders   orderLedger
	couriers courierDirectory
	missions missionLog
	logger   *zap.Logger
	clock    clock.Clock
	codeLen  int
}

// Params defines dependencies for constructing Broker.
type Params struct {
	fx.In

	Orders   *orderrepo.Repository
	Couriers *courierrepo.Repository
	Missions *missionrepo.Repository
	Logger   *zap.Logger
	Clock    clock.Clock
	Config   config.Config
}

// NewBroker wires a new Broker instance.
func NewBroker(p Params) *Broker {
	return &Broker{
		orders:   p.Orders,
		couriers: p.Couriers,
		missions: p.Missions,
		logger:   p.Logger,
		clock:    p.Clock,
		codeLen:  p.Config.Escrow.PickupCodeLen,
	}
}

// Claim attempts to win the courier slot for an order. On success the
// courier receives the pickup code used for the handoff handshake with the
// seller. Exactly one of any number of concurrent callers succeeds.
func (b *Broker) Claim(ctx context.Context, actor identity.Context, orderID int64) (string, error) {
	ctx, span := brokerTracer.Start(ctx, "ClaimBroker.Claim", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.Int64("courier.id", actor.PartyID),
	))
	defer span.End()

	if actor.Role != identity.RoleCourier {
		return "", errorbank.Forbidden("only couriers can claim deliveries")
	}

	if _, err := b.couriers.GetByID(ctx, actor.PartyID); err != nil {
		if errors.Is(err, courierrepo.ErrNotFound) {
			return "", errorbank.NotFound("courier not registered")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "courier lookup failed")
		return "", errorbank.Internal("failed to load courier", errorbank.WithCause(err))
	}

	code, err := token.NumericCode(b.codeLen)
	if err != nil {
		return "", errorbank.Internal("failed to generate pickup code", errorbank.WithCause(err))
	}

	now := b.clock.Now()
	modified, err := b.orders.Claim(ctx, orderID, actor.PartyID, code, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "claim update failed")
		return "", errorbank.Internal("failed to claim order", errorbank.WithCause(err))
	}

	if modified == 0 {
		// Decide why the conditional write matched nothing. The common case
		// is another courier winning the race; that must surface as a
		// Conflict, not a generic failure.
		order, err := b.orders.GetByID(ctx, orderID)
		if errors.Is(err, orderrepo.ErrNotFound) {
			return "", errorbank.NotFound("order not found")
		}
		if err != nil {
			span.RecordError(err)
			return "", errorbank.Internal("failed to load order", errorbank.WithCause(err))
		}
		if order.Fulfillment != entity.FulfillmentDelivery {
			return "", errorbank.InvalidState("order is not a delivery order",
				errorbank.WithDetail("fulfillment", string(order.Fulfillment)))
		}
		if !claimable(order.Status) {
			return "", errorbank.InvalidState("order is not open for claims",
				errorbank.WithDetail("status", string(order.Status)))
		}
		return "", errorbank.Conflict("order already claimed by another courier")
	}

	mission := &entity.Mission{
		Reference: newReference(),
		OrderID:   orderID,
		CourierID: actor.PartyID,
		Status:    entity.MissionAssigned,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := b.missions.Create(ctx, mission); err != nil {
		b.logger.Warn("mission create failed after claim", zap.Int64("order_id", orderID), zap.Error(err))
	}

	if err := b.couriers.SetAvailable(ctx, actor.PartyID, false, now); err != nil {
		b.logger.Warn("courier availability update failed", zap.Int64("courier_id", actor.PartyID), zap.Error(err))
	}

	b.logger.Info("order claimed",
		zap.Int64("order_id", orderID),
		zap.Int64("courier_id", actor.PartyID),
	)
	return code, nil
}

// Release clears the courier slot after a cancellation or abandonment and
// restores the courier's availability. Only the claim holder can ever be
// released, so these writes are unconditional.
func (b *Broker) Release(ctx context.Context, order *entity.Order) error {
	if order == nil || order.CourierID == nil {
		return nil
	}
	ctx, span := brokerTracer.Start(ctx, "ClaimBroker.Release", trace.WithAttributes(attribute.Int64("order.id", order.ID)))
	defer span.End()

	now := b.clock.Now()
	courierID := *order.CourierID

	if err := b.orders.ReleaseClaim(ctx, order.ID, now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "release failed")
		return errorbank.Internal("failed to release claim", errorbank.WithCause(err))
	}

	if err := b.missions.Delete(ctx, order.ID); err != nil {
		b.logger.Warn("mission delete failed on release", zap.Int64("order_id", order.ID), zap.Error(err))
	}

	if err := b.couriers.SetAvailable(ctx, courierID, true, now); err != nil {
		b.logger.Warn("courier availability restore failed", zap.Int64("courier_id", courierID), zap.Error(err))
	}

	b.logger.Info("claim released",
		zap.Int64("order_id", order.ID),
		zap.Int64("courier_id", courierID),
	)
	return nil
}

func newReference() string {
	return uuid.NewString()
}

// claimable mirrors the status predicate on the ledger's claim write so the
// zero-rows re-read can tell a dead order apart from a lost race.
func claimable(status entity.OrderStatus) bool {
	for _, st := range orderrepo.ClaimableStatuses {
		if status == st {
			return true
		}
	}
	return false
}
