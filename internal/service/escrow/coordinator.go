package escrow

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Vesta-Code/vesta/internal/cache"
	"github.com/Vesta-Code/vesta/internal/clock"
	"github.com/Vesta-Code/vesta/internal/config"
	"github.com/Vesta-Code/vesta/internal/database"
	"github.com/Vesta-Code/vesta/internal/entity"
	"github.com/Vesta-Code/vesta/internal/gateway/payment"
	"github.com/Vesta-Code/vesta/internal/identity"
	"github.com/Vesta-Code/vesta/internal/messaging"
	campaignrepo "github.com/Vesta-Code/vesta/internal/repository/campaign"
	missionrepo "github.com/Vesta-Code/vesta/internal/repository/mission"
	orderrepo "github.com/Vesta-Code/vesta/internal/repository/order"
	productrepo "github.com/Vesta-Code/vesta/internal/repository/product"
	"github.com/Vesta-Code/vesta/internal/service/claim"
	"github.com/Vesta-Code/vesta/internal/token"
	"github.com/Vesta-Code/vesta/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Vesta-Code/vesta/service/escrow")

// orderLedger is the slice of the order repository the coordinator drives.
type orderLedger interface {
	Create(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
	GetByReference(ctx context.Context, reference string) (*entity.Order, error)
	MarkPaid(ctx context.Context, orderID int64, proofToken string, paidAt time.Time) (int64, error)
	ReleaseEscrow(ctx context.Context, orderID int64, deliveredAt time.Time) (int64, error)
	RefundEscrow(ctx context.Context, orderID int64, at time.Time) (int64, error)
	UpdateStatus(ctx context.Context, orderID int64, to entity.OrderStatus, at time.Time, from ...entity.OrderStatus) (int64, error)
	MarkPickedUp(ctx context.Context, orderID int64, releaseKey string, at time.Time) (int64, error)
	SellerBalance(ctx context.Context, sellerID int64) (orderrepo.Balance, error)
}

// inventoryLedger prices and reserves discounted stock.
type inventoryLedger interface {
	GetLiveByProduct(ctx context.Context, productID int64, now time.Time) (*entity.DiscountCampaign, error)
	Reserve(ctx context.Context, campaignID int64, quantity int, now time.Time) (int64, error)
}

// catalog resolves sellable products.
type catalog interface {
	GetByID(ctx context.Context, id int64) (*entity.Product, error)
}

// missionLog tracks the courier-facing view of deliveries.
type missionLog interface {
	Create(ctx context.Context, mission *entity.Mission) error
	UpdateStatus(ctx context.Context, orderID int64, to entity.MissionStatus, at time.Time, from ...entity.MissionStatus) (int64, error)
}

// proofCodec mints and verifies delivery-proof tokens.
type proofCodec interface {
	Mint(orderID, amount, sellerID, buyerID int64) (string, error)
	Verify(tok string) *token.Payload
}

// claimReleaser frees a courier slot when an order dies.
type claimReleaser interface {
	Release(ctx context.Context, order *entity.Order) error
}

// Coordinator sequences the ledgers, the token codec, and the claim broker
// into the user-facing escrow flows. It owns no storage invariants itself;
// each step delegates to the owning component's atomic operation and any
// step failure aborts the flow with no partial financial state change.
type Coordinator struct {
	orders    orderLedger
	inventory inventoryLedger
	products  catalog
	missions  missionLog
	tokens    proofCodec
	payments  payment.Verifier
	broker    claimReleaser
	cache     cache.Store
	cacheTTL  time.Duration
	publisher messaging.Client
	logger    *zap.Logger
	clock     clock.Clock
	messaging messagingConfig
	inTx      func(ctx context.Context, fn func(ctx context.Context) error) error
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Coordinator.
type Params struct {
	fx.In

	Orders    *orderrepo.Repository
	Campaigns *campaignrepo.Repository
	Products  *productrepo.Repository
	Missions  *missionrepo.Repository
	Tokens    *token.Codec
	Payments  payment.Verifier
	Broker    *claim.Broker
	Cache     cache.Store
	Publisher messaging.Client
	Config    config.Config
	Logger    *zap.Logger
	Clock     clock.Clock
	DB        *database.Connections
}

// NewCoordinator wires a new Coordinator instance.
func NewCoordinator(p Params) *Coordinator {
	return &Coordinator{
		orders:    p.Orders,
		inventory: p.Campaigns,
		products:  p.Products,
		missions:  p.Missions,
		tokens:    p.Tokens,
		payments:  p.Payments,
		broker:    p.Broker,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		publisher: p.Publisher,
		logger:    p.Logger,
		clock:     p.Clock,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
		inTx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return database.RunInTx(ctx, p.DB.Writer, fn)
		},
	}
}

// CheckoutInput is the fixed shape accepted at order creation.
type CheckoutInput struct {
	ProductID   int64
	Quantity    int
	Fulfillment entity.Fulfillment
}

// CheckoutResult pairs the created order with catalog context for the
// response payload.
type CheckoutResult struct {
	Order           *entity.Order
	ProductTitle    string
	CampaignApplied bool
}

// Checkout prices the product and creates the order. When a live campaign
// applies, the stock reservation and the order insert share one transaction:
// a failed insert rolls the reservation back, and a rejected reservation
// falls back to the base price instead of failing the order.
func (s *Coordinator) Checkout(ctx context.Context, actor identity.Context, in CheckoutInput) (*CheckoutResult, error) {
	ctx, span := serviceTracer.Start(ctx, "EscrowCoordinator.Checkout", trace.WithAttributes(
		attribute.Int64("product.id", in.ProductID),
		attribute.Int("quantity", in.Quantity),
	))
	defer span.End()

	if actor.Role != identity.RoleBuyer && !actor.Admin() {
		return nil, errorbank.Forbidden("only buyers can create orders")
	}
	if in.ProductID <= 0 {
		return nil, errorbank.BadRequest("product_id is required")
	}
	if in.Quantity <= 0 {
		return nil, errorbank.BadRequest("quantity must be positive")
	}
	switch in.Fulfillment {
	case entity.FulfillmentPickup, entity.FulfillmentDelivery:
	default:
		return nil, errorbank.BadRequest("fulfillment must be pickup or delivery")
	}

	product, err := s.products.GetByID(ctx, in.ProductID)
	if err != nil {
		if errors.Is(err, productrepo.ErrNotFound) {
			return nil, errorbank.NotFound("product not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "catalog lookup failed")
		return nil, errorbank.Internal("failed to load product", errorbank.WithCause(err))
	}

	now := s.clock.Now()
	var order *entity.Order
	var campaignApplied bool

	err = s.inTx(ctx, func(txCtx context.Context) error {
		unitPrice := product.BasePrice
		var campaignID *int64

		camp, err := s.inventory.GetLiveByProduct(txCtx, product.ID, now)
		switch {
		case err == nil:
			reserved, err := s.inventory.Reserve(txCtx, camp.ID, in.Quantity, now)
			if err != nil {
				return err
			}
			if reserved == 1 {
				unitPrice = camp.DiscountedPrice
				id := camp.ID
				campaignID = &id
				campaignApplied = true
			}
		case errors.Is(err, campaignrepo.ErrNotFound):
			// no live campaign; base price applies
		default:
			return err
		}

		order = &entity.Order{
			Reference:   uuid.NewString(),
			BuyerID:     actor.PartyID,
			SellerID:    product.SellerID,
			ProductID:   product.ID,
			Quantity:    in.Quantity,
			Amount:      unitPrice * int64(in.Quantity),
			CampaignID:  campaignID,
			Fulfillment: in.Fulfillment,
			Status:      entity.OrderPending,
			Escrow:      entity.EscrowPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return s.orders.Create(txCtx, order)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout failed")
		return nil, errorbank.Internal("failed to create order", errorbank.WithCause(err))
	}

	s.logger.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.String("reference", order.Reference),
		zap.Int64("amount", order.Amount),
		zap.Bool("campaign_applied", campaignApplied),
	)
	return &CheckoutResult{
		Order:           order,
		ProductTitle:    product.Title,
		CampaignApplied: campaignApplied,
	}, nil
}

// ConfirmPayment handles the provider's payment confirmation for an order
// reference: verify with the provider, mint the delivery-proof token, and
// open escrow. Duplicate confirmations are idempotent: once escrow is HELD
// the stored state is returned unchanged and no second token is persisted.
func (s *Coordinator) ConfirmPayment(ctx context.Context, reference string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "EscrowCoordinator.ConfirmPayment", trace.WithAttributes(attribute.String("order.reference", reference)))
	defer span.End()

	if reference == "" {
		return nil, errorbank.BadRequest("payment reference is required")
	}

	order, err := s.orders.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found for reference")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	if order.Escrow == entity.EscrowHeld {
		return order, nil
	}
	// A cancelled or failed order can still carry PENDING escrow when no funds
	// were ever captured; a late provider confirmation must not revive it.
	if order.Status.Terminal() {
		return nil, errorbank.InvalidState("order is already settled",
			errorbank.WithDetail("status", string(order.Status)))
	}
	if order.Escrow.Terminal() {
		return nil, errorbank.InvalidState("escrow already settled",
			errorbank.WithDetail("escrow_status", string(order.Escrow)))
	}

	conf, err := s.payments.Verify(ctx, reference)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "payment verification failed")
		return nil, errorbank.External("payment verification failed", errorbank.WithCause(err))
	}
	if !conf.Paid {
		return nil, errorbank.BadRequest("payment not confirmed by provider")
	}
	if conf.AmountCaptured >= 0 && conf.AmountCaptured != order.Amount {
		return nil, errorbank.InvalidState("captured amount does not match order",
			errorbank.WithDetail("expected", order.Amount),
			errorbank.WithDetail("captured", conf.AmountCaptured))
	}

	proof, err := s.tokens.Mint(order.ID, order.Amount, order.SellerID, order.BuyerID)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to mint delivery token", errorbank.WithCause(err))
	}

	now := s.clock.Now()
	modified, err := s.orders.MarkPaid(ctx, order.ID, proof, now)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to open escrow", errorbank.WithCause(err))
	}
	if modified == 0 {
		// Lost to a concurrent confirmation. Re-read and honor idempotency;
		// the token minted here is never stored and is simply superseded.
		current, err := s.orders.GetByID(ctx, order.ID)
		if err != nil {
			return nil, errorbank.Internal("failed to reload order", errorbank.WithCause(err))
		}
		if current.Escrow == entity.EscrowHeld {
			return current, nil
		}
		return nil, errorbank.InvalidState("escrow is not open for payment",
			errorbank.WithDetail("escrow_status", string(current.Escrow)))
	}

	updated, err := s.orders.GetByID(ctx, order.ID)
	if err != nil {
		return nil, errorbank.Internal("failed to reload order", errorbank.WithCause(err))
	}

	s.dropFromCache(ctx, order.ID)
	s.publish(ctx, EventOrderPaid, updated)
	s.logger.Info("escrow opened",
		zap.Int64("order_id", updated.ID),
		zap.Int64("amount", updated.Amount),
	)
	return updated, nil
}

// MarkReady lets the seller flag the order as ready for handoff.
func (s *Coordinator) MarkReady(ctx context.Context, actor identity.Context, orderID int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "EscrowCoordinator.MarkReady", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.SellerID != actor.PartyID && !actor.Admin() {
		return nil, errorbank.Forbidden("only the seller can mark an order ready")
	}

	modified, err := s.orders.UpdateStatus(ctx, orderID, entity.OrderReady, s.clock.Now(),
		entity.OrderPaid, entity.OrderPreparing)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to update order", errorbank.WithCause(err))
	}
	if modified == 0 {
		return nil, s.invalidState(ctx, orderID, "order is not awaiting preparation")
	}

	s.dropFromCache(ctx, orderID)
	return s.loadOrder(ctx, orderID)
}

// PickupResult reports the pickup transition plus the release key generated
// for the seller-side completion path.
type PickupResult struct {
	Order      *entity.Order
	ReleaseKey string
}

// Pickup records the physical handoff. A claimed courier must present the
// pickup code from the claim handshake; a seller may self-deliver an
// unclaimed order. Both paths require the order to be strictly READY and
// both set the numeric release key that enables scan-free completion.
func (s *Coordinator) Pickup(ctx context.Context, actor identity.Context, orderID int64, code string) (*PickupResult, error) {
	ctx, span := serviceTracer.Start(ctx, "EscrowCoordinator.Pickup", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	selfDelivery := false
	switch {
	case actor.Role == identity.RoleCourier:
		if order.CourierID == nil || *order.CourierID != actor.PartyID {
			return nil, errorbank.Forbidden("order is not assigned to this courier")
		}
		if subtle.ConstantTimeCompare([]byte(code), []byte(order.PickupCode)) != 1 {
			return nil, errorbank.Forbidden("pickup code mismatch")
		}
	case actor.PartyID == order.SellerID || actor.Admin():
		if order.Claimed() {
			return nil, errorbank.InvalidState("claimed orders are picked up by their courier")
		}
		selfDelivery = true
	default:
		return nil, errorbank.Forbidden("caller cannot pick up this order")
	}

	releaseKey, err := token.NumericCode(6)
	if err != nil {
		return nil, errorbank.Internal("failed to generate release key", errorbank.WithCause(err))
	}

	now := s.clock.Now()
	modified, err := s.orders.MarkPickedUp(ctx, orderID, releaseKey, now)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to record pickup", errorbank.WithCause(err))
	}
	if modified == 0 {
		return nil, s.invalidState(ctx, orderID, "order is not ready for pickup")
	}

	if selfDelivery {
		mission := &entity.Mission{
			Reference: uuid.NewString(),
			OrderID:   orderID,
			CourierID: actor.PartyID,
			Status:    entity.MissionPickedUp,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.missions.Create(ctx, mission); err != nil {
			s.logger.Warn("self-delivery mission create failed", zap.Int64("order_id", orderID), zap.Error(err))
		}
	} else {
		if _, err := s.missions.UpdateStatus(ctx, orderID, entity.MissionPickedUp, now, entity.MissionAssigned); err != nil {
			s.logger.Warn("mission pickup update failed", zap.Int64("order_id", orderID), zap.Error(err))
		}
	}

	s.dropFromCache(ctx, orderID)
	updated, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &PickupResult{Order: updated, ReleaseKey: releaseKey}, nil
}

// VerifyDelivery completes the token-scan path: open the capsule, reject
// stale or substituted tokens, confirm the caller is a party to the order,
// and release escrow in one conditional transition.
func (s *Coordinator) VerifyDelivery(ctx context.Context, actor identity.Context, bearer string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "EscrowCoordinator.VerifyDelivery")
	defer span.End()

	if bearer == "" {
		return nil, errorbank.BadRequest("token is required")
	}

	payload := s.tokens.Verify(bearer)
	if payload == nil {
		return nil, errorbank.InvalidState("token is expired or malformed",
			errorbank.WithDetail("reason", "EXPIRED"))
	}

	order, err := s.loadOrder(ctx, payload.OrderID)
	if err != nil {
		return nil, err
	}

	// The capsule decrypted cleanly, but it must also be the order's current
	// token. Anything else is a replay against a different, still-open order
	// or a superseded mint.
	if order.ProofToken == "" || subtle.ConstantTimeCompare([]byte(bearer), []byte(order.ProofToken)) != 1 {
		return nil, errorbank.InvalidState("token does not match this order",
			errorbank.WithDetail("reason", "MISMATCH"))
	}

	if actor.PartyID != order.BuyerID && actor.PartyID != order.SellerID && !actor.Admin() {
		return nil, errorbank.Forbidden("only the buyer or seller can verify delivery")
	}

	return s.release(ctx, span, order)
}

// ReleaseByKey completes the scan-free path: the seller submits the numeric
// key set at pickup time and escrow releases on an exact match.
func (s *Coordinator) ReleaseByKey(ctx context.Context, actor identity.Context, orderID int64, key string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "EscrowCoordinator.ReleaseByKey", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	if key == "" {
		return nil, errorbank.BadRequest("release key is required")
	}

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.SellerID != actor.PartyID && !actor.Admin() {
		return nil, errorbank.Forbidden("only the seller can release by key")
	}
	if order.ReleaseKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(order.ReleaseKey)) != 1 {
		return nil, errorbank.Forbidden("release key mismatch")
	}

	return s.release(ctx, span, order)
}

// release performs the single escrow HELD -> RELEASED transition shared by
// both delivery-proof paths, then settles the mission and the courier slot.
func (s *Coordinator) release(ctx context.Context, span trace.Span, order *entity.Order) (*entity.Order, error) {
	now := s.clock.Now()
	modified, err := s.orders.ReleaseEscrow(ctx, order.ID, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "release failed")
		return nil, errorbank.Internal("failed to release escrow", errorbank.WithCause(err))
	}
	if modified == 0 {
		current, err := s.loadOrder(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		return nil, errorbank.InvalidState("escrow is not held",
			errorbank.WithDetail("reason", "WRONG_STATE"),
			errorbank.WithDetail("escrow_status", string(current.Escrow)))
	}

	if _, err := s.missions.UpdateStatus(ctx, order.ID, entity.MissionDelivered, now,
		entity.MissionAssigned, entity.MissionPickedUp); err != nil {
		s.logger.Warn("mission delivered update failed", zap.Int64("order_id", order.ID), zap.Error(err))
	}

	s.dropFromCache(ctx, order.ID)
	updated, err := s.loadOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, EventOrderCompleted, updated)
	s.logger.Info("escrow released",
		zap.Int64("order_id", updated.ID),
		zap.Int64("amount", updated.Amount),
	)
	return updated, nil
}

// Cancel aborts an order on behalf of the buyer or an admin. Held escrow is
// refunded; pending escrow is cancelled with no refund side effect because
// no funds were ever captured. A claimed courier is released either way.
func (s *Coordinator) Cancel(ctx context.Context, actor identity.Context, orderID int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "EscrowCoordinator.Cancel", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != actor.PartyID && !actor.Admin() {
		return nil, errorbank.Forbidden("only the buyer or an admin can cancel")
	}
	if order.Status.Terminal() {
		return nil, errorbank.InvalidState("order is already settled",
			errorbank.WithDetail("status", string(order.Status)))
	}

	now := s.clock.Now()
	switch order.Escrow {
	case entity.EscrowHeld:
		modified, err := s.orders.RefundEscrow(ctx, orderID, now)
		if err != nil {
			span.RecordError(err)
			return nil, errorbank.Internal("failed to refund escrow", errorbank.WithCause(err))
		}
		if modified == 0 {
			return nil, s.invalidState(ctx, orderID, "escrow changed while cancelling")
		}
	case entity.EscrowPending:
		modified, err := s.orders.UpdateStatus(ctx, orderID, entity.OrderCancelled, now,
			entity.OrderPending, entity.OrderPaid, entity.OrderPreparing, entity.OrderReady, entity.OrderPickedUp)
		if err != nil {
			span.RecordError(err)
			return nil, errorbank.Internal("failed to cancel order", errorbank.WithCause(err))
		}
		if modified == 0 {
			return nil, s.invalidState(ctx, orderID, "order changed while cancelling")
		}
	default:
		return nil, errorbank.InvalidState("escrow is already settled",
			errorbank.WithDetail("escrow_status", string(order.Escrow)))
	}

	if order.Claimed() {
		if err := s.broker.Release(ctx, order); err != nil {
			s.logger.Warn("courier release failed on cancel", zap.Int64("order_id", orderID), zap.Error(err))
		}
	}

	s.dropFromCache(ctx, orderID)
	updated, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, EventOrderCancelled, updated)
	s.logger.Info("order cancelled",
		zap.Int64("order_id", updated.ID),
		zap.String("escrow_status", string(updated.Escrow)),
	)
	return updated, nil
}

// Get returns an order to one of its parties, consulting cache when available.
func (s *Coordinator) Get(ctx context.Context, actor identity.Context, orderID int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "EscrowCoordinator.Get", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	if order, err := s.getFromCache(ctx, orderID); err == nil {
		return s.authorizeRead(actor, order)
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.Int64("id", orderID), zap.Error(err))
	}

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		span.SetStatus(codes.Error, "load failed")
		return nil, err
	}

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", orderID), zap.Error(err))
	}

	return s.authorizeRead(actor, order)
}

// SellerBalance reconciles one seller's released, refunded, and held totals.
func (s *Coordinator) SellerBalance(ctx context.Context, actor identity.Context) (orderrepo.Balance, error) {
	ctx, span := serviceTracer.Start(ctx, "EscrowCoordinator.SellerBalance", trace.WithAttributes(attribute.Int64("seller.id", actor.PartyID)))
	defer span.End()

	if actor.Role != identity.RoleSeller && !actor.Admin() {
		return orderrepo.Balance{}, errorbank.Forbidden("only sellers have a balance")
	}

	balance, err := s.orders.SellerBalance(ctx, actor.PartyID)
	if err != nil {
		span.RecordError(err)
		return orderrepo.Balance{}, errorbank.Internal("failed to reconcile balance", errorbank.WithCause(err))
	}
	return balance, nil
}

func (s *Coordinator) authorizeRead(actor identity.Context, order *entity.Order) (*entity.Order, error) {
	if !order.PartyOnOrder(actor.PartyID) && !actor.Admin() {
		return nil, errorbank.Forbidden("caller is not a party to this order")
	}
	return order, nil
}

func (s *Coordinator) loadOrder(ctx context.Context, orderID int64) (*entity.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	return order, nil
}

func (s *Coordinator) invalidState(ctx context.Context, orderID int64, message string) error {
	current, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return errorbank.Internal("failed to reload order", errorbank.WithCause(err))
	}
	return errorbank.InvalidState(message,
		errorbank.WithDetail("status", string(current.Status)),
		errorbank.WithDetail("escrow_status", string(current.Escrow)))
}

func (s *Coordinator) cacheKey(id int64) string {
	return fmt.Sprintf("orders:%d", id)
}

func (s *Coordinator) getFromCache(ctx context.Context, id int64) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, s.cacheKey(id))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(bytes, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Coordinator) storeInCache(ctx context.Context, order *entity.Order) error {
	if s.cache == nil || order == nil {
		return nil
	}
	bytes, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.cacheKey(order.ID), bytes, s.cacheTTL)
}

func (s *Coordinator) dropFromCache(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cacheKey(id)); err != nil {
		s.logger.Warn("orders cache invalidation failed", zap.Int64("id", id), zap.Error(err))
	}
}
