package escrow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Vesta-Code/vesta/internal/clock"
	"github.com/Vesta-Code/vesta/internal/config"
	"github.com/Vesta-Code/vesta/internal/entity"
	"github.com/Vesta-Code/vesta/internal/gateway/payment"
	"github.com/Vesta-Code/vesta/internal/identity"
	campaignrepo "github.com/Vesta-Code/vesta/internal/repository/campaign"
	orderrepo "github.com/Vesta-Code/vesta/internal/repository/order"
	productrepo "github.com/Vesta-Code/vesta/internal/repository/product"
	"github.com/Vesta-Code/vesta/internal/token"
	"github.com/Vesta-Code/vesta/pkg/errorbank"
)

var testInstant = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// memLedger mirrors the order repository's conditional-update semantics in
// memory so lifecycle races and idempotency can be exercised without a
// database.
type memLedger struct {
	mu     sync.Mutex
	nextID int64
	orders map[int64]*entity.Order
}

func newMemLedger() *memLedger {
	return &memLedger{nextID: 1, orders: map[int64]*entity.Order{}}
}

func (m *memLedger) Create(_ context.Context, order *entity.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order.ID = m.nextID
	m.nextID++
	cp := *order
	m.orders[order.ID] = &cp
	return nil
}

func (m *memLedger) GetByID(_ context.Context, id int64) (*entity.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, orderrepo.ErrNotFound
	}
	cp := *order
	return &cp, nil
}

func (m *memLedger) GetByReference(_ context.Context, reference string) (*entity.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, order := range m.orders {
		if order.Reference == reference {
			cp := *order
			return &cp, nil
		}
	}
	return nil, orderrepo.ErrNotFound
}

func (m *memLedger) MarkPaid(_ context.Context, orderID int64, proofToken string, paidAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok || order.Escrow != entity.EscrowPending || order.Status != entity.OrderPending {
		return 0, nil
	}
	order.Escrow = entity.EscrowHeld
	order.Status = entity.OrderPaid
	order.ProofToken = proofToken
	order.PaidAt = &paidAt
	order.UpdatedAt = paidAt
	return 1, nil
}

func (m *memLedger) ReleaseEscrow(_ context.Context, orderID int64, deliveredAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok || order.Escrow != entity.EscrowHeld {
		return 0, nil
	}
	order.Escrow = entity.EscrowReleased
	order.Status = entity.OrderCompleted
	order.DeliveredAt = &deliveredAt
	order.UpdatedAt = deliveredAt
	return 1, nil
}

func (m *memLedger) RefundEscrow(_ context.Context, orderID int64, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok || order.Escrow != entity.EscrowHeld {
		return 0, nil
	}
	order.Escrow = entity.EscrowRefunded
	order.Status = entity.OrderCancelled
	order.UpdatedAt = at
	return 1, nil
}

func (m *memLedger) UpdateStatus(_ context.Context, orderID int64, to entity.OrderStatus, at time.Time, from ...entity.OrderStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return 0, nil
	}
	matched := len(from) == 0
	for _, f := range from {
		if order.Status == f {
			matched = true
			break
		}
	}
	if !matched {
		return 0, nil
	}
	order.Status = to
	order.UpdatedAt = at
	return 1, nil
}

func (m *memLedger) MarkPickedUp(_ context.Context, orderID int64, releaseKey string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok || order.Status != entity.OrderReady {
		return 0, nil
	}
	order.Status = entity.OrderPickedUp
	order.ReleaseKey = releaseKey
	order.UpdatedAt = at
	return 1, nil
}

func (m *memLedger) SellerBalance(_ context.Context, sellerID int64) (orderrepo.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var balance orderrepo.Balance
	for _, order := range m.orders {
		if order.SellerID != sellerID {
			continue
		}
		switch order.Escrow {
		case entity.EscrowReleased:
			balance.ReleasedTotal += order.Amount
		case entity.EscrowRefunded:
			balance.RefundedTotal += order.Amount
		case entity.EscrowHeld:
			balance.HeldTotal += order.Amount
		}
	}
	return balance, nil
}

// memInventory applies the bounded-increment reservation rule in memory.
type memInventory struct {
	mu       sync.Mutex
	campaign *entity.DiscountCampaign
}

func (m *memInventory) GetLiveByProduct(_ context.Context, productID int64, now time.Time) (*entity.DiscountCampaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.campaign
	if c == nil || c.ProductID != productID || !c.Live(now) || c.Exhausted() {
		return nil, campaignrepo.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memInventory) Reserve(_ context.Context, campaignID int64, quantity int, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.campaign
	if c == nil || c.ID != campaignID || !c.Live(now) {
		return 0, nil
	}
	if c.StockConsumed+quantity > c.StockLimit {
		return 0, nil
	}
	c.StockConsumed += quantity
	return 1, nil
}

type memCatalog struct {
	products map[int64]*entity.Product
}

func (m *memCatalog) GetByID(_ context.Context, id int64) (*entity.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, productrepo.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

type memMissions struct {
	mu       sync.Mutex
	missions map[int64]*entity.Mission
}

func (m *memMissions) Create(_ context.Context, mission *entity.Mission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.missions == nil {
		m.missions = map[int64]*entity.Mission{}
	}
	m.missions[mission.OrderID] = mission
	return nil
}

func (m *memMissions) UpdateStatus(_ context.Context, orderID int64, to entity.MissionStatus, _ time.Time, from ...entity.MissionStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mission, ok := m.missions[orderID]
	if !ok {
		return 0, nil
	}
	matched := len(from) == 0
	for _, f := range from {
		if mission.Status == f {
			matched = true
			break
		}
	}
	if !matched {
		return 0, nil
	}
	mission.Status = to
	return 1, nil
}

type stubVerifier struct {
	mu    sync.Mutex
	conf  payment.Confirmation
	err   error
	calls int
}

func (s *stubVerifier) Verify(context.Context, string) (payment.Confirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.conf, s.err
}

type stubReleaser struct {
	released []int64
}

func (s *stubReleaser) Release(_ context.Context, order *entity.Order) error {
	s.released = append(s.released, order.ID)
	return nil
}

type fixture struct {
	svc       *Coordinator
	ledger    *memLedger
	inventory *memInventory
	missions  *memMissions
	payments  *stubVerifier
	releaser  *stubReleaser
	codec     *token.Codec
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewFixed(testInstant)
	codec, err := token.NewCodec(config.Config{
		Escrow: config.Escrow{TokenSecret: "test-secret", TokenTTL: 24 * time.Hour},
	}, clk)
	require.NoError(t, err)

	f := &fixture{
		ledger: newMemLedger(),
		inventory: &memInventory{campaign: &entity.DiscountCampaign{
			ID:              1,
			ProductID:       1,
			OriginalPrice:   2000,
			DiscountedPrice: 1500,
			StockLimit:      2,
			Active:          true,
			StartsAt:        testInstant.Add(-time.Hour),
			EndsAt:          testInstant.Add(time.Hour),
		}},
		missions: &memMissions{},
		payments: &stubVerifier{conf: payment.Confirmation{Paid: true, AmountCaptured: -1}},
		releaser: &stubReleaser{},
		codec:    codec,
	}

	f.svc = &Coordinator{
		orders:    f.ledger,
		inventory: f.inventory,
		products: &memCatalog{products: map[int64]*entity.Product{
			1: {ID: 1, SellerID: 101, Title: "Ceramic pour-over set", BasePrice: 2000, Available: true},
		}},
		missions:  f.missions,
		tokens:    codec,
		payments:  f.payments,
		broker:    f.releaser,
		logger:    zap.NewNop(),
		clock:     clk,
		inTx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return fn(ctx)
		},
	}
	return f
}

var (
	buyer   = identity.Context{PartyID: 11, Role: identity.RoleBuyer}
	seller  = identity.Context{PartyID: 101, Role: identity.RoleSeller}
	courier = identity.Context{PartyID: 301, Role: identity.RoleCourier}
)

func checkout(t *testing.T, f *fixture, fulfillment entity.Fulfillment) *entity.Order {
	t.Helper()
	res, err := f.svc.Checkout(context.Background(), buyer, CheckoutInput{
		ProductID:   1,
		Quantity:    1,
		Fulfillment: fulfillment,
	})
	require.NoError(t, err)
	return res.Order
}

func confirm(t *testing.T, f *fixture, order *entity.Order) *entity.Order {
	t.Helper()
	paid, err := f.svc.ConfirmPayment(context.Background(), order.Reference)
	require.NoError(t, err)
	return paid
}

func TestCheckoutAppliesCampaignPrice(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Checkout(context.Background(), buyer, CheckoutInput{
		ProductID:   1,
		Quantity:    1,
		Fulfillment: entity.FulfillmentDelivery,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1500), res.Order.Amount)
	assert.True(t, res.CampaignApplied)
	require.NotNil(t, res.Order.CampaignID)
	assert.Equal(t, entity.OrderPending, res.Order.Status)
	assert.Equal(t, entity.EscrowPending, res.Order.Escrow)
	assert.NotEmpty(t, res.Order.Reference)
	assert.Equal(t, 1, f.inventory.campaign.StockConsumed)
}

func TestCheckoutFallsBackWhenStockExhausted(t *testing.T) {
	f := newFixture(t)
	f.inventory.campaign.StockConsumed = 2

	res, err := f.svc.Checkout(context.Background(), buyer, CheckoutInput{
		ProductID:   1,
		Quantity:    1,
		Fulfillment: entity.FulfillmentDelivery,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2000), res.Order.Amount)
	assert.False(t, res.CampaignApplied)
	assert.Nil(t, res.Order.CampaignID)
}

func TestCheckoutPartialStockFallsBack(t *testing.T) {
	f := newFixture(t)
	f.inventory.campaign.StockConsumed = 1

	// Two units requested with one discounted unit left: the reservation is
	// all-or-nothing, so the whole order falls back to the base price.
	res, err := f.svc.Checkout(context.Background(), buyer, CheckoutInput{
		ProductID:   1,
		Quantity:    2,
		Fulfillment: entity.FulfillmentPickup,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(4000), res.Order.Amount)
	assert.False(t, res.CampaignApplied)
	assert.Equal(t, 1, f.inventory.campaign.StockConsumed)
}

func TestCheckoutWithoutCampaign(t *testing.T) {
	f := newFixture(t)
	f.inventory.campaign = nil

	res, err := f.svc.Checkout(context.Background(), buyer, CheckoutInput{
		ProductID:   1,
		Quantity:    3,
		Fulfillment: entity.FulfillmentPickup,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(6000), res.Order.Amount)
	assert.False(t, res.CampaignApplied)
}

func TestCheckoutStockNeverOversold(t *testing.T) {
	f := newFixture(t)
	f.inventory.campaign.StockLimit = 5

	const buyers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	discounted := 0

	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.Checkout(context.Background(), buyer, CheckoutInput{
				ProductID:   1,
				Quantity:    1,
				Fulfillment: entity.FulfillmentPickup,
			})
			if err != nil {
				t.Errorf("checkout failed: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if res.CampaignApplied {
				discounted++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, discounted)
	assert.Equal(t, 5, f.inventory.campaign.StockConsumed)
}

func TestCheckoutValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Checkout(ctx, seller, CheckoutInput{ProductID: 1, Quantity: 1, Fulfillment: entity.FulfillmentPickup})
	assert.True(t, errorbank.IsKind(err, errorbank.KindForbidden))

	_, err = f.svc.Checkout(ctx, buyer, CheckoutInput{ProductID: 1, Quantity: 0, Fulfillment: entity.FulfillmentPickup})
	assert.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))

	_, err = f.svc.Checkout(ctx, buyer, CheckoutInput{ProductID: 1, Quantity: 1, Fulfillment: "drone"})
	assert.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))

	_, err = f.svc.Checkout(ctx, buyer, CheckoutInput{ProductID: 99, Quantity: 1, Fulfillment: entity.FulfillmentPickup})
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))
}

func TestConfirmPaymentOpensEscrow(t *testing.T) {
	f := newFixture(t)
	order := checkout(t, f, entity.FulfillmentDelivery)

	paid := confirm(t, f, order)

	assert.Equal(t, entity.EscrowHeld, paid.Escrow)
	assert.Equal(t, entity.OrderPaid, paid.Status)
	assert.NotEmpty(t, paid.ProofToken)
	require.NotNil(t, paid.PaidAt)

	payload := f.codec.Verify(paid.ProofToken)
	require.NotNil(t, payload)
	assert.Equal(t, paid.ID, payload.OrderID)
	assert.Equal(t, paid.Amount, payload.Amount)
	assert.Equal(t, paid.SellerID, payload.SellerID)
	assert.Equal(t, paid.BuyerID, payload.BuyerID)
}

func TestConfirmPaymentIdempotent(t *testing.T) {
	f := newFixture(t)
	order := checkout(t, f, entity.FulfillmentDelivery)

	first := confirm(t, f, order)
	second := confirm(t, f, order)

	assert.Equal(t, first.ProofToken, second.ProofToken)
	assert.Equal(t, entity.EscrowHeld, second.Escrow)
	// The second confirmation short-circuits before touching the provider.
	assert.Equal(t, 1, f.payments.calls)
}

func TestConfirmPaymentRejectsCancelledOrder(t *testing.T) {
	f := newFixture(t)
	order := checkout(t, f, entity.FulfillmentDelivery)

	_, err := f.svc.Cancel(context.Background(), buyer, order.ID)
	require.NoError(t, err)

	// A late provider confirmation for the cancelled order must not re-open
	// it or capture funds.
	_, err = f.svc.ConfirmPayment(context.Background(), order.Reference)
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidState))
	assert.Zero(t, f.payments.calls)

	stored, getErr := f.ledger.GetByID(context.Background(), order.ID)
	require.NoError(t, getErr)
	assert.Equal(t, entity.OrderCancelled, stored.Status)
	assert.Equal(t, entity.EscrowPending, stored.Escrow)
	assert.Empty(t, stored.ProofToken)
}

func TestConfirmPaymentAmountMismatch(t *testing.T) {
	f := newFixture(t)
	order := checkout(t, f, entity.FulfillmentDelivery)
	f.payments.conf = payment.Confirmation{Paid: true, AmountCaptured: order.Amount + 1}

	_, err := f.svc.ConfirmPayment(context.Background(), order.Reference)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidState))

	stored, getErr := f.ledger.GetByID(context.Background(), order.ID)
	require.NoError(t, getErr)
	assert.Equal(t, entity.EscrowPending, stored.Escrow)
}

func TestConfirmPaymentProviderFailures(t *testing.T) {
	f := newFixture(t)
	order := checkout(t, f, entity.FulfillmentDelivery)

	f.payments.conf = payment.Confirmation{Paid: false}
	_, err := f.svc.ConfirmPayment(context.Background(), order.Reference)
	assert.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))

	f.payments.err = errors.New("gateway timeout")
	_, err = f.svc.ConfirmPayment(context.Background(), order.Reference)
	assert.True(t, errorbank.IsKind(err, errorbank.KindExternal))

	_, err = f.svc.ConfirmPayment(context.Background(), "no-such-reference")
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))
}

func TestVerifyDeliveryReleasesEscrow(t *testing.T) {
	f := newFixture(t)
	order := checkout(t, f, entity.FulfillmentDelivery)
	paid := confirm(t, f, order)

	released, err := f.svc.VerifyDelivery(context.Background(), seller, paid.ProofToken)
	require.NoError(t, err)

	assert.Equal(t, entity.EscrowReleased, released.Escrow)
	assert.Equal(t, entity.OrderCompleted, released.Status)
	require.NotNil(t, released.DeliveredAt)

	balance, err := f.svc.SellerBalance(context.Background(), seller)
	require.NoError(t, err)
	assert.Equal(t, released.Amount, balance.ReleasedTotal)
	assert.Zero(t, balance.HeldTotal)
}

func TestVerifyDeliveryRejectsGarbage(t *testing.T) {
	f := newFixture(t)
	checkout(t, f, entity.FulfillmentDelivery)

	_, err := f.svc.VerifyDelivery(context.Background(), seller, "not-a-token")
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidState))
	assert.Equal(t, "EXPIRED", errorbank.From(err).Details()["reason"])
}

func TestVerifyDeliveryRejectsSupersededToken(t *testing.T) {
	f := newFixture(t)
	order := checkout(t, f, entity.FulfillmentDelivery)
	paid := confirm(t, f, order)

	// A parallel mint for the same order decrypts fine but is not the stored
	// token, so it must be refused as a mismatch.
	stale, err := f.codec.Mint(paid.ID, paid.Amount, paid.SellerID, paid.BuyerID)
	require.NoError(t, err)
	require.NotEqual(t, paid.ProofToken, stale)

	_, err = f.svc.VerifyDelivery(context.Background(), seller, stale)
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidState))
	assert.Equal(t, "MISMATCH", errorbank.From(err).Details()["reason"])
}

func TestVerifyDeliveryRejectsStrangers(t *testing.T) {
	f := newFixture(t)
	order := checkout(t, f, entity.FulfillmentDelivery)
	paid := confirm(t, f, order)

	stranger := identity.Context{PartyID: 999, Role: identity.RoleBuyer}
	_, err := f.svc.VerifyDelivery(context.Background(), stranger, paid.ProofToken)
	assert.True(t, errorbank.IsKind(err, errorbank.KindForbidden))
}

func TestVerifyDeliveryOnlyOnce(t *testing.T) {
	f := newFixture(t)
	order := checkout(t, f, entity.FulfillmentDelivery)
	paid := confirm(t, f, order)

	_, err := f.svc.VerifyDelivery(context.Background(), seller, paid.ProofToken)
	require.NoError(t, err)

	_, err = f.svc.VerifyDelivery(context.Background(), seller, paid.ProofToken)
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidState))
	assert.Equal(t, "WRONG_STATE", errorbank.From(err).Details()["reason"])
}

func TestPickupAndReleaseByKey(t *testing.T) {
	f := newFixture(t)
	order := checkout(t, f, entity.FulfillmentPickup)
	confirm(t, f, order)

	_, err := f.svc.MarkReady(context.Background(), seller, order.ID)
	require.NoError(t, err)

	res, err := f.svc.Pickup(context.Background(), seller, order.ID, "")
	require.NoError(t, err)
	assert.Equal(t, entity.OrderPickedUp, res.Order.Status)
	assert.Len(t, res.ReleaseKey, 6)

	m := f.missions.missions[order.ID]
	require.NotNil(t, m)
	assert.Equal(t, entity.MissionPickedUp, m.Status)

	wrongKey := "000000"
	if res.ReleaseKey == wrongKey {
		wrongKey = "000001"
	}
	_, err = f.svc.ReleaseByKey(context.Background(), seller, order.ID, wrongKey)
	assert.True(t, errorbank.IsKind(err, errorbank.KindForbidden))

	released, err := f.svc.ReleaseByKey(context.Background(), seller, order.ID, res.ReleaseKey)
	require.NoError(t, err)
	assert.Equal(t, entity.EscrowReleased, released.Escrow)
	assert.Equal(t, entity.MissionDelivered, f.missions.missions[order.ID].Status)
}

func TestPickupRequiresReadyState(t *testing.T) {
	f := newFixture(t)
	order := checkout(t, f, entity.FulfillmentPickup)
	confirm(t, f, order)

	_, err := f.svc.Pickup(context.Background(), seller, order.ID, "")
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidState))
}

func TestPickupCourierCodeHandshake(t *testing.T) {
	f := newFixture(t)
	order := checkout(t, f, entity.FulfillmentDelivery)
	confirm(t, f, order)
	_, err := f.svc.MarkReady(context.Background(), seller, order.ID)
	require.NoError(t, err)

	// Simulate a won claim.
	courierID := courier.PartyID
	f.ledger.mu.Lock()
	f.ledger.orders[order.ID].CourierID = &courierID
	f.ledger.orders[order.ID].PickupCode = "123456"
	f.ledger.mu.Unlock()
	require.NoError(t, f.missions.Create(context.Background(), &entity.Mission{
		OrderID: order.ID, CourierID: courierID, Status: entity.MissionAssigned,
	}))

	_, err = f.svc.Pickup(context.Background(), courier, order.ID, "999999")
	assert.True(t, errorbank.IsKind(err, errorbank.KindForbidden))

	other := identity.Context{PartyID: 302, Role: identity.RoleCourier}
	_, err = f.svc.Pickup(context.Background(), other, order.ID, "123456")
	assert.True(t, errorbank.IsKind(err, errorbank.KindForbidden))

	_, err = f.svc.Pickup(context.Background(), seller, order.ID, "")
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidState))

	res, err := f.svc.Pickup(context.Background(), courier, order.ID, "123456")
	require.NoError(t, err)
	assert.Equal(t, entity.OrderPickedUp, res.Order.Status)
	assert.Equal(t, entity.MissionPickedUp, f.missions.missions[order.ID].Status)
}

func TestCancelPendingOrder(t *testing.T) {
	f := newFixture(t)
	order := checkout(t, f, entity.FulfillmentDelivery)

	cancelled, err := f.svc.Cancel(context.Background(), buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderCancelled, cancelled.Status)
	assert.Equal(t, entity.EscrowPending, cancelled.Escrow)
	assert.Empty(t, f.releaser.released)
}

func TestCancelHeldEscrowRefunds(t *testing.T) {
	f := newFixture(t)
	order := checkout(t, f, entity.FulfillmentDelivery)
	confirm(t, f, order)

	cancelled, err := f.svc.Cancel(context.Background(), buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.EscrowRefunded, cancelled.Escrow)
	assert.Equal(t, entity.OrderCancelled, cancelled.Status)

	balance, err := f.svc.SellerBalance(context.Background(), seller)
	require.NoError(t, err)
	assert.Equal(t, cancelled.Amount, balance.RefundedTotal)
	assert.Zero(t, balance.HeldTotal)
}

func TestCancelReleasesClaimedCourier(t *testing.T) {
	f := newFixture(t)
	order := checkout(t, f, entity.FulfillmentDelivery)
	confirm(t, f, order)

	courierID := courier.PartyID
	f.ledger.mu.Lock()
	f.ledger.orders[order.ID].CourierID = &courierID
	f.ledger.mu.Unlock()

	_, err := f.svc.Cancel(context.Background(), buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{order.ID}, f.releaser.released)
}

func TestCancelGuards(t *testing.T) {
	f := newFixture(t)
	order := checkout(t, f, entity.FulfillmentDelivery)
	paid := confirm(t, f, order)

	_, err := f.svc.Cancel(context.Background(), seller, order.ID)
	assert.True(t, errorbank.IsKind(err, errorbank.KindForbidden))

	_, err = f.svc.VerifyDelivery(context.Background(), buyer, paid.ProofToken)
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), buyer, order.ID)
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidState))
}

func TestGetAuthorizesParties(t *testing.T) {
	f := newFixture(t)
	order := checkout(t, f, entity.FulfillmentDelivery)

	got, err := f.svc.Get(context.Background(), buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = f.svc.Get(context.Background(), seller, order.ID)
	require.NoError(t, err)

	stranger := identity.Context{PartyID: 777, Role: identity.RoleBuyer}
	_, err = f.svc.Get(context.Background(), stranger, order.ID)
	assert.True(t, errorbank.IsKind(err, errorbank.KindForbidden))

	admin := identity.Context{PartyID: 1, Role: identity.RoleAdmin}
	_, err = f.svc.Get(context.Background(), admin, order.ID)
	require.NoError(t, err)
}

func TestSellerBalanceRequiresSeller(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SellerBalance(context.Background(), buyer)
	assert.True(t, errorbank.IsKind(err, errorbank.KindForbidden))
}
