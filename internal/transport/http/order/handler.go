package order

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Vesta-Code/vesta/internal/dto"
	"github.com/Vesta-Code/vesta/internal/entity"
	"github.com/Vesta-Code/vesta/internal/identity"
	"github.com/Vesta-Code/vesta/internal/presentation/http/response"
	"github.com/Vesta-Code/vesta/internal/service/escrow"
	"github.com/Vesta-Code/vesta/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Vesta-Code/vesta/transport/http/order")

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc *escrow.Coordinator
}

// NewHandler constructs an order Handler.
func NewHandler(svc *escrow.Coordinator) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.POST("", h.checkout)
	g.GET("/:id", h.getByID)
	g.POST("/:id/cancel", h.cancel)
	g.POST("/:id/ready", h.markReady)
	g.POST("/:id/pickup", h.pickup)
	g.POST("/:id/release-key", h.releaseByKey)

	e.GET("/sellers/balance", h.sellerBalance)
}

func (h *Handler) checkout(c echo.Context) error {
	b := response.New(c)

	actor, err := identity.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload dto.CheckoutRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.checkout", trace.WithAttributes(
		attribute.Int64("product.id", payload.ProductID),
	))
	defer span.End()

	result, err := h.svc.Checkout(ctx, actor, escrow.CheckoutInput{
		ProductID:   payload.ProductID,
		Quantity:    payload.Quantity,
		Fulfillment: entity.Fulfillment(payload.Fulfillment),
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(dto.CheckoutResponse{
		OrderID:         result.Order.ID,
		Reference:       result.Order.Reference,
		TotalAmount:     result.Order.Amount,
		ProductTitle:    result.ProductTitle,
		CampaignApplied: result.CampaignApplied,
	}).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	actor, err := identity.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := orderID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Get(ctx, actor, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) cancel(c echo.Context) error {
	b := response.New(c)

	actor, err := identity.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := orderID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.cancel", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Cancel(ctx, actor, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.CancelResponse{
		Status: string(order.Status),
		Escrow: string(order.Escrow),
	}).Build()
}

func (h *Handler) markReady(c echo.Context) error {
	b := response.New(c)

	actor, err := identity.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := orderID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.markReady", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.MarkReady(ctx, actor, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) pickup(c echo.Context) error {
	b := response.New(c)

	actor, err := identity.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := orderID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload dto.PickupRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.pickup", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	result, err := h.svc.Pickup(ctx, actor, id, payload.Code)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.PickupResponse{
		OrderID:    result.Order.ID,
		Status:     string(result.Order.Status),
		ReleaseKey: result.ReleaseKey,
	}).Build()
}

func (h *Handler) releaseByKey(c echo.Context) error {
	b := response.New(c)

	actor, err := identity.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := orderID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload dto.ReleaseKeyRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.releaseByKey", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.ReleaseByKey(ctx, actor, id, payload.Key)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.DeliveryVerifyResponse{
		OrderID: order.ID,
		Escrow:  string(order.Escrow),
	}).Build()
}

func (h *Handler) sellerBalance(c echo.Context) error {
	b := response.New(c)

	actor, err := identity.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "sellers.balance")
	defer span.End()

	balance, err := h.svc.SellerBalance(ctx, actor)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.BalanceResponse{
		ReleasedTotal: balance.ReleasedTotal,
		RefundedTotal: balance.RefundedTotal,
		HeldTotal:     balance.HeldTotal,
	}).Build()
}

func orderID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.BadRequest("invalid order id")
	}
	return id, nil
}
