package mission

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Vesta-Code/vesta/internal/dto"
	"github.com/Vesta-Code/vesta/internal/identity"
	"github.com/Vesta-Code/vesta/internal/presentation/http/response"
	"github.com/Vesta-Code/vesta/internal/service/claim"
	"github.com/Vesta-Code/vesta/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Vesta-Code/vesta/transport/http/mission")

// Handler exposes the courier claim endpoint.
type Handler struct {
	broker *claim.Broker
}

// NewHandler constructs a mission Handler.
func NewHandler(broker *claim.Broker) *Handler {
	return &Handler{broker: broker}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.POST("/missions/:orderId/claim", h.claim)
}

func (h *Handler) claim(c echo.Context) error {
	b := response.New(c)

	actor, err := identity.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	orderID, err := strconv.ParseInt(c.Param("orderId"), 10, 64)
	if err != nil || orderID <= 0 {
		return b.WithError(errorbank.BadRequest("invalid order id")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "missions.claim", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
	))
	defer span.End()

	code, err := h.broker.Claim(ctx, actor, orderID)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.ClaimResponse{PickupCode: code}).Build()
}
