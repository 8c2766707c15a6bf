package delivery

import (
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"

	"github.com/Vesta-Code/vesta/internal/dto"
	"github.com/Vesta-Code/vesta/internal/identity"
	"github.com/Vesta-Code/vesta/internal/presentation/http/response"
	"github.com/Vesta-Code/vesta/internal/service/escrow"
	"github.com/Vesta-Code/vesta/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Vesta-Code/vesta/transport/http/delivery")

// Handler exposes the delivery-proof verification endpoint.
type Handler struct {
	svc *escrow.Coordinator
}

// NewHandler constructs a delivery Handler.
func NewHandler(svc *escrow.Coordinator) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.POST("/delivery/verify", h.verify)
}

func (h *Handler) verify(c echo.Context) error {
	b := response.New(c)

	actor, err := identity.FromEcho(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload dto.DeliveryVerifyRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.Token == "" {
		return b.WithError(errorbank.BadRequest("token is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "delivery.verify")
	defer span.End()

	order, err := h.svc.VerifyDelivery(ctx, actor, payload.Token)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.DeliveryVerifyResponse{
		OrderID: order.ID,
		Escrow:  string(order.Escrow),
	}).Build()
}
