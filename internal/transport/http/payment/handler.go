package payment

import (
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"

	"github.com/Vesta-Code/vesta/internal/dto"
	"github.com/Vesta-Code/vesta/internal/presentation/http/response"
	"github.com/Vesta-Code/vesta/internal/service/escrow"
	"github.com/Vesta-Code/vesta/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Vesta-Code/vesta/transport/http/payment")

// Handler exposes the payment-confirmation webhook endpoint. It carries no
// session identity: the provider reference is the credential, and the
// coordinator keeps the flow idempotent for duplicate callbacks.
type Handler struct {
	svc *escrow.Coordinator
}

// NewHandler constructs a payment Handler.
func NewHandler(svc *escrow.Coordinator) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.POST("/payments/verify", h.verify)
}

func (h *Handler) verify(c echo.Context) error {
	b := response.New(c)

	var payload dto.PaymentVerifyRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.Reference == "" {
		return b.WithError(errorbank.BadRequest("reference is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "payments.verify")
	defer span.End()

	order, err := h.svc.ConfirmPayment(ctx, payload.Reference)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.PaymentVerifyResponse{
		OrderID:    order.ID,
		Escrow:     string(order.Escrow),
		ProofToken: order.ProofToken,
	}).Build()
}
