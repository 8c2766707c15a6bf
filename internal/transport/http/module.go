package http

import (
	"go.uber.org/fx"

	deliverytransport "github.com/Vesta-Code/vesta/internal/transport/http/delivery"
	missiontransport "github.com/Vesta-Code/vesta/internal/transport/http/mission"
	ordertransport "github.com/Vesta-Code/vesta/internal/transport/http/order"
	paymenttransport "github.com/Vesta-Code/vesta/internal/transport/http/payment"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	ordertransport.Module,
	paymenttransport.Module,
	deliverytransport.Module,
	missiontransport.Module,
)
