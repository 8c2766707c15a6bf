package app

import (
	"go.uber.org/fx"

	"github.com/Vesta-Code/vesta/internal/cache"
	"github.com/Vesta-Code/vesta/internal/clock"
	"github.com/Vesta-Code/vesta/internal/config"
	"github.com/Vesta-Code/vesta/internal/database"
	"github.com/Vesta-Code/vesta/internal/gateway/notify"
	"github.com/Vesta-Code/vesta/internal/gateway/payment"
	"github.com/Vesta-Code/vesta/internal/identity"
	"github.com/Vesta-Code/vesta/internal/logger"
	"github.com/Vesta-Code/vesta/internal/messaging"
	"github.com/Vesta-Code/vesta/internal/observability"
	repositorycampaign "github.com/Vesta-Code/vesta/internal/repository/campaign"
	repositorycourier "github.com/Vesta-Code/vesta/internal/repository/courier"
	repositorymission "github.com/Vesta-Code/vesta/internal/repository/mission"
	repositoryorder "github.com/Vesta-Code/vesta/internal/repository/order"
	repositoryproduct "github.com/Vesta-Code/vesta/internal/repository/product"
	httpserver "github.com/Vesta-Code/vesta/internal/server/http"
	serviceclaim "github.com/Vesta-Code/vesta/internal/service/claim"
	serviceescrow "github.com/Vesta-Code/vesta/internal/service/escrow"
	"github.com/Vesta-Code/vesta/internal/token"
	transporthttp "github.com/Vesta-Code/vesta/internal/transport/http"
	"github.com/Vesta-Code/vesta/internal/worker"
	workerorder "github.com/Vesta-Code/vesta/internal/worker/order"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	clock.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	identity.Module,
	token.Module,
	payment.Module,
	notify.Module,
	repositoryorder.Module,
	repositorycampaign.Module,
	repositoryproduct.Module,
	repositorycourier.Module,
	repositorymission.Module,
	serviceclaim.Module,
	serviceescrow.Module,
)

// HTTP wires the HTTP transport on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
