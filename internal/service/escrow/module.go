package escrow

import "go.uber.org/fx"

// Module provides the escrow coordinator to Fx.
var Module = fx.Provide(NewCoordinator)
