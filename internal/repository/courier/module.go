package courier

import "go.uber.org/fx"

// Module provides the courier repository to Fx.
var Module = fx.Provide(NewRepository)
