package campaign

import "go.uber.org/fx"

// Module provides the campaign repository to Fx.
var Module = fx.Provide(NewRepository)
