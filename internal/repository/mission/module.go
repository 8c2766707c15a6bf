package mission

import "go.uber.org/fx"

// Module provides the mission repository to Fx.
var Module = fx.Provide(NewRepository)
