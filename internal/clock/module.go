package clock

import "go.uber.org/fx"

// Module provides the system clock to Fx.
var Module = fx.Provide(NewSystem)
