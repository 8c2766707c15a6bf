package claim

import "go.uber.org/fx"

// Module provides the claim broker to Fx.
var Module = fx.Provide(NewBroker)
