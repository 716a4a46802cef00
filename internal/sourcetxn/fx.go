package sourcetxn

import "go.uber.org/fx"

var Module = fx.Module("sourcetxn",
	fx.Provide(NewLookup),
)
