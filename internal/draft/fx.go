package draft

import (
	"context"

	"github.com/smallbiznis/quickinvoice/internal/entitlement"
	"go.uber.org/fx"
)

var Module = fx.Module("draft",
	fx.Provide(func(s *entitlement.Service) Entitlements { return s }),
	fx.Provide(NewController),
	fx.Invoke(registerHooks),
)

func registerHooks(lc fx.Lifecycle, c *Controller) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			c.Start(ctx)
			return nil
		},
		OnStop: c.Stop,
	})
}
