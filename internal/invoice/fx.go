package invoice

import (
	"github.com/smallbiznis/quickinvoice/internal/invoice/render"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice",
	fx.Provide(render.NewHTMLRenderer),
	fx.Provide(render.NewPDFRenderer),
)
