package refund

import (
	"github.com/vendora/refundcore/internal/refund/repository"
	"github.com/vendora/refundcore/internal/refund/service"
	"go.uber.org/fx"
)

var Module = fx.Module("refund.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
