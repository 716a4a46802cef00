package reconciliation

import (
	"github.com/vendora/refundcore/internal/reconciliation/repository"
	"github.com/vendora/refundcore/internal/reconciliation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reconciliation.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
