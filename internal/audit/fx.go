package audit

import (
	"github.com/vendora/refundcore/internal/audit/repository"
	"github.com/vendora/refundcore/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
