package creditnote

import (
	"github.com/vendora/refundcore/internal/creditnote/repository"
	"github.com/vendora/refundcore/internal/creditnote/service"
	"go.uber.org/fx"
)

var Module = fx.Module("creditnote.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
