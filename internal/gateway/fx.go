package gateway

import (
	"github.com/vendora/refundcore/internal/config"
	"github.com/vendora/refundcore/internal/gateway/adapters"
	"github.com/vendora/refundcore/internal/gateway/adapters/offline"
	"github.com/vendora/refundcore/internal/gateway/adapters/paytm"
	"github.com/vendora/refundcore/internal/gateway/adapters/razorpay"
	"github.com/vendora/refundcore/internal/gateway/adapters/stripe"
	"github.com/vendora/refundcore/internal/gateway/executor"
	"github.com/vendora/refundcore/internal/gateway/service"
	"go.uber.org/fx"
)

var Module = fx.Module("gateway.service",
	fx.Provide(func(cfg config.Config) *adapters.Registry {
		return adapters.NewRegistry(
			stripe.NewAdapter(cfg.Stripe),
			razorpay.NewAdapter(cfg.Razorpay),
			paytm.NewAdapter(cfg.Paytm),
			offline.NewManual(),
			offline.NewBankTransfer(),
		)
	}),
	fx.Provide(executor.New),
	fx.Provide(service.NewService),
)
