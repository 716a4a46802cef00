package executor

import (
	"context"
	"time"

	"github.com/vendora/refundcore/internal/config"
	"github.com/vendora/refundcore/internal/gateway/adapters"
	gatewaydomain "github.com/vendora/refundcore/internal/gateway/domain"
	recondomain "github.com/vendora/refundcore/internal/reconciliation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const maxBackoff = 2 * time.Minute

type Params struct {
	fx.In

	Log      *zap.Logger
	Cfg      config.Config
	Registry *adapters.Registry
}

// Executor runs single gateway attempts under the configured timeout and
// owns the retry budget. Callers drive the attempt loop themselves so each
// attempt leaves its own transaction row.
type Executor struct {
	log      *zap.Logger
	registry *adapters.Registry
	attempts int
	backoff  time.Duration
	timeout  time.Duration
}

func New(p Params) *Executor {
	attempts := p.Cfg.GatewayRetryAttempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := p.Cfg.GatewayRetryBackoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	timeout := p.Cfg.GatewayTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Executor{
		log:      p.Log.Named("gateway.executor"),
		registry: p.Registry,
		attempts: attempts,
		backoff:  backoff,
		timeout:  timeout,
	}
}

// Budget is the maximum number of attempts for one refund, transient
// failures included.
func (e *Executor) Budget() int { return e.attempts }

// ExecuteOnce runs exactly one attempt against the named gateway.
func (e *Executor) ExecuteOnce(
	ctx context.Context,
	name recondomain.Gateway,
	req gatewaydomain.ExecuteRequest,
) (*gatewaydomain.ExecuteResult, error) {
	gw, err := e.registry.Gateway(name)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	result, err := gw.Execute(callCtx, req)
	if err != nil {
		e.log.Warn("gateway attempt failed",
			zap.String("gateway", string(name)),
			zap.String("refund_reference", req.Reference),
			zap.Error(err),
		)
		return nil, err
	}
	return result, nil
}

// Wait sleeps the exponential backoff before the given attempt number.
func (e *Executor) Wait(ctx context.Context, attempt int) error {
	delay := e.backoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxBackoff {
			delay = maxBackoff
			break
		}
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
