package adapters

import (
	"strings"

	gatewaydomain "github.com/vendora/refundcore/internal/gateway/domain"
	recondomain "github.com/vendora/refundcore/internal/reconciliation/domain"
)

// Registry holds the configured refund gateways and their webhook adapters.
type Registry struct {
	gateways map[recondomain.Gateway]gatewaydomain.RefundGateway
	webhooks map[recondomain.Gateway]gatewaydomain.WebhookAdapter
}

func NewRegistry(gateways ...gatewaydomain.RefundGateway) *Registry {
	r := &Registry{
		gateways: make(map[recondomain.Gateway]gatewaydomain.RefundGateway),
		webhooks: make(map[recondomain.Gateway]gatewaydomain.WebhookAdapter),
	}
	for _, g := range gateways {
		r.Register(g)
	}
	return r
}

// Register adds a gateway. Gateways that also receive webhooks implement
// WebhookAdapter and are picked up for ingestion automatically.
func (r *Registry) Register(g gatewaydomain.RefundGateway) {
	if g == nil {
		return
	}
	r.gateways[g.Name()] = g
	if wh, ok := g.(gatewaydomain.WebhookAdapter); ok {
		r.webhooks[g.Name()] = wh
	}
}

func (r *Registry) Gateway(name recondomain.Gateway) (gatewaydomain.RefundGateway, error) {
	g, ok := r.gateways[name]
	if !ok {
		return nil, gatewaydomain.ErrGatewayNotFound
	}
	return g, nil
}

func (r *Registry) Webhook(provider string) (gatewaydomain.WebhookAdapter, error) {
	name := recondomain.Gateway(strings.ToLower(strings.TrimSpace(provider)))
	wh, ok := r.webhooks[name]
	if !ok {
		return nil, gatewaydomain.ErrGatewayNotFound
	}
	return wh, nil
}

func (r *Registry) ProviderExists(provider string) bool {
	_, err := r.Webhook(provider)
	return err == nil
}
