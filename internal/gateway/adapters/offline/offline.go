package offline

import (
	"context"

	gatewaydomain "github.com/vendora/refundcore/internal/gateway/domain"
	recondomain "github.com/vendora/refundcore/internal/reconciliation/domain"
)

// Adapter settles refunds that move no money through an API: manual refunds
// an operator hands over directly, and bank transfers initiated outside the
// system. Both confirm synchronously; the transaction row is the record.
type Adapter struct {
	name recondomain.Gateway
}

func NewManual() *Adapter       { return &Adapter{name: recondomain.GatewayManual} }
func NewBankTransfer() *Adapter { return &Adapter{name: recondomain.GatewayBankTransfer} }

func (a *Adapter) Name() recondomain.Gateway { return a.name }

func (a *Adapter) Execute(_ context.Context, req gatewaydomain.ExecuteRequest) (*gatewaydomain.ExecuteResult, error) {
	return &gatewaydomain.ExecuteResult{
		Status:          recondomain.TransactionCompleted,
		GatewayRefundID: string(a.name) + ":" + req.Reference,
	}, nil
}
