package gateway

import "context"

// ChargeRequest describes a capture against the upstream processor.
// Amounts are minor units.
type ChargeRequest struct {
	Amount      int64
	Currency    string
	Description string
	Email       string
}

type Charge struct {
	ProviderTransactionID string
}

type RefundRequest struct {
	ProviderTransactionID string
	Amount                int64
	Reason                string
}

type Refund struct {
	ProviderRefundID string
}

// Client is the payment processor boundary. Orchestrators call it
// before opening their transactional scope; its failures surface as
// processing errors, never as partial writes.
type Client interface {
	Charge(ctx context.Context, req ChargeRequest) (*Charge, error)
	Refund(ctx context.Context, req RefundRequest) (*Refund, error)
}
