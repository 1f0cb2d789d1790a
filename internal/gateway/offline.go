package gateway

import (
	"context"

	"github.com/google/uuid"
)

// OfflineClient stands in for the processor when no API key is
// configured, for local development and self-hosted deployments.
type OfflineClient struct{}

func NewOfflineClient() *OfflineClient {
	return &OfflineClient{}
}

func (c *OfflineClient) Charge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	_ = ctx
	return &Charge{ProviderTransactionID: "offline_" + uuid.NewString()}, nil
}

func (c *OfflineClient) Refund(ctx context.Context, req RefundRequest) (*Refund, error) {
	_ = ctx
	return &Refund{ProviderRefundID: "offline_re_" + uuid.NewString()}, nil
}
