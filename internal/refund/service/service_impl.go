package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/drivelane/paycore/internal/audit/domain"
	"github.com/drivelane/paycore/internal/clock"
	"github.com/drivelane/paycore/internal/gateway"
	obsmetrics "github.com/drivelane/paycore/internal/observability/metrics"
	paymentdomain "github.com/drivelane/paycore/internal/payment/domain"
	"github.com/drivelane/paycore/internal/refund/domain"
	"github.com/drivelane/paycore/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Gateway     gateway.Client
	AuditSvc    auditdomain.Service
	PaymentRepo paymentdomain.Repository
	Repo        domain.Repository
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	gateway     gateway.Client
	auditSvc    auditdomain.Service
	paymentRepo paymentdomain.Repository
	repo        domain.Repository
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("refund.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		gateway:     p.Gateway,
		auditSvc:    p.AuditSvc,
		paymentRepo: p.PaymentRepo,
		repo:        p.Repo,
		obsMetrics:  p.ObsMetrics,
	}
}

func (s *Service) ProcessRefund(ctx context.Context, req domain.RefundRequest) (*domain.RefundResult, error) {
	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	payment, err := s.paymentRepo.FindPayment(ctx, s.db, req.PaymentID)
	if err != nil {
		return nil, &domain.ProcessingError{Cause: fmt.Errorf("load payment: %w", err)}
	}
	if payment == nil {
		return nil, paymentdomain.ErrPaymentNotFound
	}

	if payment.Status != paymentdomain.StatusCompleted {
		return nil, fmt.Errorf("%w: payment status is %s", domain.ErrRefundNotEligible, payment.Status)
	}
	if req.Amount == 0 {
		req.Amount = payment.Amount
	}
	if req.Amount > payment.Amount {
		return nil, fmt.Errorf("%w: refund amount %d exceeds payment amount %d",
			domain.ErrRefundNotEligible, req.Amount, payment.Amount)
	}

	// Claim the payment before touching the processor so two
	// concurrent refunds cannot both reach the gateway. The loser
	// matches zero rows and never leaves the building.
	rows, err := s.repo.MarkPaymentRefunded(ctx, s.db, payment.ID)
	if err != nil {
		return nil, &domain.ProcessingError{Cause: fmt.Errorf("mark payment refunded: %w", err)}
	}
	if rows == 0 {
		s.obsMetrics.RecordRefund(ctx, "not_eligible")
		return nil, fmt.Errorf("%w: payment already refunded", domain.ErrRefundNotEligible)
	}

	gatewayTxID := ""
	if payment.GatewayTransactionID != nil {
		gatewayTxID = *payment.GatewayTransactionID
	}
	gwRefund, err := s.gateway.Refund(ctx, gateway.RefundRequest{
		ProviderTransactionID: gatewayTxID,
		Amount:                req.Amount,
		Reason:                req.Reason,
	})
	if err != nil {
		if _, relErr := s.repo.ReleaseRefundClaim(ctx, s.db, payment.ID); relErr != nil {
			s.log.Error("failed to release refund claim",
				zap.String("payment_id", payment.ID.String()),
				zap.Error(relErr),
			)
			s.recordReconciliation(ctx, req, payment, "", relErr)
		}
		s.obsMetrics.RecordRefund(ctx, "failed")
		return nil, &domain.ProcessingError{Cause: err}
	}

	now := s.clock.Now()
	refund := &domain.Refund{
		ID:              s.genID.Generate(),
		PaymentID:       payment.ID,
		Amount:          req.Amount,
		Currency:        payment.Currency,
		Reason:          req.Reason,
		InitiatedBy:     req.InitiatedBy,
		Status:          domain.StatusRefunded,
		GatewayRefundID: &gwRefund.ProviderRefundID,
		CreatedAt:       now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.CreateRefund(ctx, tx, refund); err != nil {
			return fmt.Errorf("create refund: %w", err)
		}

		entry := &paymentdomain.TransactionLog{
			ID:          s.genID.Generate(),
			PaymentID:   payment.ID,
			UserID:      payment.UserID,
			Amount:      req.Amount,
			Currency:    payment.Currency,
			Status:      paymentdomain.StatusRefunded,
			Type:        paymentdomain.LogTypeRefund,
			Description: fmt.Sprintf("refund initiated by %s: %s", req.InitiatedBy, req.Reason),
			CreatedAt:   now,
		}
		if err := s.paymentRepo.AppendTransactionLog(ctx, tx, entry); err != nil {
			return fmt.Errorf("append transaction log: %w", err)
		}
		return nil
	})
	if err != nil {
		// The processor already moved the money. Keep the payment
		// marked refunded and flag the gap for manual reconciliation
		// instead of pretending nothing happened.
		s.log.Error("refund transaction rolled back after gateway refund",
			zap.String("payment_id", payment.ID.String()),
			zap.String("gateway_refund_id", gwRefund.ProviderRefundID),
			zap.Error(err),
		)
		s.recordReconciliation(ctx, req, payment, gwRefund.ProviderRefundID, err)
		s.obsMetrics.RecordRefund(ctx, "failed")
		if db.IsDuplicateKeyErr(err) {
			// The unique index on refunds.payment_id caught a refund
			// row the claim did not know about.
			err = fmt.Errorf("refund row already exists for payment %s: %w", payment.ID, err)
		}
		return nil, &domain.ProcessingError{Cause: err}
	}

	s.recordRefund(ctx, req, payment, refund)
	s.obsMetrics.RecordRefund(ctx, "success")

	return &domain.RefundResult{
		Status:   "success",
		RefundID: refund.ID,
		Amount:   refund.Amount,
		Message:  "refund processed",
	}, nil
}

func validateRequest(req *domain.RefundRequest) error {
	if req.PaymentID == 0 {
		return fmt.Errorf("%w: payment_id is required", domain.ErrInvalidRefundData)
	}
	if req.Amount < 0 {
		return fmt.Errorf("%w: amount must not be negative", domain.ErrInvalidRefundData)
	}
	req.Reason = strings.TrimSpace(req.Reason)
	switch req.InitiatedBy {
	case domain.InitiatedByAdmin, domain.InitiatedByCustomer:
	default:
		return fmt.Errorf("%w: initiated_by must be admin or customer", domain.ErrInvalidRefundData)
	}
	return nil
}

func (s *Service) recordRefund(ctx context.Context, req domain.RefundRequest, payment *paymentdomain.Payment, refund *domain.Refund) {
	actorType := auditdomain.ActorTypeCustomer
	if req.InitiatedBy == domain.InitiatedByAdmin {
		actorType = auditdomain.ActorTypeAdmin
	}
	err := s.auditSvc.Record(ctx, auditdomain.Event{
		Category:   auditdomain.CategoryRefund,
		Action:     "refund.succeeded",
		ActorType:  actorType,
		ActorID:    req.ActorID,
		TargetType: "payment",
		TargetID:   payment.ID.String(),
		IPAddress:  req.IPAddress,
		Metadata: map[string]any{
			"refund_id":    refund.ID.String(),
			"user_id":      payment.UserID,
			"amount":       refund.Amount,
			"currency":     refund.Currency,
			"reason":       refund.Reason,
			"initiated_by": string(refund.InitiatedBy),
			"refunded_at":  refund.CreatedAt.Format(time.RFC3339),
		},
	})
	if err != nil {
		s.log.Warn("failed to record refund audit event", zap.Error(err))
	}
}

// recordReconciliation flags a gateway refund whose local state did not
// stick so operators can repair the mismatch by hand.
func (s *Service) recordReconciliation(ctx context.Context, req domain.RefundRequest, payment *paymentdomain.Payment, providerRefundID string, cause error) {
	metadata := map[string]any{
		"user_id":  payment.UserID,
		"amount":   req.Amount,
		"currency": payment.Currency,
		"error":    cause.Error(),
	}
	if providerRefundID != "" {
		metadata["gateway_refund_id"] = providerRefundID
	}
	err := s.auditSvc.Record(ctx, auditdomain.Event{
		Category:   auditdomain.CategoryRefund,
		Action:     "refund.reconciliation_required",
		ActorType:  auditdomain.ActorTypeSystem,
		TargetType: "payment",
		TargetID:   payment.ID.String(),
		IPAddress:  req.IPAddress,
		Metadata:   metadata,
	})
	if err != nil {
		s.log.Warn("failed to record reconciliation audit event", zap.Error(err))
	}
}
