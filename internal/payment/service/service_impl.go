package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/drivelane/paycore/internal/audit/domain"
	"github.com/drivelane/paycore/internal/clock"
	"github.com/drivelane/paycore/internal/config"
	frauddomain "github.com/drivelane/paycore/internal/fraud/domain"
	"github.com/drivelane/paycore/internal/gateway"
	obsmetrics "github.com/drivelane/paycore/internal/observability/metrics"
	paymentdomain "github.com/drivelane/paycore/internal/payment/domain"
	"github.com/drivelane/paycore/internal/signals"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Decision gate: all indicators are computed first, then the request
// is rejected when either bound is crossed.
const (
	rejectScoreThreshold = 50
	rejectIndicatorCount = 2
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	FraudCfg   *config.FraudConfigHolder
	FraudSvc   frauddomain.Service
	AuditSvc   auditdomain.Service
	Gateway    gateway.Client
	Signals    *signals.Service
	Repo       paymentdomain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	fraudCfg   *config.FraudConfigHolder
	fraudSvc   frauddomain.Service
	auditSvc   auditdomain.Service
	gateway    gateway.Client
	signals    *signals.Service
	repo       paymentdomain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		fraudCfg:   p.FraudCfg,
		fraudSvc:   p.FraudSvc,
		auditSvc:   p.AuditSvc,
		gateway:    p.Gateway,
		signals:    p.Signals,
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) ProcessPayment(ctx context.Context, req paymentdomain.ProcessPaymentRequest) (*paymentdomain.PaymentResult, error) {
	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	assessment := s.fraudSvc.Analyze(ctx, s.buildAttributes(ctx, req))

	// No short-circuiting: the full indicator set is known before the
	// accept/reject decision is made.
	rejected := assessment.Degraded ||
		assessment.Score >= rejectScoreThreshold ||
		len(assessment.Indicators) >= rejectIndicatorCount

	if rejected {
		s.recordRejection(ctx, req, assessment)
		s.obsMetrics.RecordPayment(ctx, "rejected")
		s.obsMetrics.RecordFraudRejection(ctx, string(assessment.Level))

		indicators := assessment.Indicators.Names()
		if assessment.Degraded {
			indicators = []string{"risk_analysis_degraded"}
		}
		return nil, &paymentdomain.FraudRejectedError{
			Score:      assessment.Score,
			Level:      string(assessment.Level),
			Indicators: indicators,
		}
	}

	charge, err := s.gateway.Charge(ctx, gateway.ChargeRequest{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: fmt.Sprintf("booking %s", req.BookingID),
		Email:       req.Email,
	})
	if err != nil {
		s.obsMetrics.RecordPayment(ctx, "failed")
		return nil, &paymentdomain.ProcessingError{Cause: err}
	}

	now := s.clock.Now()
	payment := &paymentdomain.Payment{
		ID:                   s.genID.Generate(),
		UserID:               req.UserID,
		Amount:               req.Amount,
		Currency:             strings.ToUpper(req.Currency),
		Method:               req.Method,
		Status:               paymentdomain.StatusCompleted,
		GatewayTransactionID: &charge.ProviderTransactionID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if req.BookingID != 0 {
		bookingID := req.BookingID
		payment.BookingID = &bookingID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.CreatePayment(ctx, tx, payment); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		if req.BookingID != 0 {
			rows, err := s.repo.MarkBookingPaid(ctx, tx, req.BookingID)
			if err != nil {
				return fmt.Errorf("mark booking paid: %w", err)
			}
			if rows == 0 {
				return fmt.Errorf("booking %s not found", req.BookingID)
			}
		}

		entry := &paymentdomain.TransactionLog{
			ID:          s.genID.Generate(),
			PaymentID:   payment.ID,
			UserID:      req.UserID,
			Amount:      req.Amount,
			Currency:    payment.Currency,
			Status:      paymentdomain.StatusCompleted,
			Type:        paymentdomain.LogTypePayment,
			Description: fmt.Sprintf("payment for booking %s via %s", req.BookingID, req.Method),
			CreatedAt:   now,
		}
		if err := s.repo.AppendTransactionLog(ctx, tx, entry); err != nil {
			return fmt.Errorf("append transaction log: %w", err)
		}
		return nil
	})
	if err != nil {
		// The gateway charge went through but no local record exists.
		// Flag it so operators can void or re-record the charge.
		s.log.Error("payment transaction rolled back after gateway charge",
			zap.String("user_id", req.UserID),
			zap.String("gateway_transaction_id", charge.ProviderTransactionID),
			zap.Error(err),
		)
		s.recordReconciliation(ctx, req, charge.ProviderTransactionID, err)
		s.obsMetrics.RecordPayment(ctx, "failed")
		return nil, &paymentdomain.ProcessingError{Cause: err}
	}

	s.recordSuccess(ctx, req, payment)
	s.obsMetrics.RecordPayment(ctx, "success")

	return &paymentdomain.PaymentResult{
		Status:    "success",
		PaymentID: payment.ID,
		Message:   "payment processed",
	}, nil
}

func (s *Service) GetPayment(ctx context.Context, id snowflake.ID) (*paymentdomain.Payment, error) {
	payment, err := s.repo.FindPayment(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, paymentdomain.ErrPaymentNotFound
	}
	return payment, nil
}

func validateRequest(req *paymentdomain.ProcessPaymentRequest) error {
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return fmt.Errorf("%w: user_id is required", paymentdomain.ErrInvalidPaymentData)
	}
	if req.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", paymentdomain.ErrInvalidPaymentData)
	}
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if len(req.Currency) != 3 {
		return fmt.Errorf("%w: currency must be a 3-letter code", paymentdomain.ErrInvalidPaymentData)
	}
	req.Method = strings.TrimSpace(req.Method)
	if req.Method == "" {
		return fmt.Errorf("%w: method is required", paymentdomain.ErrInvalidPaymentData)
	}
	return nil
}

// bookingMetadata renders a booking reference for audit records. It is
// empty when no booking is attached so the audit layer stores NULL
// instead of a literal "0".
func bookingMetadata(id snowflake.ID) string {
	if id == 0 {
		return ""
	}
	return id.String()
}

// buildAttributes assembles the scorer input, enriching the caller's
// fields with store-derived signals. Enrichment is best effort: a
// failing lookup logs and leaves the signal at its zero value rather
// than blocking the payment path.
func (s *Service) buildAttributes(ctx context.Context, req paymentdomain.ProcessPaymentRequest) frauddomain.Attributes {
	attrs := frauddomain.Attributes{
		Amount:           req.Amount,
		Currency:         req.Currency,
		UserID:           req.UserID,
		BookingID:        req.BookingID.String(),
		AttemptCount:     req.AttemptCount,
		Location:         req.Location,
		ExpectedLocation: req.ExpectedLocation,
		BillingCountry:   req.BillingCountry,
		ShippingCountry:  req.ShippingCountry,
		CardCountry:      req.CardCountry,
		UserCountry:      req.UserCountry,
		MinutesSinceLast: req.MinutesSinceLast,
		IPIsProxy:        req.IPIsProxy,
		DeviceChanged:    req.DeviceChanged,
		Email:            req.Email,
		IPAddress:        req.IPAddress,
	}

	window := time.Duration(s.fraudCfg.Get().Rules.VelocityWindowMinutes) * time.Minute
	recent, err := s.signals.RecentAttempts(ctx, req.UserID, window)
	if err != nil {
		s.log.Warn("velocity lookup failed", zap.String("user_id", req.UserID), zap.Error(err))
	}
	attrs.RecentAttempts = recent

	attrs.IPReputation = s.signals.IPReputation(ctx, req.IPAddress)

	chargebacks, err := s.repo.CountChargebacks(ctx, s.db, req.UserID)
	if err != nil {
		s.log.Warn("chargeback lookup failed", zap.String("user_id", req.UserID), zap.Error(err))
	}
	attrs.PriorChargebacks = int(chargebacks)

	if attrs.MinutesSinceLast == nil {
		last, err := s.repo.LastPaymentAt(ctx, s.db, req.UserID)
		if err != nil {
			s.log.Warn("last payment lookup failed", zap.String("user_id", req.UserID), zap.Error(err))
		} else if last != nil {
			minutes := int(s.clock.Now().Sub(*last).Minutes())
			attrs.MinutesSinceLast = &minutes
		}
	}

	return attrs
}

func (s *Service) recordRejection(ctx context.Context, req paymentdomain.ProcessPaymentRequest, assessment frauddomain.Assessment) {
	err := s.auditSvc.Record(ctx, auditdomain.Event{
		Category:   auditdomain.CategorySecurity,
		Action:     "payment.fraud_rejected",
		ActorType:  auditdomain.ActorTypeCustomer,
		ActorID:    req.ActorID,
		TargetType: "booking",
		TargetID:   bookingMetadata(req.BookingID),
		IPAddress:  req.IPAddress,
		Metadata: map[string]any{
			"user_id":     req.UserID,
			"amount":      req.Amount,
			"currency":    req.Currency,
			"score":       assessment.Score,
			"level":       string(assessment.Level),
			"indicators":  assessment.Indicators.Names(),
			"degraded":    assessment.Degraded,
			"rejected_at": s.clock.Now().Format(time.RFC3339),
		},
	})
	if err != nil {
		s.log.Warn("failed to record fraud rejection audit event", zap.Error(err))
	}
}

// recordReconciliation flags a charge that succeeded at the gateway but
// never made it into the local store.
func (s *Service) recordReconciliation(ctx context.Context, req paymentdomain.ProcessPaymentRequest, providerTransactionID string, cause error) {
	err := s.auditSvc.Record(ctx, auditdomain.Event{
		Category:   auditdomain.CategoryPayment,
		Action:     "payment.reconciliation_required",
		ActorType:  auditdomain.ActorTypeSystem,
		TargetType: "gateway_transaction",
		TargetID:   providerTransactionID,
		IPAddress:  req.IPAddress,
		Metadata: map[string]any{
			"user_id":  req.UserID,
			"amount":   req.Amount,
			"currency": req.Currency,
			"error":    cause.Error(),
		},
	})
	if err != nil {
		s.log.Warn("failed to record reconciliation audit event", zap.Error(err))
	}
}

func (s *Service) recordSuccess(ctx context.Context, req paymentdomain.ProcessPaymentRequest, payment *paymentdomain.Payment) {
	paymentID := payment.ID.String()
	err := s.auditSvc.Record(ctx, auditdomain.Event{
		Category:   auditdomain.CategoryPayment,
		Action:     "payment.succeeded",
		ActorType:  auditdomain.ActorTypeCustomer,
		ActorID:    req.ActorID,
		TargetType: "payment",
		TargetID:   paymentID,
		IPAddress:  req.IPAddress,
		Metadata: map[string]any{
			"user_id":      req.UserID,
			"booking_id":   bookingMetadata(req.BookingID),
			"amount":       payment.Amount,
			"currency":     payment.Currency,
			"method":       payment.Method,
			"processed_at": payment.CreatedAt.Format(time.RFC3339),
		},
	})
	if err != nil {
		s.log.Warn("failed to record payment audit event", zap.Error(err))
	}
}
