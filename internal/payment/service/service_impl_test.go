package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/drivelane/paycore/internal/audit/domain"
	bookingdomain "github.com/drivelane/paycore/internal/booking/domain"
	"github.com/drivelane/paycore/internal/clock"
	"github.com/drivelane/paycore/internal/config"
	fraudservice "github.com/drivelane/paycore/internal/fraud/service"
	"github.com/drivelane/paycore/internal/gateway"
	paymentdomain "github.com/drivelane/paycore/internal/payment/domain"
	paymentrepo "github.com/drivelane/paycore/internal/payment/repository"
	"github.com/drivelane/paycore/internal/signals"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubGateway struct {
	chargeErr error
	charges   int
}

func (g *stubGateway) Charge(ctx context.Context, req gateway.ChargeRequest) (*gateway.Charge, error) {
	if g.chargeErr != nil {
		return nil, g.chargeErr
	}
	g.charges++
	return &gateway.Charge{ProviderTransactionID: "tx_test_1"}, nil
}

func (g *stubGateway) Refund(ctx context.Context, req gateway.RefundRequest) (*gateway.Refund, error) {
	return &gateway.Refund{ProviderRefundID: "re_test_1"}, nil
}

type stubAudit struct {
	events []auditdomain.Event
}

func (a *stubAudit) Record(ctx context.Context, event auditdomain.Event) error {
	a.events = append(a.events, event)
	return nil
}

func (a *stubAudit) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

// failingLogRepo makes the final write of the transactional scope fail
// so rollback behavior can be observed.
type failingLogRepo struct {
	paymentdomain.Repository
}

func (r *failingLogRepo) AppendTransactionLog(ctx context.Context, db *gorm.DB, entry *paymentdomain.TransactionLog) error {
	return errors.New("ledger unavailable")
}

type fixture struct {
	db      *gorm.DB
	svc     paymentdomain.Service
	gateway *stubGateway
	audit   *stubAudit
	clock   *clock.FakeClock
	node    *snowflake.Node
}

func newFixture(t *testing.T, wrapRepo func(paymentdomain.Repository) paymentdomain.Repository) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&bookingdomain.Booking{},
		&paymentdomain.Payment{},
		&paymentdomain.TransactionLog{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC))
	holder := config.NewStaticFraudConfigHolder(config.DefaultFraudConfig())

	fraudSvc := fraudservice.NewService(fraudservice.Params{
		Log:      log,
		Clock:    fakeClock,
		FraudCfg: holder,
	})
	signalSvc := signals.NewService(signals.Params{
		DB:    db,
		Log:   log,
		Clock: fakeClock,
	})

	repo := paymentrepo.Provide()
	if wrapRepo != nil {
		repo = wrapRepo(repo)
	}

	gw := &stubGateway{}
	audit := &stubAudit{}

	svc := NewService(Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fakeClock,
		FraudCfg: holder,
		FraudSvc: fraudSvc,
		AuditSvc: audit,
		Gateway:  gw,
		Signals:  signalSvc,
		Repo:     repo,
	})

	return &fixture{db: db, svc: svc, gateway: gw, audit: audit, clock: fakeClock, node: node}
}

func (f *fixture) createBooking(t *testing.T, status bookingdomain.Status) snowflake.ID {
	t.Helper()
	booking := &bookingdomain.Booking{
		ID:        f.node.Generate(),
		UserID:    "user-1",
		VehicleID: "vehicle-1",
		Status:    status,
		Amount:    20_500,
		Currency:  "USD",
		CreatedAt: f.clock.Now(),
		UpdatedAt: f.clock.Now(),
	}
	require.NoError(t, f.db.Create(booking).Error)
	return booking.ID
}

func baseRequest(bookingID snowflake.ID) paymentdomain.ProcessPaymentRequest {
	return paymentdomain.ProcessPaymentRequest{
		UserID:    "user-1",
		BookingID: bookingID,
		Amount:    20_500,
		Currency:  "usd",
		Method:    "card",
		Email:     "user@example.com",
		IPAddress: "203.0.113.7",
		ActorID:   "user-1",
	}
}

func (f *fixture) countRows(t *testing.T, model any) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(model).Count(&count).Error)
	return count
}

func TestProcessPayment_Success(t *testing.T) {
	f := newFixture(t, nil)
	bookingID := f.createBooking(t, bookingdomain.StatusConfirmed)

	result, err := f.svc.ProcessPayment(context.Background(), baseRequest(bookingID))
	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)
	assert.NotZero(t, result.PaymentID)

	var payment paymentdomain.Payment
	require.NoError(t, f.db.First(&payment, "id = ?", result.PaymentID).Error)
	assert.Equal(t, paymentdomain.StatusCompleted, payment.Status)
	assert.Equal(t, "USD", payment.Currency)
	require.NotNil(t, payment.GatewayTransactionID)
	assert.Equal(t, "tx_test_1", *payment.GatewayTransactionID)

	var booking bookingdomain.Booking
	require.NoError(t, f.db.First(&booking, "id = ?", bookingID).Error)
	assert.Equal(t, bookingdomain.StatusPaid, booking.Status)

	assert.EqualValues(t, 1, f.countRows(t, &paymentdomain.TransactionLog{}))

	require.Len(t, f.audit.events, 1)
	assert.Equal(t, "payment.succeeded", f.audit.events[0].Action)
	assert.Equal(t, auditdomain.CategoryPayment, f.audit.events[0].Category)
}

func TestProcessPayment_Validation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*paymentdomain.ProcessPaymentRequest)
	}{
		{"missing user", func(r *paymentdomain.ProcessPaymentRequest) { r.UserID = " " }},
		{"zero amount", func(r *paymentdomain.ProcessPaymentRequest) { r.Amount = 0 }},
		{"negative amount", func(r *paymentdomain.ProcessPaymentRequest) { r.Amount = -100 }},
		{"bad currency", func(r *paymentdomain.ProcessPaymentRequest) { r.Currency = "usdd" }},
		{"missing method", func(r *paymentdomain.ProcessPaymentRequest) { r.Method = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := baseRequest(0)
			tc.mutate(&req)
			_, err := f.svc.ProcessPayment(ctx, req)
			assert.ErrorIs(t, err, paymentdomain.ErrInvalidPaymentData)
		})
	}

	assert.EqualValues(t, 0, f.countRows(t, &paymentdomain.Payment{}))
}

func TestProcessPayment_FraudRejected(t *testing.T) {
	f := newFixture(t, nil)
	bookingID := f.createBooking(t, bookingdomain.StatusConfirmed)

	req := baseRequest(bookingID)
	req.AttemptCount = 4  // above the attempt limit
	req.Amount = 20_000   // round thousands

	_, err := f.svc.ProcessPayment(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, paymentdomain.ErrFraudRejected)

	var fraudErr *paymentdomain.FraudRejectedError
	require.ErrorAs(t, err, &fraudErr)
	assert.ElementsMatch(t, []string{"multiple_attempts", "round_amount"}, fraudErr.Indicators)

	// A rejected payment leaves no trace outside the audit trail.
	assert.Zero(t, f.gateway.charges)
	assert.EqualValues(t, 0, f.countRows(t, &paymentdomain.Payment{}))
	assert.EqualValues(t, 0, f.countRows(t, &paymentdomain.TransactionLog{}))

	require.Len(t, f.audit.events, 1)
	assert.Equal(t, "payment.fraud_rejected", f.audit.events[0].Action)
	assert.Equal(t, auditdomain.CategorySecurity, f.audit.events[0].Category)
}

func TestProcessPayment_HighScoreRejected(t *testing.T) {
	f := newFixture(t, nil)

	req := baseRequest(0)
	req.Amount = 150_500 // high amount, 20 points
	req.IPIsProxy = true // 30 points

	_, err := f.svc.ProcessPayment(context.Background(), req)
	assert.ErrorIs(t, err, paymentdomain.ErrFraudRejected)
	assert.Zero(t, f.gateway.charges)

	// No booking was attached, so the rejection target stays empty
	// instead of the literal "0".
	require.Len(t, f.audit.events, 1)
	assert.Empty(t, f.audit.events[0].TargetID)
}

func TestProcessPayment_VelocityContributesToRejection(t *testing.T) {
	f := newFixture(t, nil)

	// Six settled payments inside the velocity window.
	for i := 0; i < 6; i++ {
		require.NoError(t, f.db.Create(&paymentdomain.Payment{
			ID:        f.node.Generate(),
			UserID:    "user-1",
			Amount:    5_500,
			Currency:  "USD",
			Method:    "card",
			Status:    paymentdomain.StatusCompleted,
			CreatedAt: f.clock.Now().Add(-time.Minute),
			UpdatedAt: f.clock.Now().Add(-time.Minute),
		}).Error)
	}

	_, err := f.svc.ProcessPayment(context.Background(), baseRequest(0))
	require.Error(t, err)

	var fraudErr *paymentdomain.FraudRejectedError
	require.ErrorAs(t, err, &fraudErr)
	assert.Contains(t, fraudErr.Indicators, "velocity_exceeded")
	assert.Contains(t, fraudErr.Indicators, "rapid_transactions")
}

func TestProcessPayment_GatewayFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.gateway.chargeErr = errors.New("processor timeout")

	_, err := f.svc.ProcessPayment(context.Background(), baseRequest(0))
	assert.ErrorIs(t, err, paymentdomain.ErrProcessingFailed)
	assert.EqualValues(t, 0, f.countRows(t, &paymentdomain.Payment{}))
}

func TestProcessPayment_UnknownBookingRollsBack(t *testing.T) {
	f := newFixture(t, nil)

	req := baseRequest(f.node.Generate())
	_, err := f.svc.ProcessPayment(context.Background(), req)
	assert.ErrorIs(t, err, paymentdomain.ErrProcessingFailed)
	assert.EqualValues(t, 0, f.countRows(t, &paymentdomain.Payment{}))
}

func TestProcessPayment_LogFailureRollsBackEverything(t *testing.T) {
	f := newFixture(t, func(repo paymentdomain.Repository) paymentdomain.Repository {
		return &failingLogRepo{Repository: repo}
	})
	bookingID := f.createBooking(t, bookingdomain.StatusConfirmed)

	_, err := f.svc.ProcessPayment(context.Background(), baseRequest(bookingID))
	require.Error(t, err)
	assert.ErrorIs(t, err, paymentdomain.ErrProcessingFailed)

	// The payment row and the booking transition roll back together.
	assert.EqualValues(t, 0, f.countRows(t, &paymentdomain.Payment{}))
	var booking bookingdomain.Booking
	require.NoError(t, f.db.First(&booking, "id = ?", bookingID).Error)
	assert.Equal(t, bookingdomain.StatusConfirmed, booking.Status)

	// The gateway was charged with nothing to show for it locally, so
	// the orphaned charge gets flagged for operators.
	require.Len(t, f.audit.events, 1)
	event := f.audit.events[0]
	assert.Equal(t, "payment.reconciliation_required", event.Action)
	assert.Equal(t, auditdomain.ActorTypeSystem, event.ActorType)
	assert.Equal(t, "gateway_transaction", event.TargetType)
	assert.NotEmpty(t, event.TargetID)
}

func TestGetPayment_NotFound(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.GetPayment(context.Background(), f.node.Generate())
	assert.ErrorIs(t, err, paymentdomain.ErrPaymentNotFound)
}
