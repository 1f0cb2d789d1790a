package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/drivelane/paycore/internal/clock"
	"github.com/drivelane/paycore/internal/config"
	frauddomain "github.com/drivelane/paycore/internal/fraud/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) frauddomain.Service {
	t.Helper()
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC))
	return NewService(Params{
		Log:      zap.NewNop(),
		Clock:    fakeClock,
		FraudCfg: config.NewStaticFraudConfigHolder(config.DefaultFraudConfig()),
	})
}

func cleanAttributes() frauddomain.Attributes {
	hour := 14
	minutes := 60
	return frauddomain.Attributes{
		Amount:           12_345,
		Currency:         "USD",
		UserID:           "user-1",
		Email:            "user@example.com",
		HourOfDay:        &hour,
		MinutesSinceLast: &minutes,
	}
}

func TestAnalyze_CleanTransaction(t *testing.T) {
	svc := newTestService(t)

	assessment := svc.Analyze(context.Background(), cleanAttributes())

	assert.Empty(t, assessment.Indicators)
	assert.Equal(t, 0, assessment.Score)
	assert.Equal(t, frauddomain.LevelMinimal, assessment.Level)
	assert.Equal(t, frauddomain.RecommendationProceed, assessment.Recommendation)
	assert.False(t, assessment.Degraded)
}

func TestDetect_HighAmountBoundary(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	attrs := cleanAttributes()
	attrs.Amount = 100_000
	assert.False(t, svc.DetectIndicators(ctx, attrs).Has(frauddomain.IndicatorHighAmount),
		"amount equal to the threshold must not fire")

	attrs.Amount = 100_001
	assert.True(t, svc.DetectIndicators(ctx, attrs).Has(frauddomain.IndicatorHighAmount))
}

func TestDetect_AttemptBoundary(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	attrs := cleanAttributes()
	attrs.AttemptCount = 3
	assert.False(t, svc.DetectIndicators(ctx, attrs).Has(frauddomain.IndicatorMultipleAttempts))

	attrs.AttemptCount = 4
	assert.True(t, svc.DetectIndicators(ctx, attrs).Has(frauddomain.IndicatorMultipleAttempts))
}

func TestDetect_TimingAndLocation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	attrs := cleanAttributes()
	minutes := 4
	attrs.MinutesSinceLast = &minutes
	hour := 3
	attrs.HourOfDay = &hour
	attrs.Location = "Berlin"
	attrs.ExpectedLocation = "Munich"

	indicators := svc.DetectIndicators(ctx, attrs)
	assert.True(t, indicators.Has(frauddomain.IndicatorRapidTransactions))
	assert.True(t, indicators.Has(frauddomain.IndicatorUnusualTime))
	assert.True(t, indicators.Has(frauddomain.IndicatorUnusualLocation))
}

func TestDetect_UnknownLastTransactionDoesNotFire(t *testing.T) {
	svc := newTestService(t)

	attrs := cleanAttributes()
	attrs.MinutesSinceLast = nil

	indicators := svc.DetectIndicators(context.Background(), attrs)
	assert.False(t, indicators.Has(frauddomain.IndicatorRapidTransactions))
}

func TestDetect_CountryMismatches(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	attrs := cleanAttributes()
	attrs.BillingCountry = "DE"
	attrs.ShippingCountry = "FR"
	attrs.CardCountry = "US"
	attrs.UserCountry = "DE"

	indicators := svc.DetectIndicators(ctx, attrs)
	assert.True(t, indicators.Has(frauddomain.IndicatorAddressMismatch))
	assert.True(t, indicators.Has(frauddomain.IndicatorCardCountryMismatch))

	// A missing side of the pair means no evidence, so no indicator.
	attrs.ShippingCountry = ""
	attrs.UserCountry = ""
	indicators = svc.DetectIndicators(ctx, attrs)
	assert.False(t, indicators.Has(frauddomain.IndicatorAddressMismatch))
	assert.False(t, indicators.Has(frauddomain.IndicatorCardCountryMismatch))
}

func TestDetect_RiskyEmailDomain(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		email string
		want  bool
	}{
		{"user@mailinator.com", true},
		{"user@MAILINATOR.com", true},
		{"user@Mailinator.COM", true},
		{"user@example.com", false},
		{"not-an-email", false},
		{"a@b@mailinator.com", false},
		{"", false},
	}
	for _, tc := range cases {
		attrs := cleanAttributes()
		attrs.Email = tc.email
		got := svc.DetectIndicators(ctx, attrs).Has(frauddomain.IndicatorRiskyEmailDomain)
		assert.Equal(t, tc.want, got, "email %q", tc.email)
	}
}

func TestDetect_AmountShapeIndicators(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	attrs := cleanAttributes()
	attrs.Amount = 2_000_000

	indicators := svc.DetectIndicators(ctx, attrs)
	assert.True(t, indicators.Has(frauddomain.IndicatorLargeAmount))
	assert.True(t, indicators.Has(frauddomain.IndicatorHighAmount))
	assert.True(t, indicators.Has(frauddomain.IndicatorRoundAmount))

	attrs.Amount = 2_000_001
	indicators = svc.DetectIndicators(ctx, attrs)
	assert.False(t, indicators.Has(frauddomain.IndicatorRoundAmount))
}

func TestDetect_SignalIndicators(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	attrs := cleanAttributes()
	attrs.RecentAttempts = 6
	attrs.IPReputation = "poor"
	attrs.PriorChargebacks = 1
	attrs.IPIsProxy = true
	attrs.DeviceChanged = true

	indicators := svc.DetectIndicators(ctx, attrs)
	assert.True(t, indicators.Has(frauddomain.IndicatorVelocityExceeded))
	assert.True(t, indicators.Has(frauddomain.IndicatorPoorIPReputation))
	assert.True(t, indicators.Has(frauddomain.IndicatorPriorChargeback))
	assert.True(t, indicators.Has(frauddomain.IndicatorIPProxyDetected))
	assert.True(t, indicators.Has(frauddomain.IndicatorDeviceMismatch))
}

func TestScore_SumsAndClamps(t *testing.T) {
	svc := newTestService(t)

	indicators := frauddomain.IndicatorSet{}
	indicators.Add(frauddomain.IndicatorHighAmount)      // 20
	indicators.Add(frauddomain.IndicatorAddressMismatch) // 10
	assert.Equal(t, 30, svc.Score(indicators))

	// Enough indicators to exceed 100 must clamp, not overflow.
	for _, name := range []string{
		frauddomain.IndicatorUnusualLocation,
		frauddomain.IndicatorIPProxyDetected,
		frauddomain.IndicatorPriorChargeback,
		frauddomain.IndicatorVelocityExceeded,
		frauddomain.IndicatorCardCountryMismatch,
	} {
		indicators.Add(name)
	}
	assert.Equal(t, 100, svc.Score(indicators))
}

func TestScore_Monotonicity(t *testing.T) {
	svc := newTestService(t)

	smaller := frauddomain.IndicatorSet{}
	smaller.Add(frauddomain.IndicatorHighAmount)

	larger := frauddomain.IndicatorSet{}
	larger.Add(frauddomain.IndicatorHighAmount)
	larger.Add(frauddomain.IndicatorDeviceMismatch)

	assert.GreaterOrEqual(t, svc.Score(larger), svc.Score(smaller))
}

func TestScore_UnknownIndicatorUsesDefaultWeight(t *testing.T) {
	svc := newTestService(t)

	indicators := frauddomain.IndicatorSet{}
	indicators.Add("partner_blocklist_hit")
	assert.Equal(t, defaultCustomWeight, svc.Score(indicators))
}

func TestClassify_Boundaries(t *testing.T) {
	svc := newTestService(t)

	assert.Equal(t, frauddomain.LevelMinimal, svc.Classify(0))
	assert.Equal(t, frauddomain.LevelMinimal, svc.Classify(29))
	assert.Equal(t, frauddomain.LevelLow, svc.Classify(30))
	assert.Equal(t, frauddomain.LevelLow, svc.Classify(49))
	assert.Equal(t, frauddomain.LevelMedium, svc.Classify(50))
	assert.Equal(t, frauddomain.LevelMedium, svc.Classify(69))
	assert.Equal(t, frauddomain.LevelHigh, svc.Classify(70))
	assert.Equal(t, frauddomain.LevelHigh, svc.Classify(100))
}

func TestRecommend_IndicatorOverrides(t *testing.T) {
	svc := newTestService(t)

	proxy := frauddomain.IndicatorSet{}
	proxy.Add(frauddomain.IndicatorIPProxyDetected)
	assert.Equal(t, frauddomain.RecommendationAdditionalVerification,
		svc.Recommend(frauddomain.LevelLow, 30, proxy))

	cardMismatch := frauddomain.IndicatorSet{}
	cardMismatch.Add(frauddomain.IndicatorCardCountryMismatch)
	assert.Equal(t, frauddomain.RecommendationBlockTransaction,
		svc.Recommend(frauddomain.LevelHigh, 80, cardMismatch))
	assert.Equal(t, frauddomain.RecommendationAdditionalVerification,
		svc.Recommend(frauddomain.LevelMedium, 55, cardMismatch))
}

func TestAnalyze_Idempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	attrs := cleanAttributes()
	attrs.Amount = 150_000
	attrs.IPIsProxy = true

	first := svc.Analyze(ctx, attrs)
	second := svc.Analyze(ctx, attrs)
	assert.Equal(t, first, second)
}

func TestAnalyze_Degraded(t *testing.T) {
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC))
	// A nil config holder makes every snapshot read panic, which must
	// surface as a degraded assessment, not a crash.
	svc := NewService(Params{
		Log:      zap.NewNop(),
		Clock:    fakeClock,
		FraudCfg: nil,
	})

	assessment := svc.Analyze(context.Background(), cleanAttributes())

	require.True(t, assessment.Degraded)
	assert.Equal(t, frauddomain.LevelError, assessment.Level)
	assert.Equal(t, frauddomain.RecommendationReviewManually, assessment.Recommendation)
	assert.Equal(t, 0, assessment.Score)
	assert.Empty(t, assessment.Indicators)
	assert.NotEmpty(t, assessment.FailureReason)
}

func TestCustomRule_MatchAndIsolation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	svc.RegisterRule("partner_blocklist_hit", func(attrs frauddomain.Attributes) (bool, error) {
		return attrs.UserID == "blocked-user", nil
	})
	svc.RegisterRule("broken_rule", func(frauddomain.Attributes) (bool, error) {
		return false, errors.New("upstream unavailable")
	})
	svc.RegisterRule("panicking_rule", func(frauddomain.Attributes) (bool, error) {
		panic("boom")
	})

	attrs := cleanAttributes()
	attrs.UserID = "blocked-user"

	assessment := svc.Analyze(ctx, attrs)
	assert.False(t, assessment.Degraded,
		"failing custom rules must not degrade the assessment")
	assert.True(t, assessment.Indicators.Has("partner_blocklist_hit"))
	assert.False(t, assessment.Indicators.Has("broken_rule"))
	assert.False(t, assessment.Indicators.Has("panicking_rule"))
}

func TestConfigOverride_ChangesThresholds(t *testing.T) {
	cfg := config.DefaultFraudConfig()
	cfg.Thresholds = config.FraudThresholds{High: 40, Medium: 20, Low: 10}
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		Log:      zap.NewNop(),
		Clock:    fakeClock,
		FraudCfg: config.NewStaticFraudConfigHolder(cfg),
	})

	assert.Equal(t, frauddomain.LevelHigh, svc.Classify(40))
	assert.Equal(t, frauddomain.LevelMedium, svc.Classify(25))
}
