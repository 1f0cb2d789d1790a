package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/drivelane/paycore/internal/clock"
	"github.com/drivelane/paycore/internal/config"
	frauddomain "github.com/drivelane/paycore/internal/fraud/domain"
	obsmetrics "github.com/drivelane/paycore/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// defaultCustomWeight applies to indicators without a configured weight.
const defaultCustomWeight = 10

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	FraudCfg   *config.FraudConfigHolder
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	clock      clock.Clock
	cfg        *config.FraudConfigHolder
	obsMetrics *obsmetrics.Metrics

	mu    sync.RWMutex
	rules map[string]frauddomain.Rule
}

func NewService(p Params) frauddomain.Service {
	return &Service{
		log:        p.Log.Named("fraud.service"),
		clock:      p.Clock,
		cfg:        p.FraudCfg,
		obsMetrics: p.ObsMetrics,
		rules:      map[string]frauddomain.Rule{},
	}
}

// RegisterRule adds or replaces a named custom indicator predicate.
func (s *Service) RegisterRule(name string, rule frauddomain.Rule) {
	name = strings.TrimSpace(name)
	if name == "" || rule == nil {
		return
	}
	s.mu.Lock()
	s.rules[name] = rule
	s.mu.Unlock()
}

func (s *Service) DetectIndicators(ctx context.Context, attrs frauddomain.Attributes) frauddomain.IndicatorSet {
	return s.detect(ctx, s.cfg.Get(), attrs)
}

func (s *Service) Score(indicators frauddomain.IndicatorSet) int {
	return score(s.cfg.Get(), indicators)
}

func (s *Service) Classify(scoreValue int) frauddomain.Level {
	return classify(s.cfg.Get(), scoreValue)
}

func (s *Service) Recommend(level frauddomain.Level, scoreValue int, indicators frauddomain.IndicatorSet) frauddomain.Recommendation {
	return recommend(s.cfg.Get(), level, scoreValue, indicators)
}

// Analyze runs the full pipeline against one configuration snapshot.
// It never raises: an internal failure yields a degraded assessment
// with level "error" and a manual-review recommendation.
func (s *Service) Analyze(ctx context.Context, attrs frauddomain.Attributes) (assessment frauddomain.Assessment) {
	defer func() {
		if r := recover(); r != nil {
			reason := fmt.Sprintf("risk analysis failed: %v", r)
			s.log.Error("fraud analysis degraded",
				zap.String("user_id", attrs.UserID),
				zap.String("reason", reason),
			)
			assessment = frauddomain.Assessment{
				Indicators:     frauddomain.IndicatorSet{},
				Score:          0,
				Level:          frauddomain.LevelError,
				Recommendation: frauddomain.RecommendationReviewManually,
				Degraded:       true,
				FailureReason:  reason,
			}
			s.obsMetrics.RecordRiskAssessment(ctx, string(frauddomain.LevelError))
		}
	}()

	snapshot := s.cfg.Get()

	indicators := s.detect(ctx, snapshot, attrs)
	scoreValue := score(snapshot, indicators)
	level := classify(snapshot, scoreValue)
	recommendation := recommend(snapshot, level, scoreValue, indicators)

	if level == frauddomain.LevelMedium || level == frauddomain.LevelHigh {
		s.log.Warn("elevated transaction risk",
			zap.String("user_id", attrs.UserID),
			zap.Int("score", scoreValue),
			zap.String("level", string(level)),
			zap.Strings("indicators", indicators.Names()),
		)
	}
	s.obsMetrics.RecordRiskAssessment(ctx, string(level))

	return frauddomain.Assessment{
		Indicators:     indicators,
		Score:          scoreValue,
		Level:          level,
		Recommendation: recommendation,
	}
}

func (s *Service) detect(ctx context.Context, cfg config.FraudConfig, attrs frauddomain.Attributes) frauddomain.IndicatorSet {
	indicators := frauddomain.IndicatorSet{}
	rules := cfg.Rules

	checks := []struct {
		name  string
		match func() bool
	}{
		{frauddomain.IndicatorHighAmount, func() bool {
			return attrs.Amount > rules.HighAmountThreshold
		}},
		{frauddomain.IndicatorMultipleAttempts, func() bool {
			return attrs.AttemptCount > rules.MaxPaymentAttempts
		}},
		{frauddomain.IndicatorUnusualLocation, func() bool {
			return attrs.Location != "" && attrs.Location != attrs.ExpectedLocation
		}},
		{frauddomain.IndicatorAddressMismatch, func() bool {
			return attrs.BillingCountry != "" && attrs.ShippingCountry != "" &&
				attrs.BillingCountry != attrs.ShippingCountry
		}},
		{frauddomain.IndicatorCardCountryMismatch, func() bool {
			return attrs.CardCountry != "" && attrs.UserCountry != "" &&
				attrs.CardCountry != attrs.UserCountry
		}},
		{frauddomain.IndicatorRapidTransactions, func() bool {
			return attrs.MinutesSinceLast != nil && *attrs.MinutesSinceLast < rules.MinTransactionIntervalM
		}},
		{frauddomain.IndicatorUnusualTime, func() bool {
			hour := s.hourOfDay(attrs)
			return hour < rules.BusinessHoursStart || hour > rules.BusinessHoursEnd
		}},
		{frauddomain.IndicatorIPProxyDetected, func() bool {
			return attrs.IPIsProxy
		}},
		{frauddomain.IndicatorDeviceMismatch, func() bool {
			return attrs.DeviceChanged
		}},
		{frauddomain.IndicatorRiskyEmailDomain, func() bool {
			return matchesRiskyDomain(attrs.Email, cfg.RiskyEmailDomains)
		}},
		{frauddomain.IndicatorVelocityExceeded, func() bool {
			return attrs.RecentAttempts > rules.MaxVelocityAttempts
		}},
		{frauddomain.IndicatorLargeAmount, func() bool {
			return attrs.Amount > rules.LargeAmountThreshold
		}},
		{frauddomain.IndicatorRoundAmount, func() bool {
			return attrs.Amount > 0 && rules.RoundAmountUnit > 0 && attrs.Amount%rules.RoundAmountUnit == 0
		}},
		{frauddomain.IndicatorPoorIPReputation, func() bool {
			return attrs.IPReputation == "poor"
		}},
		{frauddomain.IndicatorPriorChargeback, func() bool {
			return attrs.PriorChargebacks > 0
		}},
	}

	for _, check := range checks {
		if s.runCheck(check.name, check.match) {
			indicators.Add(check.name)
		}
	}

	s.mu.RLock()
	customRules := make(map[string]frauddomain.Rule, len(s.rules))
	for name, rule := range s.rules {
		customRules[name] = rule
	}
	s.mu.RUnlock()

	for name, rule := range customRules {
		if s.runCustomRule(name, rule, attrs) {
			indicators.Add(name)
		}
	}

	return indicators
}

// runCheck evaluates one built-in indicator in isolation; a panicking
// check is treated as non-matching.
func (s *Service) runCheck(name string, match func() bool) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn("fraud indicator check failed",
				zap.String("indicator", name),
				zap.Any("panic", r),
			)
			matched = false
		}
	}()
	return match()
}

func (s *Service) runCustomRule(name string, rule frauddomain.Rule, attrs frauddomain.Attributes) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn("custom fraud rule panicked",
				zap.String("rule", name),
				zap.Any("panic", r),
			)
			matched = false
		}
	}()

	ok, err := rule(attrs)
	if err != nil {
		s.log.Warn("custom fraud rule failed",
			zap.String("rule", name),
			zap.Error(err),
		)
		return false
	}
	return ok
}

func (s *Service) hourOfDay(attrs frauddomain.Attributes) int {
	if attrs.HourOfDay != nil {
		return *attrs.HourOfDay
	}
	return s.clock.Now().UTC().Hour()
}

func score(cfg config.FraudConfig, indicators frauddomain.IndicatorSet) int {
	total := 0
	for name, present := range indicators {
		if !present {
			continue
		}
		weight, ok := cfg.IndicatorWeights[name]
		if !ok {
			weight = defaultCustomWeight
		}
		if weight < 0 {
			continue
		}
		total += weight
	}
	if total > 100 {
		return 100
	}
	if total < 0 {
		return 0
	}
	return total
}

func classify(cfg config.FraudConfig, scoreValue int) frauddomain.Level {
	switch {
	case scoreValue >= cfg.Thresholds.High:
		return frauddomain.LevelHigh
	case scoreValue >= cfg.Thresholds.Medium:
		return frauddomain.LevelMedium
	case scoreValue >= cfg.Thresholds.Low:
		return frauddomain.LevelLow
	default:
		return frauddomain.LevelMinimal
	}
}

func recommend(cfg config.FraudConfig, level frauddomain.Level, scoreValue int, indicators frauddomain.IndicatorSet) frauddomain.Recommendation {
	_ = scoreValue

	if level == frauddomain.LevelError {
		return frauddomain.RecommendationReviewManually
	}

	// Indicator overrides take precedence over the level table.
	if indicators.Has(frauddomain.IndicatorIPProxyDetected) {
		return frauddomain.RecommendationAdditionalVerification
	}
	if indicators.Has(frauddomain.IndicatorCardCountryMismatch) {
		if level == frauddomain.LevelHigh {
			return frauddomain.RecommendationBlockTransaction
		}
		return frauddomain.RecommendationAdditionalVerification
	}

	if configured, ok := cfg.Recommendations[string(level)]; ok && configured != "" {
		return frauddomain.Recommendation(configured)
	}

	switch level {
	case frauddomain.LevelHigh:
		return frauddomain.RecommendationBlockTransaction
	case frauddomain.LevelMedium:
		return frauddomain.RecommendationAdditionalVerification
	case frauddomain.LevelLow:
		return frauddomain.RecommendationFlagForReview
	default:
		return frauddomain.RecommendationProceed
	}
}

func matchesRiskyDomain(email string, denyList []string) bool {
	if strings.Count(email, "@") != 1 {
		return false
	}
	domain := strings.ToLower(strings.TrimSpace(email[strings.Index(email, "@")+1:]))
	if domain == "" {
		return false
	}
	for _, risky := range denyList {
		if domain == strings.ToLower(strings.TrimSpace(risky)) {
			return true
		}
	}
	return false
}
