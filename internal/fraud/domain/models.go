package domain

import "sort"

// Level is the coarse risk bucket derived from a score.
type Level string

const (
	LevelMinimal Level = "minimal"
	LevelLow     Level = "low"
	LevelMedium  Level = "medium"
	LevelHigh    Level = "high"
	// LevelError marks a degraded assessment produced when the scorer
	// itself failed. It is never derived from a score.
	LevelError Level = "error"
)

// Recommendation is the suggested next action for a transaction.
type Recommendation string

const (
	RecommendationProceed                Recommendation = "proceed"
	RecommendationFlagForReview          Recommendation = "flag_for_review"
	RecommendationAdditionalVerification Recommendation = "additional_verification"
	RecommendationBlockTransaction       Recommendation = "block_transaction"
	RecommendationReviewManually         Recommendation = "review_manually"
)

// Indicator vocabulary. Custom rules may add names beyond this set.
const (
	IndicatorHighAmount          = "high_amount"
	IndicatorMultipleAttempts    = "multiple_attempts"
	IndicatorUnusualLocation     = "unusual_location"
	IndicatorAddressMismatch     = "address_mismatch"
	IndicatorCardCountryMismatch = "card_country_mismatch"
	IndicatorRapidTransactions   = "rapid_transactions"
	IndicatorUnusualTime         = "unusual_time"
	IndicatorIPProxyDetected     = "ip_proxy_detected"
	IndicatorDeviceMismatch      = "device_mismatch"
	IndicatorRiskyEmailDomain    = "risky_email_domain"
	IndicatorVelocityExceeded    = "velocity_exceeded"
	IndicatorLargeAmount         = "large_amount"
	IndicatorRoundAmount         = "round_amount"
	IndicatorPoorIPReputation    = "poor_ip_reputation"
	IndicatorPriorChargeback     = "prior_chargeback"
)

// Attributes is the transient per-evaluation input to the scorer.
// Monetary amounts are minor units (cents). Optional numeric fields use
// pointers so "unknown" is distinguishable from zero.
type Attributes struct {
	Amount    int64
	Currency  string
	UserID    string
	BookingID string

	AttemptCount     int
	Location         string
	ExpectedLocation string
	BillingCountry   string
	ShippingCountry  string
	CardCountry      string
	UserCountry      string

	MinutesSinceLast *int
	HourOfDay        *int

	IPIsProxy     bool
	DeviceChanged bool
	Email         string
	IPAddress     string

	// Enriched by the payment orchestrator before scoring.
	RecentAttempts   int
	IPReputation     string
	PriorChargebacks int

	// Extra carries caller-specific fields consumed by custom rules.
	Extra map[string]any
}

// IndicatorSet maps indicator names to presence. Absent keys are
// implicitly false; a false value is never stored.
type IndicatorSet map[string]bool

func (s IndicatorSet) Add(name string) {
	if name == "" {
		return
	}
	s[name] = true
}

func (s IndicatorSet) Has(name string) bool {
	return s[name]
}

// Names returns the present indicators in a stable order.
func (s IndicatorSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Assessment is the immutable result of one analysis pass.
type Assessment struct {
	Indicators     IndicatorSet   `json:"indicators"`
	Score          int            `json:"score"`
	Level          Level          `json:"level"`
	Recommendation Recommendation `json:"recommendation"`
	Degraded       bool           `json:"degraded,omitempty"`
	FailureReason  string         `json:"failure_reason,omitempty"`
}

// Rule is a registered custom indicator predicate. A rule that returns
// an error or panics is treated as non-matching and never aborts the
// rest of the battery.
type Rule func(attrs Attributes) (bool, error)
