package domain

import "context"

// Service evaluates transaction attributes into a risk assessment.
// Implementations are stateless apart from configuration and the
// custom rule registry; Analyze never returns an error, degrading to a
// conservative assessment instead.
type Service interface {
	RegisterRule(name string, rule Rule)
	DetectIndicators(ctx context.Context, attrs Attributes) IndicatorSet
	Score(indicators IndicatorSet) int
	Classify(score int) Level
	Recommend(level Level, score int, indicators IndicatorSet) Recommendation
	Analyze(ctx context.Context, attrs Attributes) Assessment
}
