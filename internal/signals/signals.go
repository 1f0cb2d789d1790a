package signals

import (
	"context"
	"fmt"
	"time"

	"github.com/drivelane/paycore/internal/clock"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Reputation buckets for a requester IP.
const (
	ReputationNeutral = "neutral"
	ReputationPoor    = "poor"
)

const badIPSetKey = "paycore:bad_ips"

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Redis *redis.Client `optional:"true"`
}

// Service collects the per-request risk signals the orchestrator feeds
// into scoring: attempt velocity and IP reputation.
type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	redis *redis.Client
}

func NewService(p Params) *Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("signals.service"),
		clock: p.Clock,
		redis: p.Redis,
	}
}

// RecentAttempts counts payments by the user inside the window. The
// redis counter is the fast path; the payments table is authoritative
// when redis is absent or failing.
func (s *Service) RecentAttempts(ctx context.Context, userID string, window time.Duration) (int, error) {
	if s.redis != nil {
		count, err := s.bumpRedisCounter(ctx, userID, window)
		if err == nil {
			return count, nil
		}
		s.log.Warn("velocity counter fallback to database", zap.Error(err))
	}

	var count int64
	since := s.clock.Now().Add(-window)
	err := s.db.WithContext(ctx).
		Table("payments").
		Where("user_id = ? AND created_at >= ?", userID, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count recent payments: %w", err)
	}
	return int(count), nil
}

// IPReputation buckets the requester IP. Without redis every IP is
// neutral; with redis the deny set is operator-maintained.
func (s *Service) IPReputation(ctx context.Context, ip string) string {
	if s.redis == nil || ip == "" {
		return ReputationNeutral
	}

	member, err := s.redis.SIsMember(ctx, badIPSetKey, ip).Result()
	if err != nil {
		s.log.Warn("ip reputation lookup failed", zap.Error(err))
		return ReputationNeutral
	}
	if member {
		return ReputationPoor
	}
	return ReputationNeutral
}

func (s *Service) bumpRedisCounter(ctx context.Context, userID string, window time.Duration) (int, error) {
	key := fmt.Sprintf("paycore:velocity:%s", userID)

	pipe := s.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}

	// Incr counts this attempt; callers compare prior attempts.
	return int(incr.Val()) - 1, nil
}
