package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/drivelane/paycore/internal/payment/domain"
	"github.com/drivelane/paycore/internal/refund/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) CreateRefund(ctx context.Context, db *gorm.DB, refund *domain.Refund) error {
	return db.WithContext(ctx).Create(refund).Error
}

func (r *repo) MarkPaymentRefunded(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).Model(&paymentdomain.Payment{}).
		Where("id = ? AND status = ?", paymentID, paymentdomain.StatusCompleted).
		Updates(map[string]any{
			"status":     paymentdomain.StatusRefunded,
			"updated_at": time.Now().UTC(),
		})
	return result.RowsAffected, result.Error
}

func (r *repo) ReleaseRefundClaim(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).Model(&paymentdomain.Payment{}).
		Where("id = ? AND status = ?", paymentID, paymentdomain.StatusRefunded).
		Updates(map[string]any{
			"status":     paymentdomain.StatusCompleted,
			"updated_at": time.Now().UTC(),
		})
	return result.RowsAffected, result.Error
}
