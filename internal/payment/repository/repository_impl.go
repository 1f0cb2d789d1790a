package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	bookingdomain "github.com/drivelane/paycore/internal/booking/domain"
	"github.com/drivelane/paycore/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) CreatePayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Create(payment).Error
}

func (r *repo) FindPayment(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	var payment domain.Payment
	err := db.WithContext(ctx).First(&payment, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repo) MarkBookingPaid(ctx context.Context, db *gorm.DB, bookingID snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).Model(&bookingdomain.Booking{}).
		Where("id = ?", bookingID).
		Updates(map[string]any{
			"status":     bookingdomain.StatusPaid,
			"updated_at": time.Now().UTC(),
		})
	return result.RowsAffected, result.Error
}

func (r *repo) AppendTransactionLog(ctx context.Context, db *gorm.DB, entry *domain.TransactionLog) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) LastPaymentAt(ctx context.Context, db *gorm.DB, userID string) (*time.Time, error) {
	var payment domain.Payment
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	createdAt := payment.CreatedAt
	return &createdAt, nil
}

func (r *repo) CountChargebacks(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.TransactionLog{}).
		Where("user_id = ? AND type = ?", userID, domain.LogTypeChargeback).
		Count(&count).Error
	return count, err
}
