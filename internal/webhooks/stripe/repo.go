package stripewebhook

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/healthoasis/wallet-backend/pkg/db/models"
	"github.com/healthoasis/wallet-backend/pkg/enums"
)

// Repository persists ingested gateway events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	InsertIfAbsent(ctx context.Context, event *models.ExternalPaymentEvent) (bool, error)
	FindByGatewayID(ctx context.Context, gatewayEventID string) (*models.ExternalPaymentEvent, error)
	Save(ctx context.Context, event *models.ExternalPaymentEvent) error
	ListByStatus(ctx context.Context, status enums.PaymentEventStatus, limit int) ([]models.ExternalPaymentEvent, error)
	ListRetryable(ctx context.Context, maxAttempts, limit int) ([]models.ExternalPaymentEvent, error)
	ListByPatientEmail(ctx context.Context, email string) ([]models.ExternalPaymentEvent, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// InsertIfAbsent reports false when a row with the same gateway event id exists.
func (r *repository) InsertIfAbsent(ctx context.Context, event *models.ExternalPaymentEvent) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "gateway_event_id"}},
			DoNothing: true,
		}).
		Create(event)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) FindByGatewayID(ctx context.Context, gatewayEventID string) (*models.ExternalPaymentEvent, error) {
	var event models.ExternalPaymentEvent
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("gateway_event_id = ?", gatewayEventID).
		First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) Save(ctx context.Context, event *models.ExternalPaymentEvent) error {
	return r.db.WithContext(ctx).Save(event).Error
}

func (r *repository) ListByStatus(ctx context.Context, status enums.PaymentEventStatus, limit int) ([]models.ExternalPaymentEvent, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		q = q.Where("processing_status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var events []models.ExternalPaymentEvent
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// ListRetryable returns failed events with attempts left, oldest first.
func (r *repository) ListRetryable(ctx context.Context, maxAttempts, limit int) ([]models.ExternalPaymentEvent, error) {
	q := r.db.WithContext(ctx).
		Where("processing_status = ?", enums.PaymentEventStatusFailed).
		Order("created_at ASC")
	if maxAttempts > 0 {
		q = q.Where("attempts < ?", maxAttempts)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var events []models.ExternalPaymentEvent
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) ListByPatientEmail(ctx context.Context, email string) ([]models.ExternalPaymentEvent, error) {
	var events []models.ExternalPaymentEvent
	if err := r.db.WithContext(ctx).
		Where("patient_email = ?", strings.ToLower(strings.TrimSpace(email))).
		Order("created_at DESC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
