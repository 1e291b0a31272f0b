package outcomes

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pantryloop/pantryloop-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository returns a Repository backed by the given gorm handle.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOutcome(ctx context.Context, outcome *models.OrderOutcome) error {
	return r.db.WithContext(ctx).Create(outcome).Error
}

func (r *repository) FindOutcomeByOrderID(ctx context.Context, orderID uuid.UUID) (*models.OrderOutcome, error) {
	var outcome models.OrderOutcome
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&outcome).Error; err != nil {
		return nil, err
	}
	return &outcome, nil
}

func (r *repository) ListOutcomesBetween(ctx context.Context, from, to time.Time) ([]models.OrderOutcome, error) {
	var outcomes []models.OrderOutcome
	if err := r.db.WithContext(ctx).
		Where("occurred_at >= ? AND occurred_at < ?", from, to).
		Order("occurred_at ASC").
		Find(&outcomes).Error; err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (r *repository) CountOutcomesBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.OrderOutcome{}).
		Where("occurred_at >= ? AND occurred_at < ?", from, to).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// UpsertProviderMetric replaces the rollup row for the metric's provider and
// day, creating it on first sight.
func (r *repository) UpsertProviderMetric(ctx context.Context, metric *models.ProviderMetric) error {
	var existing models.ProviderMetric
	err := r.db.WithContext(ctx).
		Where("provider_id = ? AND day = ?", metric.ProviderID, metric.Day).
		First(&existing).Error
	switch {
	case err == nil:
		metric.ID = existing.ID
		metric.CreatedAt = existing.CreatedAt
		return r.db.WithContext(ctx).Save(metric).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		if metric.ID == uuid.Nil {
			metric.ID = uuid.New()
		}
		return r.db.WithContext(ctx).Create(metric).Error
	default:
		return err
	}
}

func (r *repository) ListMetricsBetween(ctx context.Context, from, to time.Time) ([]models.ProviderMetric, error) {
	var metrics []models.ProviderMetric
	if err := r.db.WithContext(ctx).
		Where("day >= ? AND day < ?", from, to).
		Order("day ASC").
		Find(&metrics).Error; err != nil {
		return nil, err
	}
	return metrics, nil
}
