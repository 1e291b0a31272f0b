package tuning

import (
	"context"

	"gorm.io/gorm"

	"github.com/pantryloop/pantryloop-backend/pkg/db/models"
	"github.com/pantryloop/pantryloop-backend/pkg/pagination"
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

func (r *repository) CreateAdjustment(ctx context.Context, adjustment *models.WeightAdjustment) error {
	return r.db.WithContext(ctx).Create(adjustment).Error
}

func (r *repository) LatestAdjustment(ctx context.Context) (*models.WeightAdjustment, error) {
	var adjustment models.WeightAdjustment
	if err := r.db.WithContext(ctx).
		Order("applied_at DESC, id DESC").
		First(&adjustment).Error; err != nil {
		return nil, err
	}
	return &adjustment, nil
}

func (r *repository) ListAdjustments(ctx context.Context, params pagination.Params) ([]models.WeightAdjustment, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.WeightAdjustment{})
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, nil, err
	}
	if cursor != nil {
		query = query.Where("(applied_at, id) < (?, ?)", cursor.Timestamp, cursor.ID)
	}

	var adjustments []models.WeightAdjustment
	if err := query.Order("applied_at DESC, id DESC").Limit(limit).Find(&adjustments).Error; err != nil {
		return nil, nil, err
	}

	if len(adjustments) > normalized {
		next := adjustments[normalized]
		adjustments = adjustments[:normalized]
		return adjustments, &pagination.Cursor{Timestamp: next.AppliedAt, ID: next.ID}, nil
	}
	return adjustments, nil, nil
}
