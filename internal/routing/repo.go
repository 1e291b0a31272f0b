package routing

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pantryloop/pantryloop-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a routing-decision repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateDecision(ctx context.Context, decision *models.RoutingDecision) error {
	return r.db.WithContext(ctx).Create(decision).Error
}

func (r *repository) FindDecisionByID(ctx context.Context, id uuid.UUID) (*models.RoutingDecision, error) {
	var decision models.RoutingDecision
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&decision).Error
	if err != nil {
		return nil, err
	}
	return &decision, nil
}
