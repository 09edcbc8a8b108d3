package repository

import (
	"context"

	"checkout-service/models"

	"gorm.io/gorm"
)

// StepLogRepository persists checkout commit step outcomes.
type StepLogRepository interface {
	Record(ctx context.Context, entry *models.CommitStep) error
	FindByCommitID(ctx context.Context, commitID string) ([]models.CommitStep, error)
	FindBySessionID(ctx context.Context, sessionID string) ([]models.CommitStep, error)
}

// GormStepLogRepository implements StepLogRepository using GORM.
type GormStepLogRepository struct {
	db *gorm.DB
}

func NewGormStepLogRepository(db *gorm.DB) StepLogRepository {
	return &GormStepLogRepository{db: db}
}

func (r *GormStepLogRepository) Record(ctx context.Context, entry *models.CommitStep) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *GormStepLogRepository) FindByCommitID(ctx context.Context, commitID string) ([]models.CommitStep, error) {
	var steps []models.CommitStep
	if err := r.db.WithContext(ctx).
		Where("commit_id = ?", commitID).
		Order("id ASC").
		Find(&steps).Error; err != nil {
		return nil, err
	}
	return steps, nil
}

func (r *GormStepLogRepository) FindBySessionID(ctx context.Context, sessionID string) ([]models.CommitStep, error) {
	var steps []models.CommitStep
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&steps).Error; err != nil {
		return nil, err
	}
	return steps, nil
}
