package repository

import (
	"context"
	"errors"

	"opsflow/internal/core/ports"
	"opsflow/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type templateRepository struct {
	db *gorm.DB
}

// NewTemplateRepository creates a new instance of TemplateRepository
func NewTemplateRepository(db *gorm.DB) ports.TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) Create(ctx context.Context, tmpl *domain.WorkflowTemplate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Steps").Create(tmpl).Error; err != nil {
			return err
		}

		if len(tmpl.Steps) > 0 {
			if err := tx.Create(&tmpl.Steps).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *templateRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowTemplate, error) {
	var tmpl domain.WorkflowTemplate
	err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Where("id = ?", id).
		First(&tmpl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{Entity: "workflow template", ID: id}
		}
		return nil, err
	}
	return &tmpl, nil
}
