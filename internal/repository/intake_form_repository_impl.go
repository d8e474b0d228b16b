package repository

import (
	"errors"

	"branch-queue-engine/internal/domain/entity"
	domainRepo "branch-queue-engine/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type intakeFormRepository struct{}

func NewIntakeFormRepository() domainRepo.IntakeFormRepository {
	return &intakeFormRepository{}
}

func (r *intakeFormRepository) FindByID(db *gorm.DB, id uuid.UUID) (*entity.IntakeForm, error) {
	var form entity.IntakeForm
	err := db.Preload("Fields", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Where("id = ?", id).First(&form).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &form, nil
}
