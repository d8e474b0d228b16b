package repository

import (
	"branch-queue-engine/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type IntakeFormRepository interface {
	// FindByID loads a form with its fields ordered by position.
	FindByID(db *gorm.DB, id uuid.UUID) (*entity.IntakeForm, error)
}
