package repository

import (
	"branch-queue-engine/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ServiceRepository interface {
	FindByID(db *gorm.DB, id uuid.UUID) (*entity.Service, error)
}
