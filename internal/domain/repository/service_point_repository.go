package repository

import (
	"branch-queue-engine/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ServicePointRepository interface {
	FindByID(db *gorm.DB, id uuid.UUID) (*entity.ServicePoint, error)
	FindActiveByService(db *gorm.DB, serviceID uuid.UUID) ([]entity.ServicePoint, error)
	ServesService(db *gorm.DB, servicePointID, serviceID uuid.UUID) (bool, error)
}
