package repository

import (
	"branch-queue-engine/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ScheduleRepository interface {
	FindActiveByServiceAndDay(db *gorm.DB, serviceID uuid.UUID, dayOfWeek int) ([]entity.Schedule, error)
}
