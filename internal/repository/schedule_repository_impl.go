package repository

import (
	"branch-queue-engine/internal/domain/entity"
	domainRepo "branch-queue-engine/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type scheduleRepository struct{}

func NewScheduleRepository() domainRepo.ScheduleRepository {
	return &scheduleRepository{}
}

func (r *scheduleRepository) FindActiveByServiceAndDay(db *gorm.DB, serviceID uuid.UUID, dayOfWeek int) ([]entity.Schedule, error) {
	var schedules []entity.Schedule
	err := db.Where("service_id = ? AND day_of_week = ? AND is_active = ?", serviceID, dayOfWeek, true).
		Order("start_time ASC").
		Find(&schedules).Error
	if err != nil {
		return nil, err
	}
	return schedules, nil
}
