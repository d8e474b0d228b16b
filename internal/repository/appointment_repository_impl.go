package repository

import (
	"errors"
	"time"

	"branch-queue-engine/internal/domain/entity"
	domainRepo "branch-queue-engine/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var terminalStatuses = []entity.AppointmentStatus{
	entity.StatusCompleted, entity.StatusCancelled, entity.StatusNoShow,
}

type appointmentRepository struct{}

func NewAppointmentRepository() domainRepo.AppointmentRepository {
	return &appointmentRepository{}
}

func (r *appointmentRepository) Create(db *gorm.DB, appointment *entity.Appointment) error {
	return db.Create(appointment).Error
}

func (r *appointmentRepository) FindByID(db *gorm.DB, id uuid.UUID) (*entity.Appointment, error) {
	var appointment entity.Appointment
	err := db.Preload("Service").Preload("ServicePoint").Where("id = ?", id).First(&appointment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &appointment, nil
}

func (r *appointmentRepository) FindByConfirmationCode(db *gorm.DB, code string) (*entity.Appointment, error) {
	var appointment entity.Appointment
	err := db.Preload("Service").Preload("ServicePoint").Where("confirmation_code = ?", code).First(&appointment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &appointment, nil
}

func (r *appointmentRepository) CodeExists(db *gorm.DB, code string) (bool, error) {
	var count int64
	err := db.Model(&entity.Appointment{}).Where("confirmation_code = ?", code).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *appointmentRepository) FindActiveByServicePointAndRange(db *gorm.DB, servicePointID uuid.UUID, from, to time.Time) ([]entity.Appointment, error) {
	var appointments []entity.Appointment
	err := db.Preload("Service").
		Where("service_point_id = ? AND scheduled_at >= ? AND scheduled_at < ? AND status NOT IN ?",
			servicePointID, from, to, terminalStatuses).
		Order("scheduled_at ASC").
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

// Queue order: priority class ahead of regular, FIFO by queue entry time
// within each class.
func (r *appointmentRepository) FindWaitingByServicePoint(db *gorm.DB, servicePointID uuid.UUID) ([]entity.Appointment, error) {
	var appointments []entity.Appointment
	err := db.Preload("Service").
		Where("service_point_id = ? AND status = ?", servicePointID, entity.StatusWaiting).
		Order("is_priority DESC, queued_at ASC, created_at ASC").
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

func (r *appointmentRepository) FindServingByServicePoint(db *gorm.DB, servicePointID uuid.UUID) (*entity.Appointment, error) {
	var appointment entity.Appointment
	err := db.Preload("Service").
		Where("service_point_id = ? AND status = ?", servicePointID, entity.StatusServing).
		First(&appointment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &appointment, nil
}

// UpdateStatus applies the transition only while the record still holds the
// expected status. Returns affected rows: 1 = applied, 0 = lost a race or
// the transition was already applied.
func (r *appointmentRepository) UpdateStatus(db *gorm.DB, id uuid.UUID, from, to entity.AppointmentStatus, cancelReason string) (int64, error) {
	updates := map[string]interface{}{"status": to}
	if cancelReason != "" {
		updates["cancel_reason"] = cancelReason
	}
	// Entering the waiting status stamps the queue entry time, so
	// checked-in appointments line up behind already waiting tickets.
	if to == entity.StatusWaiting {
		updates["queued_at"] = time.Now()
	}
	result := db.Model(&entity.Appointment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *appointmentRepository) UpdateQueueInfo(db *gorm.DB, id uuid.UUID, position, estimatedWaitMinutes int) error {
	return db.Model(&entity.Appointment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"queue_position":         position,
			"estimated_wait_minutes": estimatedWaitMinutes,
		}).Error
}

func (r *appointmentRepository) ClearQueueInfo(db *gorm.DB, id uuid.UUID) error {
	return db.Model(&entity.Appointment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"queue_position":         nil,
			"estimated_wait_minutes": nil,
		}).Error
}
