package repository

import (
	"time"

	"branch-queue-engine/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AppointmentRepository interface {
	Create(db *gorm.DB, appointment *entity.Appointment) error
	FindByID(db *gorm.DB, id uuid.UUID) (*entity.Appointment, error)
	FindByConfirmationCode(db *gorm.DB, code string) (*entity.Appointment, error)
	CodeExists(db *gorm.DB, code string) (bool, error)

	// FindActiveByServicePointAndRange returns non-terminal appointments of
	// a service point whose scheduled_at falls in [from, to), with Service
	// preloaded so callers can compute occupied intervals.
	FindActiveByServicePointAndRange(db *gorm.DB, servicePointID uuid.UUID, from, to time.Time) ([]entity.Appointment, error)

	// FindWaitingByServicePoint returns the waiting set of a service point
	// in queue order (priority class first, then FIFO by creation time),
	// with Service preloaded.
	FindWaitingByServicePoint(db *gorm.DB, servicePointID uuid.UUID) ([]entity.Appointment, error)
	FindServingByServicePoint(db *gorm.DB, servicePointID uuid.UUID) (*entity.Appointment, error)

	// UpdateStatus moves an appointment from one status to another only if
	// it is still in the expected status. Returns affected rows: 0 means
	// the record changed underneath the caller.
	UpdateStatus(db *gorm.DB, id uuid.UUID, from, to entity.AppointmentStatus, cancelReason string) (int64, error)

	UpdateQueueInfo(db *gorm.DB, id uuid.UUID, position, estimatedWaitMinutes int) error
	ClearQueueInfo(db *gorm.DB, id uuid.UUID) error
}
