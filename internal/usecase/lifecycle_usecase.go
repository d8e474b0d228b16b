package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"branch-queue-engine/internal/converter"
	"branch-queue-engine/internal/delivery/dto"
	"branch-queue-engine/internal/domain/entity"
	"branch-queue-engine/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrPolicyViolation     = errors.New("branch policy violation")
	ErrServicePointBusy    = errors.New("service point is already serving")
)

type LifecycleUsecase interface {
	// TransitionStatus applies a lifecycle transition. Invalid transitions
	// fail without mutating the record; transitions touching the waiting
	// status trigger a queue recompute at the appointment's service point.
	TransitionStatus(ctx context.Context, id uuid.UUID, newStatus entity.AppointmentStatus, actor string) (*dto.AppointmentResponse, error)

	// CancelAppointment cancels subject to the branch cancellation policy.
	CancelAppointment(ctx context.Context, id uuid.UUID, reason string) (*dto.AppointmentResponse, error)

	// CheckIn moves a scheduled or confirmed appointment into the waiting
	// queue of its service point.
	CheckIn(ctx context.Context, id uuid.UUID) (*dto.AppointmentResponse, error)

	// Reschedule cancels the appointment and reserves a replacement slot,
	// capped by the branch's reschedule limit over the booking's lineage.
	Reschedule(ctx context.Context, id uuid.UUID, req *dto.RescheduleAppointmentRequest) (*dto.AppointmentResponse, error)

	// GetByConfirmationCode looks an appointment or ticket up by the code
	// handed to the customer.
	GetByConfirmationCode(ctx context.Context, code string) (*dto.AppointmentResponse, error)
}

type lifecycleUsecase struct {
	db              *gorm.DB
	log             *logrus.Logger
	appointmentRepo repository.AppointmentRepository
	policyRepo      repository.BranchPolicyRepository
	queue           QueueUsecase
	reservation     ReservationUsecase
	now             func() time.Time
}

func NewLifecycleUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	appointmentRepo repository.AppointmentRepository,
	policyRepo repository.BranchPolicyRepository,
	queue QueueUsecase,
	reservation ReservationUsecase,
) LifecycleUsecase {
	return &lifecycleUsecase{
		db:              db,
		log:             log,
		appointmentRepo: appointmentRepo,
		policyRepo:      policyRepo,
		queue:           queue,
		reservation:     reservation,
		now:             time.Now,
	}
}

func (u *lifecycleUsecase) TransitionStatus(ctx context.Context, id uuid.UUID, newStatus entity.AppointmentStatus, actor string) (*dto.AppointmentResponse, error) {
	if !entity.ValidStatus(newStatus) {
		return nil, ErrInvalidTransition
	}

	db := u.db.WithContext(ctx)
	appointment, err := u.findAppointment(db, id)
	if err != nil {
		return nil, err
	}

	if newStatus == entity.StatusCancelled {
		if err := u.checkCancellationPolicy(db, appointment); err != nil {
			return nil, err
		}
	}

	from := appointment.Status
	updated, err := u.applyTransition(ctx, db, appointment, newStatus, "")
	if err != nil {
		return nil, err
	}

	u.log.Infof("Appointment %s: %s -> %s (actor=%s)", id, from, newStatus, actor)
	return converter.AppointmentToResponse(updated), nil
}

func (u *lifecycleUsecase) CancelAppointment(ctx context.Context, id uuid.UUID, reason string) (*dto.AppointmentResponse, error) {
	db := u.db.WithContext(ctx)
	appointment, err := u.findAppointment(db, id)
	if err != nil {
		return nil, err
	}

	if err := u.checkCancellationPolicy(db, appointment); err != nil {
		return nil, err
	}

	updated, err := u.applyTransition(ctx, db, appointment, entity.StatusCancelled, reason)
	if err != nil {
		return nil, err
	}

	u.log.Infof("Appointment cancelled: id=%s, reason=%q", id, reason)
	return converter.AppointmentToResponse(updated), nil
}

func (u *lifecycleUsecase) CheckIn(ctx context.Context, id uuid.UUID) (*dto.AppointmentResponse, error) {
	db := u.db.WithContext(ctx)
	appointment, err := u.findAppointment(db, id)
	if err != nil {
		return nil, err
	}

	updated, err := u.applyTransition(ctx, db, appointment, entity.StatusWaiting, "")
	if err != nil {
		return nil, err
	}

	u.log.Infof("Appointment checked in: id=%s, position=%d", id, derefInt(updated.QueuePosition))
	return converter.AppointmentToResponse(updated), nil
}

// Reschedule reserves the replacement before cancelling the original, so a
// failed reservation leaves the booking untouched. If the cancel then
// fails, the replacement is rolled back by cancelling it (compensation).
func (u *lifecycleUsecase) Reschedule(ctx context.Context, id uuid.UUID, req *dto.RescheduleAppointmentRequest) (*dto.AppointmentResponse, error) {
	db := u.db.WithContext(ctx)
	appointment, err := u.findAppointment(db, id)
	if err != nil {
		return nil, err
	}

	if appointment.Status != entity.StatusScheduled && appointment.Status != entity.StatusConfirmed {
		return nil, ErrInvalidTransition
	}
	if err := u.checkCancellationPolicy(db, appointment); err != nil {
		return nil, err
	}

	policy, err := u.loadPolicy(db, appointment.BranchID)
	if err != nil {
		return nil, err
	}
	if appointment.RescheduleCount+1 > policy.MaxReschedules {
		return nil, fmt.Errorf("%w: reschedule limit of %d reached", ErrPolicyViolation, policy.MaxReschedules)
	}

	replacement, err := u.reservation.ReserveSlot(ctx, ReserveInput{
		ServiceID:      appointment.ServiceID,
		ServicePointID: req.ServicePointID,
		ScheduledAt:    req.ScheduledAt,
		Customer: dto.CustomerData{
			Name:       appointment.CustomerName,
			Email:      appointment.CustomerEmail,
			Phone:      appointment.CustomerPhone,
			IntakeData: appointment.IntakeData,
		},
		RescheduleCount: appointment.RescheduleCount + 1,
		RescheduledFrom: &appointment.ID,
	})
	if err != nil {
		return nil, err
	}

	rows, err := u.appointmentRepo.UpdateStatus(db, appointment.ID, appointment.Status, entity.StatusCancelled, "rescheduled")
	if err != nil || rows == 0 {
		u.log.Errorf("Failed to cancel original %s after reschedule, compensating: rows=%d err=%+v", appointment.ID, rows, err)

		// Compensate: release the replacement slot we just claimed.
		compCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, compErr := u.appointmentRepo.UpdateStatus(u.db.WithContext(compCtx), replacement.ID, replacement.Status, entity.StatusCancelled, "reschedule compensation"); compErr != nil {
			u.log.Errorf("CRITICAL: failed to release replacement slot %s: %+v", replacement.ID, compErr)
		}
		if err != nil {
			return nil, err
		}
		return nil, ErrInvalidTransition
	}

	u.log.Infof("Appointment rescheduled: %s -> %s (count=%d)", appointment.ID, replacement.ID, replacement.RescheduleCount)
	return converter.AppointmentToResponse(replacement), nil
}

func (u *lifecycleUsecase) GetByConfirmationCode(ctx context.Context, code string) (*dto.AppointmentResponse, error) {
	appointment, err := u.appointmentRepo.FindByConfirmationCode(u.db.WithContext(ctx), code)
	if err != nil {
		u.log.Warnf("Failed to find appointment by code: %+v", err)
		return nil, err
	}
	if appointment == nil {
		return nil, ErrAppointmentNotFound
	}
	return converter.AppointmentToResponse(appointment), nil
}

// applyTransition validates and applies a single transition, runs the
// queue side effects, and reloads the record.
func (u *lifecycleUsecase) applyTransition(ctx context.Context, db *gorm.DB, appointment *entity.Appointment, to entity.AppointmentStatus, reason string) (*entity.Appointment, error) {
	from := appointment.Status
	if !entity.CanTransition(from, to) {
		return nil, ErrInvalidTransition
	}

	// One serving ticket per service point at any time. The read is
	// advisory; the partial unique index on (service_point_id) WHERE
	// status = 'serving' is the authoritative check, so a race between
	// two promotions surfaces on the update below.
	if to == entity.StatusServing {
		serving, err := u.appointmentRepo.FindServingByServicePoint(db, appointment.ServicePointID)
		if err != nil {
			return nil, err
		}
		if serving != nil && serving.ID != appointment.ID {
			return nil, ErrServicePointBusy
		}
	}

	rows, err := u.appointmentRepo.UpdateStatus(db, appointment.ID, from, to, reason)
	if err != nil {
		if isUniqueViolation(err, servingConstraint) {
			return nil, ErrServicePointBusy
		}
		u.log.Warnf("Failed to update status of %s: %+v", appointment.ID, err)
		return nil, err
	}
	if rows == 0 {
		// The record changed underneath us; the transition no longer holds.
		return nil, ErrInvalidTransition
	}

	if from == entity.StatusWaiting && to != entity.StatusWaiting {
		if err := u.appointmentRepo.ClearQueueInfo(db, appointment.ID); err != nil {
			u.log.Warnf("Failed to clear queue info for %s: %+v", appointment.ID, err)
		}
	}
	if from == entity.StatusWaiting || to == entity.StatusWaiting {
		if err := u.queue.Reposition(ctx, appointment.ServicePointID); err != nil {
			u.log.Warnf("Failed to reposition queue for service point %s: %+v", appointment.ServicePointID, err)
		}
	}

	updated, err := u.appointmentRepo.FindByID(db, appointment.ID)
	if err != nil || updated == nil {
		// Fall back to the in-memory record when the reload fails.
		appointment.Status = to
		return appointment, nil
	}
	return updated, nil
}

func (u *lifecycleUsecase) findAppointment(db *gorm.DB, id uuid.UUID) (*entity.Appointment, error) {
	appointment, err := u.appointmentRepo.FindByID(db, id)
	if err != nil {
		u.log.Warnf("Failed to find appointment %s: %+v", id, err)
		return nil, err
	}
	if appointment == nil {
		return nil, ErrAppointmentNotFound
	}
	return appointment, nil
}

func (u *lifecycleUsecase) loadPolicy(db *gorm.DB, branchID uuid.UUID) (*entity.BranchPolicy, error) {
	policy, err := u.policyRepo.FindByBranchID(db, branchID)
	if err != nil {
		u.log.Warnf("Failed to load policy for branch %s: %+v", branchID, err)
		return nil, err
	}
	if policy == nil {
		policy = entity.DefaultBranchPolicy(branchID)
	}
	return policy, nil
}

// checkCancellationPolicy enforces the branch cancellation window.
// Waiting tickets may always be cancelled; scheduled and confirmed
// bookings only inside the window.
func (u *lifecycleUsecase) checkCancellationPolicy(db *gorm.DB, appointment *entity.Appointment) error {
	switch appointment.Status {
	case entity.StatusWaiting:
		return nil
	case entity.StatusScheduled, entity.StatusConfirmed:
	default:
		return ErrInvalidTransition
	}

	policy, err := u.loadPolicy(db, appointment.BranchID)
	if err != nil {
		return err
	}
	if !policy.AllowCancellation {
		return fmt.Errorf("%w: cancellation is not allowed at this branch", ErrPolicyViolation)
	}
	if !u.now().Before(policy.CancellationDeadline(appointment.ScheduledAt)) {
		return fmt.Errorf("%w: cancellation window of %dh has closed", ErrPolicyViolation, policy.CancellationHours)
	}
	return nil
}
