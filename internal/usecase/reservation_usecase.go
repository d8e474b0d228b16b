package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"branch-queue-engine/internal/converter"
	"branch-queue-engine/internal/delivery/dto"
	"branch-queue-engine/internal/domain/entity"
	"branch-queue-engine/internal/domain/repository"
	"branch-queue-engine/internal/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrSlotTaken        = errors.New("slot is already taken")
	ErrSlotNotAvailable = errors.New("requested time is not a bookable slot")
)

// Schema constraint names the engine relies on.
const (
	slotClaimConstraint = "idx_appointments_slot_claim"
	codeConstraint      = "idx_appointments_confirmation_code"
	servingConstraint   = "idx_appointments_serving"
)

const maxCodeAttempts = 5

// ReserveInput is the internal reservation request. RescheduleCount and
// RescheduledFrom carry booking lineage when a reservation replaces an
// existing one.
type ReserveInput struct {
	ServiceID       uuid.UUID
	ServicePointID  uuid.UUID
	ScheduledAt     time.Time
	Customer        dto.CustomerData
	RescheduleCount int
	RescheduledFrom *uuid.UUID
}

type ReservationUsecase interface {
	Reserve(ctx context.Context, req *dto.CreateAppointmentRequest) (*dto.AppointmentResponse, error)

	// ReserveSlot is the single write path that creates a scheduled
	// appointment. Used directly by the reschedule flow.
	ReserveSlot(ctx context.Context, input ReserveInput) (*entity.Appointment, error)
}

type reservationUsecase struct {
	db              *gorm.DB
	log             *logrus.Logger
	serviceRepo     repository.ServiceRepository
	scheduleRepo    repository.ScheduleRepository
	pointRepo       repository.ServicePointRepository
	appointmentRepo repository.AppointmentRepository
	policyRepo      repository.BranchPolicyRepository
	formRepo        repository.IntakeFormRepository
	intake          *service.IntakeValidator
	now             func() time.Time
}

func NewReservationUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	serviceRepo repository.ServiceRepository,
	scheduleRepo repository.ScheduleRepository,
	pointRepo repository.ServicePointRepository,
	appointmentRepo repository.AppointmentRepository,
	policyRepo repository.BranchPolicyRepository,
	formRepo repository.IntakeFormRepository,
	intake *service.IntakeValidator,
) ReservationUsecase {
	return &reservationUsecase{
		db:              db,
		log:             log,
		serviceRepo:     serviceRepo,
		scheduleRepo:    scheduleRepo,
		pointRepo:       pointRepo,
		appointmentRepo: appointmentRepo,
		policyRepo:      policyRepo,
		formRepo:        formRepo,
		intake:          intake,
		now:             time.Now,
	}
}

func (u *reservationUsecase) Reserve(ctx context.Context, req *dto.CreateAppointmentRequest) (*dto.AppointmentResponse, error) {
	appointment, err := u.ReserveSlot(ctx, ReserveInput{
		ServiceID:      req.ServiceID,
		ServicePointID: req.ServicePointID,
		ScheduledAt:    req.ScheduledAt,
		Customer:       req.Customer,
	})
	if err != nil {
		return nil, err
	}
	return converter.AppointmentToResponse(appointment), nil
}

// ReserveSlot claims a slot for a customer.
//
// Flow:
// 1. Validate service, service point and their assignment
// 2. Validate the requested time is an open, policy-legal slot
// 3. Validate intake data against the service's bound form (before any write)
// 4. Advisory free-slot check against existing appointments
// 5. Generate a collision-checked confirmation code
// 6. Insert; the partial unique index on (service_point_id, scheduled_at)
//    is the authoritative claim check, so a lost race surfaces here as
//    ErrSlotTaken and leaves no partial state
func (u *reservationUsecase) ReserveSlot(ctx context.Context, input ReserveInput) (*entity.Appointment, error) {
	db := u.db.WithContext(ctx)

	// Step 1: Validate service and service point
	svc, point, err := u.validateTarget(db, input.ServiceID, input.ServicePointID)
	if err != nil {
		return nil, err
	}

	policy, err := u.loadPolicy(db, svc.BranchID)
	if err != nil {
		return nil, err
	}

	// Step 2: The requested time must be a slot the generator would offer
	existing, err := u.validateSlot(db, svc, point, policy, input.ScheduledAt)
	if err != nil {
		return nil, err
	}

	// Step 3: Intake validation, before anything is persisted
	if err := u.validateIntake(db, svc, input.Customer.IntakeData); err != nil {
		return nil, err
	}

	// Step 4: Advisory conflict check; the unique index settles races
	for i := range existing {
		other := &existing[i]
		otherDur := other.Service.Duration()
		if otherDur <= 0 {
			otherDur = svc.Duration()
		}
		if other.Overlaps(otherDur, input.ScheduledAt, svc.Duration()) {
			return nil, ErrSlotTaken
		}
	}

	status := entity.StatusScheduled
	if policy.AutoConfirm {
		status = entity.StatusConfirmed
	}

	appointment := &entity.Appointment{
		ID:              uuid.New(),
		ServiceID:       svc.ID,
		ServicePointID:  point.ID,
		BranchID:        svc.BranchID,
		ScheduledAt:     input.ScheduledAt,
		Status:          status,
		CustomerName:    input.Customer.Name,
		CustomerEmail:   input.Customer.Email,
		CustomerPhone:   input.Customer.Phone,
		IntakeData:      entity.StringMap(input.Customer.IntakeData),
		RescheduleCount: input.RescheduleCount,
		RescheduledFrom: input.RescheduledFrom,
	}

	// Steps 5-6: code generation and the atomic claim
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := u.newConfirmationCode(db, input.ScheduledAt)
		if err != nil {
			return nil, err
		}
		appointment.ConfirmationCode = code

		err = u.appointmentRepo.Create(db, appointment)
		if err == nil {
			u.log.Infof("Appointment reserved: id=%s, service=%s, point=%s, at=%s, code=%s",
				appointment.ID, svc.ID, point.ID, input.ScheduledAt.Format(time.RFC3339), code)
			appointment.Service = *svc
			appointment.ServicePoint = *point
			return appointment, nil
		}
		if isUniqueViolation(err, slotClaimConstraint) {
			return nil, ErrSlotTaken
		}
		if isUniqueViolation(err, codeConstraint) {
			// Lost a code race to a concurrent insert; mint a new one.
			u.log.Warnf("Confirmation code collision on attempt %d, retrying", attempt+1)
			continue
		}
		u.log.Errorf("Failed to insert appointment: %+v", err)
		return nil, err
	}

	return nil, fmt.Errorf("confirmation code generation exhausted %d attempts", maxCodeAttempts)
}

func (u *reservationUsecase) validateTarget(db *gorm.DB, serviceID, servicePointID uuid.UUID) (*entity.Service, *entity.ServicePoint, error) {
	svc, err := u.serviceRepo.FindByID(db, serviceID)
	if err != nil {
		u.log.Warnf("Failed to find service %s: %+v", serviceID, err)
		return nil, nil, err
	}
	if svc == nil || !svc.IsActive {
		return nil, nil, ErrServiceNotFound
	}

	point, err := u.pointRepo.FindByID(db, servicePointID)
	if err != nil {
		u.log.Warnf("Failed to find service point %s: %+v", servicePointID, err)
		return nil, nil, err
	}
	if point == nil || !point.IsActive {
		return nil, nil, ErrServicePointNotFound
	}

	serves, err := u.pointRepo.ServesService(db, point.ID, svc.ID)
	if err != nil {
		return nil, nil, err
	}
	if !serves {
		return nil, nil, ErrServiceNotOffered
	}
	return svc, point, nil
}

func (u *reservationUsecase) loadPolicy(db *gorm.DB, branchID uuid.UUID) (*entity.BranchPolicy, error) {
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

// validateSlot re-derives the slot set for the requested day and point and
// checks membership before the commit; earlier listings are advisory only.
// Returns the day's existing appointments so the caller can reuse them.
func (u *reservationUsecase) validateSlot(db *gorm.DB, svc *entity.Service, point *entity.ServicePoint, policy *entity.BranchPolicy, scheduledAt time.Time) ([]entity.Appointment, error) {
	schedules, err := u.scheduleRepo.FindActiveByServiceAndDay(db, svc.ID, int(scheduledAt.Weekday()))
	if err != nil {
		u.log.Warnf("Failed to load schedules for service %s: %+v", svc.ID, err)
		return nil, err
	}
	intervals, err := mergeScheduleIntervals(schedules, scheduledAt)
	if err != nil {
		return nil, err
	}

	if !slotWithinIntervals(scheduledAt, svc.Duration(), intervals) {
		return nil, ErrSlotNotAvailable
	}
	if len(applyBookingWindow([]time.Time{scheduledAt}, policy, u.now())) == 0 {
		return nil, ErrSlotNotAvailable
	}

	dayStart := startOfDay(scheduledAt)
	existing, err := u.appointmentRepo.FindActiveByServicePointAndRange(db, point.ID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		u.log.Warnf("Failed to load appointments for service point %s: %+v", point.ID, err)
		return nil, err
	}
	return existing, nil
}

// slotWithinIntervals checks that the slot is duration-aligned to an open
// interval and fully contained by it.
func slotWithinIntervals(start time.Time, duration time.Duration, intervals []timeInterval) bool {
	for _, iv := range intervals {
		if start.Before(iv.start) || start.Add(duration).After(iv.end) {
			continue
		}
		if start.Sub(iv.start)%duration == 0 {
			return true
		}
	}
	return false
}

func (u *reservationUsecase) validateIntake(db *gorm.DB, svc *entity.Service, values map[string]string) error {
	if svc.FormID == nil {
		return nil
	}
	form, err := u.formRepo.FindByID(db, *svc.FormID)
	if err != nil {
		u.log.Warnf("Failed to load intake form %s: %+v", *svc.FormID, err)
		return err
	}
	if form == nil {
		return nil
	}
	warnings, verr := u.intake.Validate(form, values)
	if len(warnings) > 0 {
		u.log.Warnf("Intake warnings for form %s: %v", form.ID, warnings)
	}
	if verr != nil {
		return verr
	}
	return nil
}

// newConfirmationCode generates a short display-safe code and checks it
// against existing codes; the unique index remains the final arbiter.
func (u *reservationUsecase) newConfirmationCode(db *gorm.DB, scheduledAt time.Time) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		randomBytes := make([]byte, 3)
		if _, err := rand.Read(randomBytes); err != nil {
			return "", fmt.Errorf("confirmation code entropy: %w", err)
		}
		code := fmt.Sprintf("AP-%s-%06X", scheduledAt.Format("20060102"), randomBytes)

		exists, err := u.appointmentRepo.CodeExists(db, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("confirmation code generation exhausted %d attempts", maxCodeAttempts)
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && (constraint == "" || pgErr.ConstraintName == constraint)
}
