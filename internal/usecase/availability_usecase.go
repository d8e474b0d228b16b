package usecase

import (
	"context"
	"errors"
	"time"

	"branch-queue-engine/internal/delivery/dto"
	"branch-queue-engine/internal/domain/entity"
	"branch-queue-engine/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrServiceNotFound      = errors.New("service not found")
	ErrServicePointNotFound = errors.New("service point not found")
	ErrServiceNotOffered    = errors.New("service point does not offer this service")
)

type AvailabilityUsecase interface {
	// GetAvailableSlots lists the free bookable slot starts of a service on
	// a date, independently per active assigned service point. A non-nil
	// servicePointID narrows the result to that point.
	GetAvailableSlots(ctx context.Context, serviceID uuid.UUID, date time.Time, servicePointID *uuid.UUID) (*dto.AvailabilityResponse, error)
}

type availabilityUsecase struct {
	db              *gorm.DB
	log             *logrus.Logger
	serviceRepo     repository.ServiceRepository
	scheduleRepo    repository.ScheduleRepository
	pointRepo       repository.ServicePointRepository
	appointmentRepo repository.AppointmentRepository
	policyRepo      repository.BranchPolicyRepository
	now             func() time.Time
}

func NewAvailabilityUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	serviceRepo repository.ServiceRepository,
	scheduleRepo repository.ScheduleRepository,
	pointRepo repository.ServicePointRepository,
	appointmentRepo repository.AppointmentRepository,
	policyRepo repository.BranchPolicyRepository,
) AvailabilityUsecase {
	return &availabilityUsecase{
		db:              db,
		log:             log,
		serviceRepo:     serviceRepo,
		scheduleRepo:    scheduleRepo,
		pointRepo:       pointRepo,
		appointmentRepo: appointmentRepo,
		policyRepo:      policyRepo,
		now:             time.Now,
	}
}

func (u *availabilityUsecase) GetAvailableSlots(ctx context.Context, serviceID uuid.UUID, date time.Time, servicePointID *uuid.UUID) (*dto.AvailabilityResponse, error) {
	db := u.db.WithContext(ctx)

	service, err := u.serviceRepo.FindByID(db, serviceID)
	if err != nil {
		u.log.Warnf("Failed to find service %s: %+v", serviceID, err)
		return nil, err
	}
	if service == nil || !service.IsActive {
		return nil, ErrServiceNotFound
	}

	policy, err := u.loadPolicy(db, service.BranchID)
	if err != nil {
		return nil, err
	}

	intervals, err := u.openIntervals(db, service, date)
	if err != nil {
		return nil, err
	}

	points, err := u.resolvePoints(db, service, servicePointID)
	if err != nil {
		return nil, err
	}

	response := &dto.AvailabilityResponse{
		ServiceID:       service.ID,
		Date:            date.Format("2006-01-02"),
		DurationMinutes: service.DurationMinutes,
		ServicePoints:   make([]dto.ServicePointSlots, 0, len(points)),
	}

	dayStart := startOfDay(date)
	dayEnd := dayStart.AddDate(0, 0, 1)
	now := u.now()

	for i := range points {
		point := &points[i]
		slots := []time.Time{}
		if len(intervals) > 0 {
			existing, err := u.appointmentRepo.FindActiveByServicePointAndRange(db, point.ID, dayStart, dayEnd)
			if err != nil {
				u.log.Warnf("Failed to load appointments for service point %s: %+v", point.ID, err)
				return nil, err
			}
			slots = applyBookingWindow(generateSlots(intervals, service.Duration(), existing), policy, now)
		}
		response.ServicePoints = append(response.ServicePoints, dto.ServicePointSlots{
			ServicePointID:   point.ID,
			ServicePointName: point.Name,
			Slots:            slots,
		})
	}

	return response, nil
}

// openIntervals resolves the merged open intervals of a service on a date.
// A day without active schedules yields no intervals, not an error.
func (u *availabilityUsecase) openIntervals(db *gorm.DB, service *entity.Service, date time.Time) ([]timeInterval, error) {
	schedules, err := u.scheduleRepo.FindActiveByServiceAndDay(db, service.ID, int(date.Weekday()))
	if err != nil {
		u.log.Warnf("Failed to load schedules for service %s: %+v", service.ID, err)
		return nil, err
	}
	return mergeScheduleIntervals(schedules, date)
}

func (u *availabilityUsecase) loadPolicy(db *gorm.DB, branchID uuid.UUID) (*entity.BranchPolicy, error) {
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

func (u *availabilityUsecase) resolvePoints(db *gorm.DB, service *entity.Service, servicePointID *uuid.UUID) ([]entity.ServicePoint, error) {
	if servicePointID == nil {
		points, err := u.pointRepo.FindActiveByService(db, service.ID)
		if err != nil {
			u.log.Warnf("Failed to list service points for service %s: %+v", service.ID, err)
			return nil, err
		}
		return points, nil
	}

	point, err := u.pointRepo.FindByID(db, *servicePointID)
	if err != nil {
		u.log.Warnf("Failed to find service point %s: %+v", *servicePointID, err)
		return nil, err
	}
	if point == nil || !point.IsActive {
		return nil, ErrServicePointNotFound
	}
	serves, err := u.pointRepo.ServesService(db, point.ID, service.ID)
	if err != nil {
		return nil, err
	}
	if !serves {
		return nil, ErrServiceNotOffered
	}
	return []entity.ServicePoint{*point}, nil
}
