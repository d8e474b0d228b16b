package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"branch-queue-engine/internal/converter"
	"branch-queue-engine/internal/delivery/dto"
	"branch-queue-engine/internal/domain/entity"
	"branch-queue-engine/internal/domain/repository"
	"branch-queue-engine/internal/service"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var ErrQueueUnavailable = errors.New("queue is unavailable")

const (
	// Interval for cleaning up stale per-point mutexes
	mutexCleanupInterval = 10 * time.Minute

	// How long a mutex must be unused before cleanup
	mutexStaleThreshold = 10 * time.Minute
)

type QueueUsecase interface {
	// IssueTurn appends an immediate kiosk ticket to the waiting list of a
	// service point and returns it with its live position and estimate.
	IssueTurn(ctx context.Context, req *dto.IssueTurnRequest) (*dto.AppointmentResponse, error)

	// GetQueueSnapshot returns the ordered waiting list and the currently
	// serving ticket of a service point. Reads are not serialized against
	// writers and may be slightly stale.
	GetQueueSnapshot(ctx context.Context, servicePointID uuid.UUID) (*dto.QueueSnapshotResponse, error)

	// Reposition recomputes queue positions and wait estimates for the
	// waiting set of a service point. Called whenever a ticket enters or
	// leaves the waiting status.
	Reposition(ctx context.Context, servicePointID uuid.UUID) error

	// Stop shuts down the background mutex cleanup. Safe to call multiple
	// times.
	Stop()
}

// queueUsecase serializes all position and sequence mutations of one
// service point behind a per-point mutex; unrelated service points never
// contend.
//
// Lock ordering: acquire the point mutex FIRST, then touch Redis/DB.
type queueUsecase struct {
	db              *gorm.DB
	log             *logrus.Logger
	serviceRepo     repository.ServiceRepository
	pointRepo       repository.ServicePointRepository
	appointmentRepo repository.AppointmentRepository
	policyRepo      repository.BranchPolicyRepository
	formRepo        repository.IntakeFormRepository
	intake          *service.IntakeValidator
	sequence        *service.TurnSequence
	now             func() time.Time

	// Per-service-point mutex for position/sequence mutations
	pointMu sync.Map // map[uuid.UUID]*mutexWithTimestamp

	// Graceful shutdown
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  atomic.Bool
}

// mutexWithTimestamp tracks mutex usage for cleanup
type mutexWithTimestamp struct {
	mu       sync.Mutex
	lastUsed atomic.Int64 // Unix timestamp
}

func NewQueueUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	serviceRepo repository.ServiceRepository,
	pointRepo repository.ServicePointRepository,
	appointmentRepo repository.AppointmentRepository,
	policyRepo repository.BranchPolicyRepository,
	formRepo repository.IntakeFormRepository,
	intake *service.IntakeValidator,
	sequence *service.TurnSequence,
) QueueUsecase {
	u := &queueUsecase{
		db:              db,
		log:             log,
		serviceRepo:     serviceRepo,
		pointRepo:       pointRepo,
		appointmentRepo: appointmentRepo,
		policyRepo:      policyRepo,
		formRepo:        formRepo,
		intake:          intake,
		sequence:        sequence,
		now:             time.Now,
		stopChan:        make(chan struct{}),
	}

	u.wg.Add(1)
	go u.cleanupMutexMapLoop()

	return u
}

func (u *queueUsecase) Stop() {
	if u.stopped.CompareAndSwap(false, true) {
		close(u.stopChan)
		u.wg.Wait()
	}
}

// IssueTurn creates an immediate queue ticket.
//
// Flow:
// 1. Validate service and service point
// 2. Validate intake data against the service's bound form
// 3. Under the point mutex: obtain the daily ticket number from Redis,
//    insert the ticket as waiting, recompute the whole waiting set
func (u *queueUsecase) IssueTurn(ctx context.Context, req *dto.IssueTurnRequest) (*dto.AppointmentResponse, error) {
	db := u.db.WithContext(ctx)

	svc, point, err := u.validateTarget(db, req.ServiceID, req.ServicePointID)
	if err != nil {
		return nil, err
	}

	policy, err := u.policyRepo.FindByBranchID(db, svc.BranchID)
	if err != nil {
		u.log.Warnf("Failed to load policy for branch %s: %+v", svc.BranchID, err)
		return nil, err
	}
	if policy == nil {
		policy = entity.DefaultBranchPolicy(svc.BranchID)
	}

	if err := u.validateIntake(db, svc, req.Customer.IntakeData); err != nil {
		return nil, err
	}

	mt := u.getPointMutex(point.ID)
	mt.mu.Lock()
	defer mt.mu.Unlock()

	now := u.now()
	ticketNumber, err := u.sequence.Next(ctx, point.ID, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}

	ticket := &entity.Appointment{
		ID:             uuid.New(),
		ServiceID:      svc.ID,
		ServicePointID: point.ID,
		BranchID:       svc.BranchID,
		ScheduledAt:    now,
		Status:         entity.StatusWaiting,
		CustomerName:   req.Customer.Name,
		CustomerEmail:  req.Customer.Email,
		CustomerPhone:  req.Customer.Phone,
		IntakeData:     entity.StringMap(req.Customer.IntakeData),
		TicketNumber:   &ticketNumber,
		QueuedAt:       &now,
		IsPriority:     policy.IsPriorityService(svc.ID),
		CreatedAt:      now,
	}

	inserted := false
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := u.newTicketCode(db, ticketNumber)
		if err != nil {
			return nil, err
		}
		ticket.ConfirmationCode = code

		err = u.appointmentRepo.Create(db, ticket)
		if err == nil {
			inserted = true
			break
		}
		if isUniqueViolation(err, codeConstraint) {
			// Lost a code race to a concurrent insert; mint a new one.
			u.log.Warnf("Ticket code collision on attempt %d, retrying", attempt+1)
			continue
		}
		u.log.Errorf("Failed to insert ticket for service point %s: %+v", point.ID, err)
		return nil, err
	}
	if !inserted {
		return nil, fmt.Errorf("ticket code generation exhausted %d attempts", maxCodeAttempts)
	}

	waiting, err := u.recomputeLocked(db, point.ID)
	if err != nil {
		return nil, err
	}

	for i := range waiting {
		if waiting[i].ID == ticket.ID {
			ticket.QueuePosition = waiting[i].QueuePosition
			ticket.EstimatedWaitMinutes = waiting[i].EstimatedWaitMinutes
			break
		}
	}

	u.log.Infof("Turn issued: id=%s, point=%s, number=%d, position=%d, priority=%v",
		ticket.ID, point.ID, ticketNumber, derefInt(ticket.QueuePosition), ticket.IsPriority)

	ticket.Service = *svc
	ticket.ServicePoint = *point
	return converter.AppointmentToResponse(ticket), nil
}

func (u *queueUsecase) GetQueueSnapshot(ctx context.Context, servicePointID uuid.UUID) (*dto.QueueSnapshotResponse, error) {
	db := u.db.WithContext(ctx)

	point, err := u.pointRepo.FindByID(db, servicePointID)
	if err != nil {
		u.log.Warnf("Failed to find service point %s: %+v", servicePointID, err)
		return nil, err
	}
	if point == nil {
		return nil, ErrServicePointNotFound
	}

	waiting, err := u.appointmentRepo.FindWaitingByServicePoint(db, servicePointID)
	if err != nil {
		return nil, err
	}
	serving, err := u.appointmentRepo.FindServingByServicePoint(db, servicePointID)
	if err != nil {
		return nil, err
	}

	return &dto.QueueSnapshotResponse{
		ServicePointID: servicePointID,
		Waiting:        converter.AppointmentsToResponses(waiting),
		Serving:        converter.AppointmentToResponse(serving),
	}, nil
}

func (u *queueUsecase) Reposition(ctx context.Context, servicePointID uuid.UUID) error {
	mt := u.getPointMutex(servicePointID)
	mt.mu.Lock()
	defer mt.mu.Unlock()

	_, err := u.recomputeLocked(u.db.WithContext(ctx), servicePointID)
	return err
}

// recomputeLocked rewrites queue_position (dense 1..N) and the wait
// estimate of every waiting ticket at a service point. The estimate of a
// ticket is the sum of the service durations of the tickets strictly ahead
// of it, each with its own service's duration. Caller holds the point
// mutex.
func (u *queueUsecase) recomputeLocked(db *gorm.DB, servicePointID uuid.UUID) ([]entity.Appointment, error) {
	waiting, err := u.appointmentRepo.FindWaitingByServicePoint(db, servicePointID)
	if err != nil {
		u.log.Warnf("Failed to load waiting set for service point %s: %+v", servicePointID, err)
		return nil, err
	}

	minutesAhead := 0
	for i := range waiting {
		ticket := &waiting[i]
		position := i + 1

		if ticket.QueuePosition == nil || *ticket.QueuePosition != position ||
			ticket.EstimatedWaitMinutes == nil || *ticket.EstimatedWaitMinutes != minutesAhead {
			if err := u.appointmentRepo.UpdateQueueInfo(db, ticket.ID, position, minutesAhead); err != nil {
				u.log.Warnf("Failed to update queue info for ticket %s: %+v", ticket.ID, err)
				return nil, err
			}
		}
		pos := position
		wait := minutesAhead
		ticket.QueuePosition = &pos
		ticket.EstimatedWaitMinutes = &wait

		minutesAhead += ticket.Service.DurationMinutes
	}

	return waiting, nil
}

func (u *queueUsecase) validateTarget(db *gorm.DB, serviceID, servicePointID uuid.UUID) (*entity.Service, *entity.ServicePoint, error) {
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

func (u *queueUsecase) validateIntake(db *gorm.DB, svc *entity.Service, values map[string]string) error {
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

// newTicketCode mints a display-safe ticket code. The daily sequence is
// embedded as the suffix; the random part keeps codes globally unique
// across days and service points.
func (u *queueUsecase) newTicketCode(db *gorm.DB, ticketNumber int) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		randomBytes := make([]byte, 2)
		if _, err := rand.Read(randomBytes); err != nil {
			return "", fmt.Errorf("ticket code entropy: %w", err)
		}
		code := fmt.Sprintf("TK-%04X-%03d", randomBytes, ticketNumber)

		exists, err := u.appointmentRepo.CodeExists(db, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("ticket code generation exhausted %d attempts", maxCodeAttempts)
}

// getPointMutex returns the mutex of a specific service point.
func (u *queueUsecase) getPointMutex(servicePointID uuid.UUID) *mutexWithTimestamp {
	mt, _ := u.pointMu.LoadOrStore(servicePointID, &mutexWithTimestamp{})
	result := mt.(*mutexWithTimestamp)
	result.lastUsed.Store(time.Now().Unix())
	return result
}

// cleanupMutexMapLoop runs in background to clean stale mutexes.
func (u *queueUsecase) cleanupMutexMapLoop() {
	defer u.wg.Done()

	ticker := time.NewTicker(mutexCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-u.stopChan:
			return
		case <-ticker.C:
			u.cleanupStaleMutexes()
		}
	}
}

// cleanupStaleMutexes removes unused mutexes. TryLock first; a held mutex
// is in use, and lastUsed is re-checked inside the lock so a fresh user
// cannot be swept.
func (u *queueUsecase) cleanupStaleMutexes() {
	cutoff := time.Now().Add(-mutexStaleThreshold).Unix()
	var cleaned int

	u.pointMu.Range(func(key, value any) bool {
		mt, ok := value.(*mutexWithTimestamp)
		if !ok {
			return true
		}
		if mt.mu.TryLock() {
			if mt.lastUsed.Load() < cutoff {
				u.pointMu.Delete(key)
				cleaned++
			}
			mt.mu.Unlock()
		}
		return true
	})

	if cleaned > 0 {
		u.log.Debugf("Cleaned up %d stale service point mutexes", cleaned)
	}
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
