package usecase

import (
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"branch-queue-engine/internal/domain/entity"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB mints a *gorm.DB over sqlmock. The fakes ignore the handle,
// so no expectations are registered.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Discard,
	})
	require.NoError(t, err)
	return db
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// stepClock returns a deterministic clock advancing one second per call.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	t := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

// In-memory fakes for the repository interfaces. They take the same
// *gorm.DB first argument as the real implementations and ignore it.

type fakeServiceRepo struct {
	services map[uuid.UUID]*entity.Service
}

func (f *fakeServiceRepo) FindByID(_ *gorm.DB, id uuid.UUID) (*entity.Service, error) {
	svc, ok := f.services[id]
	if !ok {
		return nil, nil
	}
	clone := *svc
	return &clone, nil
}

type fakeScheduleRepo struct {
	schedules []entity.Schedule
}

func (f *fakeScheduleRepo) FindActiveByServiceAndDay(_ *gorm.DB, serviceID uuid.UUID, dayOfWeek int) ([]entity.Schedule, error) {
	var out []entity.Schedule
	for _, s := range f.schedules {
		if s.ServiceID == serviceID && s.DayOfWeek == dayOfWeek && s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakePointRepo struct {
	points map[uuid.UUID]*entity.ServicePoint
	serves map[uuid.UUID]map[uuid.UUID]bool
}

func (f *fakePointRepo) FindByID(_ *gorm.DB, id uuid.UUID) (*entity.ServicePoint, error) {
	point, ok := f.points[id]
	if !ok {
		return nil, nil
	}
	clone := *point
	return &clone, nil
}

func (f *fakePointRepo) FindActiveByService(_ *gorm.DB, serviceID uuid.UUID) ([]entity.ServicePoint, error) {
	var out []entity.ServicePoint
	for id, point := range f.points {
		if point.IsActive && f.serves[id][serviceID] {
			out = append(out, *point)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakePointRepo) ServesService(_ *gorm.DB, servicePointID, serviceID uuid.UUID) (bool, error) {
	return f.serves[servicePointID][serviceID], nil
}

type fakePolicyRepo struct {
	policies map[uuid.UUID]*entity.BranchPolicy
}

func (f *fakePolicyRepo) FindByBranchID(_ *gorm.DB, branchID uuid.UUID) (*entity.BranchPolicy, error) {
	policy, ok := f.policies[branchID]
	if !ok {
		return nil, nil
	}
	clone := *policy
	return &clone, nil
}

type fakeFormRepo struct {
	forms map[uuid.UUID]*entity.IntakeForm
}

func (f *fakeFormRepo) FindByID(_ *gorm.DB, id uuid.UUID) (*entity.IntakeForm, error) {
	form, ok := f.forms[id]
	if !ok {
		return nil, nil
	}
	clone := *form
	return &clone, nil
}

// fakeAppointmentRepo keeps appointments in memory and enforces the same
// uniqueness rules as the schema: the confirmation code index, the
// partial slot-claim index and the partial serving index. Violations
// surface as *pgconn.PgError so the usecase translation path is
// exercised for real.
type fakeAppointmentRepo struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]*entity.Appointment
	services     map[uuid.UUID]*entity.Service

	createCalls int

	// codeCollisions forces the next N inserts to fail on the code
	// index, simulating concurrent inserts that won the same code.
	codeCollisions int

	// staleServingReads makes FindServingByServicePoint report an idle
	// point even when a ticket is serving, simulating a read that
	// raced a concurrent promotion.
	staleServingReads bool
}

func newFakeAppointmentRepo(services map[uuid.UUID]*entity.Service) *fakeAppointmentRepo {
	return &fakeAppointmentRepo{
		appointments: map[uuid.UUID]*entity.Appointment{},
		services:     services,
	}
}

func slotClaimActive(a *entity.Appointment) bool {
	return a.TicketNumber == nil && a.Status != entity.StatusCancelled && a.Status != entity.StatusNoShow
}

func (f *fakeAppointmentRepo) Create(_ *gorm.DB, appointment *entity.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++

	if f.codeCollisions > 0 {
		f.codeCollisions--
		return &pgconn.PgError{Code: "23505", ConstraintName: "idx_appointments_confirmation_code"}
	}

	for _, other := range f.appointments {
		if other.ConfirmationCode == appointment.ConfirmationCode {
			return &pgconn.PgError{Code: "23505", ConstraintName: "idx_appointments_confirmation_code"}
		}
		if slotClaimActive(other) && slotClaimActive(appointment) &&
			other.ServicePointID == appointment.ServicePointID &&
			other.ScheduledAt.Equal(appointment.ScheduledAt) {
			return &pgconn.PgError{Code: "23505", ConstraintName: "idx_appointments_slot_claim"}
		}
	}

	clone := *appointment
	f.appointments[appointment.ID] = &clone
	return nil
}

func (f *fakeAppointmentRepo) withService(a *entity.Appointment) entity.Appointment {
	clone := *a
	if svc, ok := f.services[a.ServiceID]; ok {
		clone.Service = *svc
	}
	return clone
}

func (f *fakeAppointmentRepo) FindByID(_ *gorm.DB, id uuid.UUID) (*entity.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.appointments[id]
	if !ok {
		return nil, nil
	}
	clone := f.withService(a)
	return &clone, nil
}

func (f *fakeAppointmentRepo) FindByConfirmationCode(_ *gorm.DB, code string) (*entity.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, a := range f.appointments {
		if a.ConfirmationCode == code {
			clone := f.withService(a)
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeAppointmentRepo) CodeExists(_ *gorm.DB, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, a := range f.appointments {
		if a.ConfirmationCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAppointmentRepo) FindActiveByServicePointAndRange(_ *gorm.DB, servicePointID uuid.UUID, from, to time.Time) ([]entity.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []entity.Appointment
	for _, a := range f.appointments {
		if a.ServicePointID != servicePointID || a.IsTerminal() {
			continue
		}
		if a.ScheduledAt.Before(from) || !a.ScheduledAt.Before(to) {
			continue
		}
		out = append(out, f.withService(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (f *fakeAppointmentRepo) FindWaitingByServicePoint(_ *gorm.DB, servicePointID uuid.UUID) ([]entity.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []entity.Appointment
	for _, a := range f.appointments {
		if a.ServicePointID == servicePointID && a.Status == entity.StatusWaiting {
			out = append(out, f.withService(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		if a.IsPriority != b.IsPriority {
			return a.IsPriority
		}
		at, bt := queuedOrCreated(a), queuedOrCreated(b)
		if !at.Equal(bt) {
			return at.Before(bt)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return out, nil
}

func queuedOrCreated(a *entity.Appointment) time.Time {
	if a.QueuedAt != nil {
		return *a.QueuedAt
	}
	return a.CreatedAt
}

func (f *fakeAppointmentRepo) FindServingByServicePoint(_ *gorm.DB, servicePointID uuid.UUID) (*entity.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.staleServingReads {
		return nil, nil
	}
	for _, a := range f.appointments {
		if a.ServicePointID == servicePointID && a.Status == entity.StatusServing {
			clone := f.withService(a)
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeAppointmentRepo) UpdateStatus(_ *gorm.DB, id uuid.UUID, from, to entity.AppointmentStatus, cancelReason string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.appointments[id]
	if !ok || a.Status != from {
		return 0, nil
	}
	if to == entity.StatusServing {
		for _, other := range f.appointments {
			if other.ID != id && other.ServicePointID == a.ServicePointID && other.Status == entity.StatusServing {
				return 0, &pgconn.PgError{Code: "23505", ConstraintName: "idx_appointments_serving"}
			}
		}
	}
	a.Status = to
	if cancelReason != "" {
		a.CancelReason = cancelReason
	}
	if to == entity.StatusWaiting && a.QueuedAt == nil {
		now := time.Now()
		a.QueuedAt = &now
	}
	return 1, nil
}

func (f *fakeAppointmentRepo) UpdateQueueInfo(_ *gorm.DB, id uuid.UUID, position, estimatedWaitMinutes int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if a, ok := f.appointments[id]; ok {
		a.QueuePosition = &position
		a.EstimatedWaitMinutes = &estimatedWaitMinutes
	}
	return nil
}

func (f *fakeAppointmentRepo) ClearQueueInfo(_ *gorm.DB, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if a, ok := f.appointments[id]; ok {
		a.QueuePosition = nil
		a.EstimatedWaitMinutes = nil
	}
	return nil
}

// snapshot returns the stored state of one appointment for assertions.
func (f *fakeAppointmentRepo) snapshot(id uuid.UUID) *entity.Appointment {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.appointments[id]
	if !ok {
		return nil
	}
	clone := *a
	return &clone
}

func (f *fakeAppointmentRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.appointments)
}
