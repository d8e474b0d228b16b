package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"branch-queue-engine/internal/delivery/dto"
	"branch-queue-engine/internal/domain/entity"
	"branch-queue-engine/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lifecycleFixture struct {
	usecase   *lifecycleUsecase
	queue     *queueUsecase
	serviceID uuid.UUID
	pointID   uuid.UUID
	branchID  uuid.UUID
	svcRepo   *fakeServiceRepo
	apptRepo  *fakeAppointmentRepo
	policies  *fakePolicyRepo
	date      time.Time
	now       time.Time
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()

	serviceID := uuid.New()
	pointID := uuid.New()
	branchID := uuid.New()
	date := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	now := date.AddDate(0, 0, -2)

	services := map[uuid.UUID]*entity.Service{
		serviceID: {ID: serviceID, BranchID: branchID, Name: "Notary", DurationMinutes: 30, IsActive: true},
	}
	svcRepo := &fakeServiceRepo{services: services}
	schedRepo := &fakeScheduleRepo{schedules: []entity.Schedule{
		{ID: 1, ServiceID: serviceID, DayOfWeek: int(date.Weekday()), StartTime: "09:00", EndTime: "17:00", IsActive: true},
	}}
	pointRepo := &fakePointRepo{
		points: map[uuid.UUID]*entity.ServicePoint{
			pointID: {ID: pointID, BranchID: branchID, Name: "Desk 1", IsActive: true},
		},
		serves: map[uuid.UUID]map[uuid.UUID]bool{
			pointID: {serviceID: true},
		},
	}
	apptRepo := newFakeAppointmentRepo(services)
	policies := &fakePolicyRepo{policies: map[uuid.UUID]*entity.BranchPolicy{}}
	forms := &fakeFormRepo{forms: map[uuid.UUID]*entity.IntakeForm{}}
	intake := service.NewIntakeValidator()
	log := testLogger()
	db := newTestDB(t)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sequence := service.NewTurnSequence(client, log, time.Hour)

	queue := NewQueueUsecase(db, log, svcRepo, pointRepo, apptRepo, policies, forms, intake, sequence).(*queueUsecase)
	t.Cleanup(queue.Stop)
	queue.now = stepClock(now)

	reservation := NewReservationUsecase(db, log, svcRepo, schedRepo, pointRepo, apptRepo, policies, forms, intake).(*reservationUsecase)
	reservation.now = func() time.Time { return now }

	u := NewLifecycleUsecase(db, log, apptRepo, policies, queue, reservation).(*lifecycleUsecase)
	u.now = func() time.Time { return now }

	return &lifecycleFixture{
		usecase:   u,
		queue:     queue,
		serviceID: serviceID,
		pointID:   pointID,
		branchID:  branchID,
		svcRepo:   svcRepo,
		apptRepo:  apptRepo,
		policies:  policies,
		date:      date,
		now:       now,
	}
}

// book inserts a booking directly into the fake store.
func (f *lifecycleFixture) book(t *testing.T, scheduledAt time.Time, status entity.AppointmentStatus) *entity.Appointment {
	t.Helper()
	appointment := &entity.Appointment{
		ID:               uuid.New(),
		ServiceID:        f.serviceID,
		ServicePointID:   f.pointID,
		BranchID:         f.branchID,
		ScheduledAt:      scheduledAt,
		ConfirmationCode: "AP-20260910-" + uuid.NewString()[:6],
		Status:           status,
		CustomerName:     "Booked Customer",
	}
	require.NoError(t, f.apptRepo.Create(nil, appointment))
	return appointment
}

func TestTransitionStatusRejectsInvalidMove(t *testing.T) {
	f := newLifecycleFixture(t)
	appointment := f.book(t, at(f.date, 10, 0), entity.StatusScheduled)

	_, err := f.usecase.TransitionStatus(context.Background(), appointment.ID, entity.StatusCompleted, "staff")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, entity.StatusScheduled, f.apptRepo.snapshot(appointment.ID).Status)

	_, err = f.usecase.TransitionStatus(context.Background(), appointment.ID, entity.AppointmentStatus("pending"), "staff")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionStatusTerminalStatesAreFinal(t *testing.T) {
	f := newLifecycleFixture(t)
	appointment := f.book(t, at(f.date, 10, 0), entity.StatusCompleted)

	for _, to := range []entity.AppointmentStatus{
		entity.StatusScheduled, entity.StatusWaiting, entity.StatusServing,
	} {
		_, err := f.usecase.TransitionStatus(context.Background(), appointment.ID, to, "staff")
		assert.ErrorIs(t, err, ErrInvalidTransition, "completed -> %s", to)
	}
}

func TestTransitionStatusUnknownAppointment(t *testing.T) {
	f := newLifecycleFixture(t)

	_, err := f.usecase.TransitionStatus(context.Background(), uuid.New(), entity.StatusConfirmed, "staff")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestCheckInJoinsQueue(t *testing.T) {
	f := newLifecycleFixture(t)
	appointment := f.book(t, at(f.date, 10, 0), entity.StatusConfirmed)

	resp, err := f.usecase.CheckIn(context.Background(), appointment.ID)
	require.NoError(t, err)

	assert.Equal(t, string(entity.StatusWaiting), resp.Status)
	require.NotNil(t, resp.QueuePosition)
	assert.Equal(t, 1, *resp.QueuePosition)
	assert.Equal(t, 0, *resp.EstimatedWaitMinutes)
	assert.NotNil(t, f.apptRepo.snapshot(appointment.ID).QueuedAt)
}

func TestServingIsExclusivePerPoint(t *testing.T) {
	f := newLifecycleFixture(t)
	first := f.book(t, at(f.date, 10, 0), entity.StatusWaiting)
	second := f.book(t, at(f.date, 10, 30), entity.StatusWaiting)

	_, err := f.usecase.TransitionStatus(context.Background(), first.ID, entity.StatusServing, "staff")
	require.NoError(t, err)

	_, err = f.usecase.TransitionStatus(context.Background(), second.ID, entity.StatusServing, "staff")
	assert.ErrorIs(t, err, ErrServicePointBusy)
	assert.Equal(t, entity.StatusWaiting, f.apptRepo.snapshot(second.ID).Status)
}

func TestServingExclusiveWhenAdvisoryReadRaces(t *testing.T) {
	f := newLifecycleFixture(t)
	f.book(t, at(f.date, 10, 0), entity.StatusServing)
	second := f.book(t, at(f.date, 10, 30), entity.StatusWaiting)

	// A concurrent promotion can land between the advisory read and the
	// status update; the serving index has to catch it on its own.
	f.apptRepo.staleServingReads = true

	_, err := f.usecase.TransitionStatus(context.Background(), second.ID, entity.StatusServing, "staff")
	assert.ErrorIs(t, err, ErrServicePointBusy)
	assert.Equal(t, entity.StatusWaiting, f.apptRepo.snapshot(second.ID).Status)
}

func TestConcurrentPromotionsHaveOneWinner(t *testing.T) {
	f := newLifecycleFixture(t)
	f.apptRepo.staleServingReads = true

	const contenders = 8
	tickets := make([]*entity.Appointment, contenders)
	for i := range tickets {
		tickets[i] = f.book(t, at(f.date, 10+i/2, (i%2)*30), entity.StatusWaiting)
	}

	var wg sync.WaitGroup
	results := make([]error, contenders)
	for i, ticket := range tickets {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, results[i] = f.usecase.TransitionStatus(context.Background(), id, entity.StatusServing, "staff")
		}(i, ticket.ID)
	}
	wg.Wait()

	winners, busy := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, ErrServicePointBusy):
			busy++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, contenders-1, busy)

	serving := 0
	for _, ticket := range tickets {
		if f.apptRepo.snapshot(ticket.ID).Status == entity.StatusServing {
			serving++
		}
	}
	assert.Equal(t, 1, serving)
}

func TestPromotingTicketRepositionsQueue(t *testing.T) {
	f := newLifecycleFixture(t)
	next := f.book(t, at(f.date, 10, 0), entity.StatusWaiting)
	behind := f.book(t, at(f.date, 10, 30), entity.StatusWaiting)

	_, err := f.usecase.TransitionStatus(context.Background(), next.ID, entity.StatusServing, "staff")
	require.NoError(t, err)

	// Leaving the waiting set clears the promoted ticket's queue fields
	// and closes the gap behind it.
	promoted := f.apptRepo.snapshot(next.ID)
	assert.Equal(t, entity.StatusServing, promoted.Status)
	assert.Nil(t, promoted.QueuePosition)

	stored := f.apptRepo.snapshot(behind.ID)
	require.NotNil(t, stored.QueuePosition)
	assert.Equal(t, 1, *stored.QueuePosition)
	assert.Equal(t, 0, *stored.EstimatedWaitMinutes)
}

func TestCancelInsideWindow(t *testing.T) {
	f := newLifecycleFixture(t)
	// Scheduled 48h out with a 24h window: still cancellable.
	appointment := f.book(t, at(f.date, 10, 0), entity.StatusScheduled)

	resp, err := f.usecase.CancelAppointment(context.Background(), appointment.ID, "customer request")
	require.NoError(t, err)
	assert.Equal(t, string(entity.StatusCancelled), resp.Status)
	assert.Equal(t, "customer request", f.apptRepo.snapshot(appointment.ID).CancelReason)
}

func TestCancelWindowClosed(t *testing.T) {
	f := newLifecycleFixture(t)
	appointment := f.book(t, f.now.Add(time.Hour), entity.StatusConfirmed)

	_, err := f.usecase.CancelAppointment(context.Background(), appointment.ID, "too late")
	assert.ErrorIs(t, err, ErrPolicyViolation)
	assert.Equal(t, entity.StatusConfirmed, f.apptRepo.snapshot(appointment.ID).Status)
}

func TestCancelWaitingTicketIgnoresWindow(t *testing.T) {
	f := newLifecycleFixture(t)
	ticket := f.book(t, f.now.Add(time.Minute), entity.StatusWaiting)
	require.NoError(t, f.apptRepo.UpdateQueueInfo(nil, ticket.ID, 1, 0))

	resp, err := f.usecase.CancelAppointment(context.Background(), ticket.ID, "left the branch")
	require.NoError(t, err)
	assert.Equal(t, string(entity.StatusCancelled), resp.Status)

	stored := f.apptRepo.snapshot(ticket.ID)
	assert.Nil(t, stored.QueuePosition)
	assert.Nil(t, stored.EstimatedWaitMinutes)
}

func TestCancellationDisabledByPolicy(t *testing.T) {
	f := newLifecycleFixture(t)
	f.policies.policies[f.branchID] = &entity.BranchPolicy{
		BranchID:              f.branchID,
		MaxAdvanceBookingDays: 30,
		AllowSameDayBooking:   true,
		AllowCancellation:     false,
		CancellationHours:     24,
		MaxReschedules:        3,
	}
	appointment := f.book(t, at(f.date, 10, 0), entity.StatusScheduled)

	_, err := f.usecase.CancelAppointment(context.Background(), appointment.ID, "blocked")
	assert.ErrorIs(t, err, ErrPolicyViolation)
}

func TestRescheduleMovesBooking(t *testing.T) {
	f := newLifecycleFixture(t)
	appointment := f.book(t, at(f.date, 10, 0), entity.StatusScheduled)

	resp, err := f.usecase.Reschedule(context.Background(), appointment.ID, &dto.RescheduleAppointmentRequest{
		ServicePointID: f.pointID,
		ScheduledAt:    at(f.date, 14, 0),
	})
	require.NoError(t, err)

	assert.Equal(t, at(f.date, 14, 0), resp.ScheduledAt)
	assert.Equal(t, 1, resp.RescheduleCount)
	assert.NotEqual(t, appointment.ID, resp.ID)

	original := f.apptRepo.snapshot(appointment.ID)
	assert.Equal(t, entity.StatusCancelled, original.Status)
	assert.Equal(t, "rescheduled", original.CancelReason)

	replacement := f.apptRepo.snapshot(resp.ID)
	require.NotNil(t, replacement.RescheduledFrom)
	assert.Equal(t, appointment.ID, *replacement.RescheduledFrom)
}

func TestRescheduleLimitEnforced(t *testing.T) {
	f := newLifecycleFixture(t)
	appointment := f.book(t, at(f.date, 10, 0), entity.StatusScheduled)
	f.apptRepo.mu.Lock()
	f.apptRepo.appointments[appointment.ID].RescheduleCount = 3
	f.apptRepo.mu.Unlock()

	_, err := f.usecase.Reschedule(context.Background(), appointment.ID, &dto.RescheduleAppointmentRequest{
		ServicePointID: f.pointID,
		ScheduledAt:    at(f.date, 14, 0),
	})
	assert.ErrorIs(t, err, ErrPolicyViolation)
	assert.Equal(t, entity.StatusScheduled, f.apptRepo.snapshot(appointment.ID).Status)
}

func TestRescheduleToTakenSlotLeavesOriginal(t *testing.T) {
	f := newLifecycleFixture(t)
	appointment := f.book(t, at(f.date, 10, 0), entity.StatusScheduled)
	f.book(t, at(f.date, 14, 0), entity.StatusScheduled)

	_, err := f.usecase.Reschedule(context.Background(), appointment.ID, &dto.RescheduleAppointmentRequest{
		ServicePointID: f.pointID,
		ScheduledAt:    at(f.date, 14, 0),
	})
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.Equal(t, entity.StatusScheduled, f.apptRepo.snapshot(appointment.ID).Status)
}

func TestGetByConfirmationCode(t *testing.T) {
	f := newLifecycleFixture(t)
	appointment := f.book(t, at(f.date, 10, 0), entity.StatusScheduled)

	resp, err := f.usecase.GetByConfirmationCode(context.Background(), appointment.ConfirmationCode)
	require.NoError(t, err)
	assert.Equal(t, appointment.ID, resp.ID)

	_, err = f.usecase.GetByConfirmationCode(context.Background(), "AP-00000000-FFFFFF")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}
