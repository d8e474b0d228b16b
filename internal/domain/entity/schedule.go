package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Schedule is a recurring weekly availability window for a service.
// StartTime/EndTime are wall-clock "HH:MM" strings; DayOfWeek follows
// time.Weekday numbering (0 = Sunday).
type Schedule struct {
	ID        int       `gorm:"primaryKey;autoIncrement" json:"id"`
	ServiceID uuid.UUID `gorm:"type:uuid;not null;index" json:"service_id"`
	DayOfWeek int       `gorm:"not null;index" json:"day_of_week"`
	StartTime string    `gorm:"type:time;not null" json:"start_time"`
	EndTime   string    `gorm:"type:time;not null" json:"end_time"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Schedule) TableName() string {
	return "schedules"
}

// IntervalOn anchors the window on a calendar date, producing an absolute
// [start, end) interval in that date's location.
func (s *Schedule) IntervalOn(date time.Time) (start, end time.Time, err error) {
	start, err = combineDateAndClock(date, s.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("schedule %d start_time: %w", s.ID, err)
	}
	end, err = combineDateAndClock(date, s.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("schedule %d end_time: %w", s.ID, err)
	}
	return start, end, nil
}

func combineDateAndClock(date time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		// Postgres time columns may come back with seconds attached.
		t, err = time.Parse("15:04:05", clock)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid wall-clock value %q", clock)
		}
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location()), nil
}
