package entity

// transitionMap lists the statuses reachable from each non-terminal status.
// Terminal statuses have no entry, so any transition attempted on them is
// rejected.
var transitionMap = map[AppointmentStatus][]AppointmentStatus{
	StatusScheduled: {StatusConfirmed, StatusWaiting, StatusCancelled},
	StatusConfirmed: {StatusWaiting, StatusCancelled},
	StatusWaiting:   {StatusServing, StatusCancelled, StatusNoShow},
	StatusServing:   {StatusCompleted, StatusNoShow},
}

// CanTransition reports whether moving from one status to another is
// allowed by the lifecycle state machine.
func CanTransition(from, to AppointmentStatus) bool {
	allowed, ok := transitionMap[from]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == to {
			return true
		}
	}
	return false
}

// ValidStatus reports whether the value is a known appointment status.
func ValidStatus(s AppointmentStatus) bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusWaiting, StatusServing,
		StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}
