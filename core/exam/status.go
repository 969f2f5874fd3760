package exam

// lifecycle order of the non terminal statuses
var nextStatus = map[Status]Status{
	StatusDraft:     StatusScheduled,
	StatusScheduled: StatusOngoing,
	StatusOngoing:   StatusCompleted,
}

func (s Status) IsValid() bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Next returns the forward successor of s. Terminal statuses return themselves and false.
func (s Status) Next() (Status, bool) {
	next, ok := nextStatus[s]
	if !ok {
		return s, false
	}
	return next, true
}

// Advance moves s one step forward; terminal statuses are returned unchanged.
func (s Status) Advance() Status {
	next, _ := s.Next()
	return next
}

// Cancel moves s to CANCELLED; terminal statuses are returned unchanged.
func (s Status) Cancel() Status {
	if s.IsTerminal() {
		return s
	}
	return StatusCancelled
}

// Transitions lists the statuses an actor may move s to.
func (s Status) Transitions() []Status {
	if s.IsTerminal() {
		return nil
	}
	next, _ := s.Next()
	return []Status{next, StatusCancelled}
}

// CanTransition reports whether moving from s to `to` is allowed.
func (s Status) CanTransition(to Status) bool {
	for _, st := range s.Transitions() {
		if st == to {
			return true
		}
	}
	return false
}
