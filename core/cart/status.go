package cart

type Status string

const (
	Opened      Status = "OPENED"
	Locked      Status = "LOCKED"
	Completed   Status = "COMPLETED"
	Deactivated Status = "DEACTIVATED"
)

// transitions is the full lifecycle table. Anything not listed here
// fails with InvalidTransitionError.
var transitions = map[Status][]Status{
	Opened:      {Deactivated, Locked},
	Locked:      {Opened, Completed},
	Deactivated: {},
	Completed:   {},
}

func (s Status) canTransitTo(target Status) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}
