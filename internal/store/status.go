package store

// Status is the lifecycle state of a project record.
//
// The machine is small and closed: generating is the only initial state,
// completed and error are terminal, and nothing leaves a terminal state.
// A failed generation is not retried; a new request produces a new record.
type Status string

const (
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusGenerating, StatusCompleted, StatusError:
		return true
	}
	return false
}

// Terminal reports whether s absorbs: no transition leads out of it.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// CanTransition reports whether s -> to is a legal transition.
func (s Status) CanTransition(to Status) bool {
	return s == StatusGenerating && to.Terminal()
}
