package session

type State int

const (
	StateIdle State = iota
	StateAwaitingOrderNumber
	StateAwaitingPhotos
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingOrderNumber:
		return "awaiting_order_number"
	case StateAwaitingPhotos:
		return "awaiting_photos"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// HasOrder reports whether the state is bound to a resolved order.
func (s State) HasOrder() bool {
	return s == StateAwaitingPhotos || s == StateComplete
}
