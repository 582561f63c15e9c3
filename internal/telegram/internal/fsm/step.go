package fsm

// Step is the conversation step a handler is registered for. The bot derives it from the
// intake session on every update, the router keeps no state of its own.
type Step string

const (
	StepIdle                Step = "idle"
	StepAwaitingOrderNumber Step = "awaiting_order_number"
	StepAwaitingPhotos      Step = "awaiting_photos"
	StepComplete            Step = "complete"
	StepEditing             Step = "editing"
)

// StepFunc resolves the current step of a user.
type StepFunc func(userID int64) Step
