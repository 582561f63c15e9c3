package telegram

import (
	"photo-intake-bot/internal/session"
	"photo-intake-bot/internal/telegram/internal/fsm"
)

func stepFor(s session.Session) fsm.Step {
	switch s.State {
	case session.StateAwaitingOrderNumber:
		return fsm.StepAwaitingOrderNumber
	case session.StateAwaitingPhotos:
		if s.Editing {
			return fsm.StepEditing
		}
		return fsm.StepAwaitingPhotos
	case session.StateComplete:
		if s.Editing {
			return fsm.StepEditing
		}
		return fsm.StepComplete
	default:
		return fsm.StepIdle
	}
}
