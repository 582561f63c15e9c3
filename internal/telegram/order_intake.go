package telegram

import (
	"errors"

	"photo-intake-bot/internal/session"
	"photo-intake-bot/internal/telegram/internal/fsm"
	"photo-intake-bot/internal/telegram/internal/presentation"
)

// handleIdleText takes text typed outside of a session as an order number, as the
// greeting invites.
func (b *Bot) handleIdleText(c *fsm.ConversationContext) error {
	b.intake.Start(c.UserID)
	return b.handleOrderNumber(c)
}

func (b *Bot) handleOrderNumber(c *fsm.ConversationContext) error {
	opened, err := b.intake.SubmitOrderNumber(c.Ctx, c.UserID, c.Message().Text)
	if errors.Is(err, session.ErrOrderUnavailable) {
		if _, err := c.SendMessage(presentation.OrderUnavailableMsg(), nil); err != nil {
			return err
		}
		_, err = c.SendMessage(presentation.AskOrderNumberMsg(), nil)
		return err
	}
	if err != nil {
		return b.reportError(c, err)
	}

	if _, err := c.SendMessage(presentation.OrderOpenedMsg(opened), nil); err != nil {
		return err
	}
	if opened.Review != nil {
		_, err = c.SendMessage(presentation.CompleteMsg(opened.Review), presentation.CompleteKbd(opened.Progress))
		return err
	}
	if _, err := c.SendMessage(presentation.SendAsFileInstructionMsg(), nil); err != nil {
		return err
	}
	if opened.Resumed {
		_, err = c.SendMessage(presentation.ProgressMsg(opened.Progress), presentation.ProgressKbd())
	}
	return err
}
