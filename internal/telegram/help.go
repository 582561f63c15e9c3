package telegram

import (
	"context"
	"errors"
	"log/slog"

	"photo-intake-bot/internal/session"
	"photo-intake-bot/internal/telegram/internal/fsm"
	"photo-intake-bot/internal/telegram/internal/presentation"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

func (b *Bot) handleHelpCmd(ctx context.Context, api *bot.Bot, update *models.Update) {
	b.SendMessage(ctx, htmlMessage(update.Message.From.ID, presentation.HelpMsg(), nil))
}

func (b *Bot) handleStartCmd(ctx context.Context, api *bot.Bot, update *models.Update) {
	userID := update.Message.From.ID
	b.collector.Drop(userID)
	b.intake.Start(userID)
	b.SendMessage(ctx, htmlMessage(userID, presentation.GreetingMsg(), presentation.GreetingKbd()))
}

func (b *Bot) handleCancelCmd(ctx context.Context, api *bot.Bot, update *models.Update) {
	userID := update.Message.From.ID
	b.collector.Drop(userID)
	b.intake.Cancel(ctx, userID)
	b.intake.Start(userID)
	b.SendMessage(ctx, htmlMessage(userID, presentation.OrderCancelledMsg(), presentation.GreetingKbd()))
}

// handleFallback answers input the current step has no handler for with the prompt of
// that step. The session is left as it is.
func (b *Bot) handleFallback(c *fsm.ConversationContext) error {
	c.AnswerCallback()

	var err error
	switch c.Step {
	case fsm.StepIdle:
		_, err = c.SendMessage(presentation.GreetingMsg(), presentation.GreetingKbd())
	case fsm.StepAwaitingOrderNumber:
		_, err = c.SendMessage(presentation.AskOrderNumberMsg(), nil)
	default:
		if _, err = c.SendMessage(presentation.ImagesOnlyMsg(), nil); err == nil {
			_, err = c.SendMessage(presentation.SendAsFileInstructionMsg(), nil)
		}
	}
	return err
}

func (b *Bot) handleEntryCallback(c *fsm.ConversationContext) error {
	c.AnswerCallback()
	if c.CallbackData() != presentation.CbEnterOrder {
		return b.handleFallback(c)
	}
	b.intake.Start(c.UserID)
	_, err := c.SendMessage(presentation.AskOrderNumberMsg(), nil)
	return err
}

// reportError tells the user an action failed. Unexpected input gets a neutral answer,
// everything else is logged.
func (b *Bot) reportError(c *fsm.ConversationContext, err error) error {
	if errors.Is(err, session.ErrUnexpectedInput) {
		_, sendErr := c.SendMessage(presentation.UnexpectedInputMsg(), nil)
		return sendErr
	}
	slog.Error("Intake operation failed", "error", err, "user", c.UserID, "step", c.Step)
	_, sendErr := c.SendMessage(presentation.GenericErrorMsg(), nil)
	return sendErr
}
