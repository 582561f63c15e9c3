package fsm

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type ConversationContext struct {
	Ctx    context.Context
	Bot    *bot.Bot
	Update *models.Update
	UserID int64
	Step   Step
}

func (c *ConversationContext) Message() *models.Message {
	return c.Update.Message
}

// CallbackData returns the data of a callback update, empty for messages.
func (c *ConversationContext) CallbackData() string {
	if c.Update.CallbackQuery == nil {
		return ""
	}
	return c.Update.CallbackQuery.Data
}

func (c *ConversationContext) SendMessage(text string, markup models.ReplyMarkup) (int, error) {
	params := &bot.SendMessageParams{
		ChatID:    c.UserID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	msg, err := c.Bot.SendMessage(c.Ctx, params)
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

// AnswerCallback acknowledges a callback so the client stops its spinner.
func (c *ConversationContext) AnswerCallback() {
	if c.Update.CallbackQuery == nil {
		return
	}
	c.Bot.AnswerCallbackQuery(c.Ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: c.Update.CallbackQuery.ID,
	})
}
