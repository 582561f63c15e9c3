package notify

import (
	"context"
	"fmt"
	"html"

	"photo-intake-bot/internal/pkg/model"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramNotifier messages the operator chat.
type TelegramNotifier struct {
	api        sender
	operatorID int64
}

func NewTelegramNotifier(api sender, operatorID int64) *TelegramNotifier {
	return &TelegramNotifier{api: api, operatorID: operatorID}
}

func (t *TelegramNotifier) Notify(ctx context.Context, dispatch model.Dispatch) error {
	_, err := t.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    t.operatorID,
		Text:      operatorMessage(dispatch),
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("failed to message operator: %w", err)
	}
	return nil
}

func operatorMessage(d model.Dispatch) string {
	text := fmt.Sprintf("Заказ <b>%s</b> собран и подтверждён, надо печатать.\nФото: %d из %d",
		html.EscapeString(d.OrderNumber), d.Photos, d.Required)
	if d.Incomplete {
		text += "\n⚠️ Заказ неполный, клиент подтвердил отправку."
	}
	return text
}
