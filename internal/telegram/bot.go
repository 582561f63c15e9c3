package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"photo-intake-bot/internal/pkg/config"
	"photo-intake-bot/internal/session"
	"photo-intake-bot/internal/telegram/internal/fsm"
	"photo-intake-bot/internal/telegram/internal/media"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// lossyPromptDelay is how long an album of lossy photos may keep arriving before the
// single prompt for all of them is sent.
const lossyPromptDelay = 2 * time.Second

// Intake is the session machine as seen by the chat handlers.
type Intake interface {
	Snapshot(userID int64) session.Session
	Start(userID int64) session.Session
	SubmitOrderNumber(ctx context.Context, userID int64, text string) (*session.Opened, error)
	SubmitPhoto(ctx context.Context, userID int64, up session.Upload) (*session.PhotoResult, error)
	ConfirmPending(ctx context.Context, userID int64) ([]*session.PhotoResult, error)
	SuppressWarnings(ctx context.Context, userID int64) ([]*session.PhotoResult, error)
	DiscardPending(userID int64) (int, error)
	RetractLast(ctx context.Context, userID int64) (*session.Removal, error)
	DeletePhoto(ctx context.Context, userID int64, key string) (*session.Removal, error)
	Review(ctx context.Context, userID int64, block int) (*session.BlockReview, error)
	Blocks(ctx context.Context, userID int64) ([]session.Block, error)
	ResumeUploading(ctx context.Context, userID int64) (*session.Progress, error)
	Cancel(ctx context.Context, userID int64)
	Dispatch(ctx context.Context, userID int64, allowIncomplete bool) (*session.Dispatched, error)
}

type Bot struct {
	intake    Intake
	api       *bot.Bot
	router    *fsm.Router
	collector *media.Collector
	ctx       context.Context
}

func NewBot(cfg *config.TelegramCfg, opts ...bot.Option) (*Bot, error) {
	b := &Bot{
		collector: media.NewCollector(lossyPromptDelay),
		ctx:       context.Background(),
	}
	b.router = fsm.NewRouter(b.step)

	botOpts := append([]bot.Option{bot.WithMiddlewares(b.router.Middleware)}, opts...)
	api, err := bot.New(cfg.Token, botOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot instance: %w", err)
	}
	b.api = api
	return b, nil
}

// API exposes the Bot API client for the downloader and the operator notifier.
func (b *Bot) API() *bot.Bot {
	return b.api
}

func (b *Bot) SetIntake(intake Intake) {
	b.intake = intake
}

func (b *Bot) Start(ctx context.Context) {
	b.ctx = ctx
	b.registerHandlers()

	slog.Info("Started Telegram Bot")
	go b.api.Start(ctx)
}

func (b *Bot) registerHandlers() {
	b.api.RegisterHandler(bot.HandlerTypeMessageText, "start", bot.MatchTypeCommandStartOnly, b.handleStartCmd)
	b.api.RegisterHandler(bot.HandlerTypeMessageText, "help", bot.MatchTypeCommandStartOnly, b.handleHelpCmd)
	b.api.RegisterHandler(bot.HandlerTypeMessageText, "cancel", bot.MatchTypeCommandStartOnly, b.handleCancelCmd)

	fsm.Chain(b.router, fsm.StepIdle, fsm.StepAwaitingOrderNumber).
		OnCallback(b.handleEntryCallback)
	fsm.Chain(b.router, fsm.StepIdle).
		OnText(b.handleIdleText)
	fsm.Chain(b.router, fsm.StepAwaitingOrderNumber).
		OnText(b.handleOrderNumber)
	fsm.Chain(b.router, fsm.StepAwaitingPhotos, fsm.StepComplete, fsm.StepEditing).
		OnMedia(b.handleUpload).
		OnCallback(b.handleOrderCallback)
	b.router.SetFallback(b.handleFallback)
}

func (b *Bot) step(userID int64) fsm.Step {
	if b.intake == nil {
		return fsm.StepIdle
	}
	return stepFor(b.intake.Snapshot(userID))
}

func (b *Bot) SendMessage(ctx context.Context, params *bot.SendMessageParams) int {
	msg, err := b.api.SendMessage(ctx, params)
	if err != nil {
		slog.Error("Error sending message", "error", err, "chat", params.ChatID)
		return 0
	}
	return msg.ID
}

func (b *Bot) DeleteMessage(ctx context.Context, chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	if _, err := b.api.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    chatID,
		MessageID: messageID,
	}); err != nil {
		slog.Warn("Failed to delete message", "error", err, "chat", chatID, "message", messageID)
	}
}

func htmlMessage(chatID int64, text string, markup models.ReplyMarkup) *bot.SendMessageParams {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	return params
}
