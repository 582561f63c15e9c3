package fsm

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type HandlerFunc func(c *ConversationContext) error

type stepHandlers struct {
	text     HandlerFunc
	media    HandlerFunc
	callback HandlerFunc
}

type Router struct {
	step     StepFunc
	handlers map[Step]*stepHandlers
	fallback HandlerFunc
	mu       *sync.RWMutex
}

func NewRouter(step StepFunc) *Router {
	return &Router{
		step:     step,
		handlers: make(map[Step]*stepHandlers),
		mu:       &sync.RWMutex{},
	}
}

// SetFallback registers the handler for updates no step handler accepts.
func (r *Router) SetFallback(handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = handler
}

func (r *Router) register(step Step, set func(h *stepHandlers)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handlers[step]
	if !ok {
		h = &stepHandlers{}
		r.handlers[step] = h
	}
	set(h)
}

// Middleware passes commands to the registered command handlers and routes every other
// message or callback by the current step of its sender.
func (r *Router) Middleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		var userID int64
		switch {
		case update.Message != nil && update.Message.From != nil:
			userID = update.Message.From.ID
			if strings.HasPrefix(update.Message.Text, "/") {
				next(ctx, b, update)
				return
			}
		case update.CallbackQuery != nil:
			userID = update.CallbackQuery.From.ID
		default:
			return
		}

		step := r.step(userID)
		c := &ConversationContext{
			Ctx:    ctx,
			Bot:    b,
			Update: update,
			UserID: userID,
			Step:   step,
		}

		handler := r.resolve(step, update)
		if handler == nil {
			return
		}
		if err := handler(c); err != nil {
			slog.Error("Conversation handler failed", "error", err, "user", userID, "step", step)
		}
	}
}

func (r *Router) resolve(step Step, update *models.Update) HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var handler HandlerFunc
	if h, ok := r.handlers[step]; ok {
		switch {
		case update.CallbackQuery != nil:
			handler = h.callback
		case isMedia(update.Message):
			handler = h.media
		default:
			handler = h.text
		}
	}
	if handler == nil {
		handler = r.fallback
	}
	return handler
}

func isMedia(msg *models.Message) bool {
	return msg.Document != nil || len(msg.Photo) > 0 || msg.Video != nil || msg.Audio != nil ||
		msg.Voice != nil || msg.VideoNote != nil || msg.Sticker != nil || msg.Animation != nil
}
