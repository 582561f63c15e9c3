package telegram

import (
	"errors"
	"log/slog"
	"strings"

	"photo-intake-bot/internal/session"
	"photo-intake-bot/internal/telegram/internal/fsm"
	"photo-intake-bot/internal/telegram/internal/media"
	"photo-intake-bot/internal/telegram/internal/presentation"

	"github.com/go-telegram/bot/models"
)

func (b *Bot) handleUpload(c *fsm.ConversationContext) error {
	f, ok := media.Extract(c.Message())
	if !ok {
		_, err := c.SendMessage(presentation.ImagesOnlyMsg(), nil)
		return err
	}

	up := session.Upload{
		FileID:       f.FileID,
		Name:         f.Name,
		Size:         f.Size,
		MediaGroupID: f.MediaGroupID,
		Lossy:        f.Kind == media.KindImage,
	}

	var notice int
	if f.Kind == media.KindDocument {
		var err error
		if notice, err = c.SendMessage(presentation.ProcessingMsg(), nil); err != nil {
			slog.Error("Error sending message", "error", err, "chat", c.UserID)
		}
	}
	res, err := b.intake.SubmitPhoto(c.Ctx, c.UserID, up)
	b.DeleteMessage(c.Ctx, c.UserID, notice)
	if err != nil {
		return b.reportError(c, err)
	}

	if res.Outcome == session.OutcomeIntercepted {
		b.collector.Collect(c.UserID, f, b.promptLossy)
		return nil
	}
	return b.renderResult(c, f.Name, res)
}

// promptLossy asks once per burst of intercepted images. Nothing is sent when the user
// already resolved them.
func (b *Bot) promptLossy(userID int64, files []media.File) {
	pending := len(b.intake.Snapshot(userID).Pending)
	if pending == 0 {
		return
	}
	slog.Debug("Prompting for lossy uploads", "user", userID, "pending", pending, "window", len(files))
	b.SendMessage(b.ctx, htmlMessage(userID, presentation.LossyPromptMsg(pending), presentation.LossyPromptKbd()))
}

// reply is one outgoing message of an upload result.
type reply struct {
	text   string
	markup models.ReplyMarkup
}

// resultReplies renders an upload result. Quality warnings always travel with a way to
// retract the photo in one step.
func resultReplies(name string, res *session.PhotoResult) []reply {
	if res.Outcome == session.OutcomeRejected {
		return []reply{{text: presentation.RejectedMsg(name)}}
	}

	var parts []string
	if warnings := presentation.WarningsMsg(res.Report); warnings != "" {
		parts = append(parts, warnings)
	}

	switch {
	case res.Completed:
		var replies []reply
		if len(parts) > 0 {
			replies = append(replies, reply{text: strings.Join(parts, "\n\n"), markup: presentation.RetractKbd()})
		}
		return append(replies, reply{
			text:   presentation.CompleteMsg(res.Review),
			markup: presentation.CompleteKbd(res.Progress),
		})
	case res.State == session.StateComplete:
		parts = append(parts, presentation.ProgressMsg(res.Progress))
		return []reply{{text: strings.Join(parts, "\n\n"), markup: presentation.CompleteKbd(res.Progress)}}
	default:
		parts = append(parts, presentation.ProgressMsg(res.Progress))
		return []reply{{text: strings.Join(parts, "\n\n"), markup: presentation.ProgressKbd()}}
	}
}

func (b *Bot) renderResult(c *fsm.ConversationContext, name string, res *session.PhotoResult) error {
	for _, r := range resultReplies(name, res) {
		if _, err := c.SendMessage(r.text, r.markup); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) renderResults(c *fsm.ConversationContext, results []*session.PhotoResult) error {
	for _, res := range results {
		if err := b.renderResult(c, "", res); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) handleLossyDecision(c *fsm.ConversationContext, data string) error {
	switch data {
	case presentation.CbConfirmPending:
		results, err := b.intake.ConfirmPending(c.Ctx, c.UserID)
		if errors.Is(err, session.ErrNothingPending) {
			return nil
		}
		if err != nil {
			return b.reportError(c, err)
		}
		return b.renderResults(c, results)
	case presentation.CbSuppressWarnings:
		results, err := b.intake.SuppressWarnings(c.Ctx, c.UserID)
		if err != nil {
			return b.reportError(c, err)
		}
		if _, err := c.SendMessage(presentation.SuppressedMsg(), nil); err != nil {
			return err
		}
		return b.renderResults(c, results)
	case presentation.CbDiscardPending:
		n, err := b.intake.DiscardPending(c.UserID)
		if err != nil {
			return b.reportError(c, err)
		}
		if n == 0 {
			return nil
		}
		_, err = c.SendMessage(presentation.PendingDiscardedMsg(n), nil)
		return err
	}
	return nil
}
