package telegram

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"photo-intake-bot/internal/file"
	"photo-intake-bot/internal/session"
	"photo-intake-bot/internal/telegram/internal/fsm"
	"photo-intake-bot/internal/telegram/internal/presentation"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

func (b *Bot) handleOrderCallback(c *fsm.ConversationContext) error {
	c.AnswerCallback()
	data := c.CallbackData()

	switch data {
	case presentation.CbConfirmPending, presentation.CbSuppressWarnings, presentation.CbDiscardPending:
		return b.handleLossyDecision(c, data)
	case presentation.CbCancelOrder:
		b.collector.Drop(c.UserID)
		b.intake.Cancel(c.Ctx, c.UserID)
		b.intake.Start(c.UserID)
		_, err := c.SendMessage(presentation.OrderCancelledMsg(), presentation.GreetingKbd())
		return err
	case presentation.CbRetractLast:
		return b.handleRetract(c)
	case presentation.CbEdit:
		return b.handleEdit(c)
	case presentation.CbContinueUpload:
		return b.handleContinueUpload(c)
	case presentation.CbPrint:
		return b.handleDispatch(c, false)
	case presentation.CbPrintIncomplete:
		return b.handleIncompleteConfirmation(c)
	case presentation.CbConfirmIncomplete:
		return b.handleDispatch(c, true)
	case presentation.CbEnterOrder:
		return b.handleEntryCallback(c)
	}

	if block, ok := presentation.ParseBlock(data); ok {
		return b.showBlock(c, block)
	}
	if index, key, ok := presentation.ParseDelete(data); ok {
		return b.handleDelete(c, index, key)
	}
	_, err := c.SendMessage(presentation.UnexpectedInputMsg(), nil)
	return err
}

func (b *Bot) handleRetract(c *fsm.ConversationContext) error {
	removal, err := b.intake.RetractLast(c.Ctx, c.UserID)
	if err != nil {
		return b.reportError(c, err)
	}
	if !removal.Removed {
		_, err = c.SendMessage(presentation.NothingToRetractMsg(), nil)
		return err
	}
	text := presentation.RetractedMsg(removal.Name) + "\n" + presentation.ProgressMsg(removal.Progress)
	_, err = c.SendMessage(text, presentation.ProgressKbd())
	return err
}

func (b *Bot) handleDelete(c *fsm.ConversationContext, index int, key string) error {
	removal, err := b.intake.DeletePhoto(c.Ctx, c.UserID, key)
	if err != nil {
		return b.reportError(c, err)
	}
	text := presentation.PhotoAlreadyDeletedMsg()
	if removal.Removed {
		text = presentation.PhotoDeletedMsg(index)
	}
	_, err = c.SendMessage(text+"\n"+presentation.ProgressMsg(removal.Progress), nil)
	return err
}

func (b *Bot) handleEdit(c *fsm.ConversationContext) error {
	blocks, err := b.intake.Blocks(c.Ctx, c.UserID)
	if err != nil {
		return b.reportError(c, err)
	}
	switch len(blocks) {
	case 0:
		_, err = c.SendMessage(presentation.NoPhotosMsg(), nil)
		return err
	case 1:
		return b.showBlock(c, 0)
	default:
		_, err = c.SendMessage(presentation.ChooseBlockMsg(), presentation.BlocksKbd(blocks, -1))
		return err
	}
}

// showBlock sends every photo of a block with its report and a delete button, followed
// by the editing menu.
func (b *Bot) showBlock(c *fsm.ConversationContext, block int) error {
	review, err := b.intake.Review(c.Ctx, c.UserID, block)
	if err != nil {
		return b.reportError(c, err)
	}
	if len(review.Photos) == 0 {
		_, err = c.SendMessage(presentation.NoPhotosMsg(), nil)
		return err
	}

	if _, err := c.SendMessage(presentation.BlockHeaderMsg(review), nil); err != nil {
		return err
	}
	for _, p := range review.Photos {
		if err := b.sendPhotoReport(c, p); err != nil {
			slog.Warn("Failed to send photo preview", "error", err, "photo", p.Photo.Name)
			caption := presentation.PhotoCaption(p)
			if _, err := c.SendMessage(caption, presentation.DeletePhotoKbd(p.Photo.Index, p.Photo.Key)); err != nil {
				return err
			}
		}
	}
	_, err = c.SendMessage(presentation.ChooseActionMsg(), presentation.EditMenuKbd(review))
	return err
}

func (b *Bot) sendPhotoReport(c *fsm.ConversationContext, p session.PhotoReport) error {
	f, err := os.Open(p.Photo.Path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", p.Photo.Path, err)
	}
	defer f.Close()

	_, err = c.Bot.SendPhoto(c.Ctx, &bot.SendPhotoParams{
		ChatID:      c.UserID,
		Photo:       &models.InputFileUpload{Filename: file.OriginalName(p.Photo.Name), Data: f},
		Caption:     presentation.PhotoCaption(p),
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: presentation.DeletePhotoKbd(p.Photo.Index, p.Photo.Key),
	})
	return err
}

func (b *Bot) handleContinueUpload(c *fsm.ConversationContext) error {
	progress, err := b.intake.ResumeUploading(c.Ctx, c.UserID)
	if err != nil {
		return b.reportError(c, err)
	}
	if progress.State == session.StateComplete {
		_, err = c.SendMessage(presentation.ProgressMsg(*progress), presentation.CompleteKbd(*progress))
		return err
	}
	if _, err := c.SendMessage(presentation.SendAsFileInstructionMsg(), nil); err != nil {
		return err
	}
	_, err = c.SendMessage(presentation.ProgressMsg(*progress), presentation.ProgressKbd())
	return err
}

// handleIncompleteConfirmation is the second step before an order short of photos is
// sent. The order may have become complete in between, then it is sent right away.
func (b *Bot) handleIncompleteConfirmation(c *fsm.ConversationContext) error {
	res, err := b.intake.Dispatch(c.Ctx, c.UserID, false)
	if err != nil {
		return b.dispatchFailed(c, err)
	}
	if res.Sent {
		_, err = c.SendMessage(presentation.DispatchedMsg(), nil)
		return err
	}
	_, err = c.SendMessage(presentation.IncompleteConfirmMsg(res.Progress), presentation.IncompleteConfirmKbd())
	return err
}

func (b *Bot) handleDispatch(c *fsm.ConversationContext, allowIncomplete bool) error {
	res, err := b.intake.Dispatch(c.Ctx, c.UserID, allowIncomplete)
	if err != nil {
		return b.dispatchFailed(c, err)
	}
	if !res.Sent {
		_, err = c.SendMessage(presentation.IncompleteWarningMsg(res.Missing()), presentation.IncompleteWarningKbd())
		return err
	}
	b.collector.Drop(c.UserID)
	_, err = c.SendMessage(presentation.DispatchedMsg(), nil)
	return err
}

func (b *Bot) dispatchFailed(c *fsm.ConversationContext, err error) error {
	if errors.Is(err, session.ErrUnexpectedInput) {
		return b.reportError(c, err)
	}
	slog.Error("Dispatch failed", "error", err, "user", c.UserID)
	_, sendErr := c.SendMessage(presentation.DispatchFailedMsg(), nil)
	return sendErr
}
