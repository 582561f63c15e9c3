package presentation

import (
	"fmt"
	"strconv"
	"strings"

	"photo-intake-bot/internal/session"

	"github.com/go-telegram/bot/models"
)

const (
	CbEnterOrder        = "enter_order"
	CbConfirmPending    = "confirm_pending"
	CbDiscardPending    = "discard_pending"
	CbSuppressWarnings  = "suppress"
	CbCancelOrder       = "cancel_order"
	CbRetractLast       = "retract_last"
	CbEdit              = "edit"
	CbPrint             = "print"
	CbPrintIncomplete   = "print_incomplete"
	CbConfirmIncomplete = "confirm_incomplete"
	CbContinueUpload    = "continue_upload"

	cbBlockPrefix  = "block:"
	cbDeletePrefix = "delete:"
)

func BlockData(index int) string {
	return cbBlockPrefix + strconv.Itoa(index)
}

// DeleteData names the photo by its stored key. The index is only echoed back to the user.
func DeleteData(index int, key string) string {
	return cbDeletePrefix + strconv.Itoa(index) + ":" + key
}

// ParseBlock extracts the block index of a block callback.
func ParseBlock(data string) (int, bool) {
	return parseIndex(data, cbBlockPrefix)
}

// ParseDelete extracts the shown 1-based index and the photo key of a delete callback.
func ParseDelete(data string) (int, string, bool) {
	rest, ok := strings.CutPrefix(data, cbDeletePrefix)
	if !ok {
		return 0, "", false
	}
	index, key, ok := strings.Cut(rest, ":")
	if !ok || key == "" {
		return 0, "", false
	}
	n, err := strconv.Atoi(index)
	if err != nil || n < 0 {
		return 0, "", false
	}
	return n, key, true
}

func parseIndex(data, prefix string) (int, bool) {
	rest, ok := strings.CutPrefix(data, prefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func GreetingKbd() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "Знаю номер заказа", CallbackData: CbEnterOrder}},
		},
	}
}

func LossyPromptKbd() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "Продолжить", CallbackData: CbConfirmPending}},
			{{Text: "Отменить фото", CallbackData: CbDiscardPending}},
			{{Text: "Отменить заказ", CallbackData: CbCancelOrder}},
			{{Text: "Больше не спрашивать", CallbackData: CbSuppressWarnings}},
		},
	}
}

func RetractKbd() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "Отменить последнее фото", CallbackData: CbRetractLast}},
		},
	}
}

// ProgressKbd accompanies every upload while photos are still missing. Sending from here
// always goes through the incomplete order warning.
func ProgressKbd() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "Отменить последнее фото", CallbackData: CbRetractLast}},
			{{Text: "Редактировать фото", CallbackData: CbEdit}},
			{{Text: "Отменить заказ", CallbackData: CbCancelOrder}},
			{{Text: "Отправить в работу", CallbackData: CbPrint}},
		},
	}
}

// CompleteKbd is shown when the order is ready. Sending an order short of photos goes
// through IncompleteWarningKbd and IncompleteConfirmKbd first.
func CompleteKbd(p session.Progress) *models.InlineKeyboardMarkup {
	send := models.InlineKeyboardButton{Text: "Отправить в печать", CallbackData: CbPrint}
	if p.Missing() > 0 {
		send.Text = "Отправить в работу"
	}
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "Редактировать фото", CallbackData: CbEdit}},
			{{Text: "Отменить последнее фото", CallbackData: CbRetractLast}},
			{{Text: "Отменить заказ", CallbackData: CbCancelOrder}},
			{send},
		},
	}
}

func IncompleteWarningKbd() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "Продолжить загрузку фотографий", CallbackData: CbContinueUpload}},
			{{Text: "Отправить неполный заказ", CallbackData: CbPrintIncomplete}},
		},
	}
}

func IncompleteConfirmKbd() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "✔️ Да, отправить", CallbackData: CbConfirmIncomplete}},
			{{Text: "Продолжить загрузку фотографий", CallbackData: CbContinueUpload}},
		},
	}
}

func BlocksKbd(blocks []session.Block, current int) *models.InlineKeyboardMarkup {
	keyboard := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{},
	}
	var row []models.InlineKeyboardButton
	for _, b := range blocks {
		text := fmt.Sprintf("%d–%d", b.First, b.Last)
		if b.Index == current {
			text = "• " + text
		}
		row = append(row, models.InlineKeyboardButton{Text: text, CallbackData: BlockData(b.Index)})
		if len(row) == 3 {
			keyboard.InlineKeyboard = append(keyboard.InlineKeyboard, row)
			row = nil
		}
	}
	if len(row) > 0 {
		keyboard.InlineKeyboard = append(keyboard.InlineKeyboard, row)
	}
	return keyboard
}

// EditMenuKbd closes a reviewed block: other blocks, back to uploading, or send.
func EditMenuKbd(r *session.BlockReview) *models.InlineKeyboardMarkup {
	keyboard := &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{}}
	if len(r.Blocks) > 1 {
		keyboard.InlineKeyboard = append(keyboard.InlineKeyboard, BlocksKbd(r.Blocks, r.Block.Index).InlineKeyboard...)
	}
	keyboard.InlineKeyboard = append(keyboard.InlineKeyboard,
		[]models.InlineKeyboardButton{{Text: "Продолжить загрузку фотографий", CallbackData: CbContinueUpload}},
	)
	keyboard.InlineKeyboard = append(keyboard.InlineKeyboard, CompleteKbd(r.Progress).InlineKeyboard[2:]...)
	return keyboard
}

func DeletePhotoKbd(index int, key string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "Удалить фото", CallbackData: DeleteData(index, key)}},
		},
	}
}
