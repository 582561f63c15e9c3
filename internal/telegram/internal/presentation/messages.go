package presentation

import (
	"fmt"
	"html"
	"strings"

	"photo-intake-bot/internal/file"
	"photo-intake-bot/internal/inspect"
	"photo-intake-bot/internal/session"
)

func GenericErrorMsg() string {
	return "<b>❌ Произошла неизвестная ошибка, попробуйте позже</b>"
}

func GreetingMsg() string {
	var sb strings.Builder
	sb.WriteString("Я – бот сборщик заказов типографии <b>Идеяпринт</b>.")
	sb.WriteString(breakLine(2))
	sb.WriteString("Я помогу загрузить фотографии для вашего заказа. Нажмите кнопку ниже или просто введите номер заказа.")
	return sb.String()
}

func HelpMsg() string {
	var sb strings.Builder
	sb.WriteString("<b>❓ Как загрузить фотографии</b>")
	sb.WriteString(breakLine(2))
	sb.WriteString("1. Введите номер заказа")
	sb.WriteString(breakLine(1))
	sb.WriteString("2. Отправьте фотографии файлами, без сжатия")
	sb.WriteString(breakLine(1))
	sb.WriteString("3. Проверьте заказ и отправьте его в печать")
	sb.WriteString(breakLine(2))
	sb.WriteString("<b>⚙️ Доступные команды:</b>")
	sb.WriteString(breakLine(2))
	sb.WriteString("/start — начать новый заказ")
	sb.WriteString(breakLine(1))
	sb.WriteString("/cancel — сбросить данные заказа")
	return sb.String()
}

func AskOrderNumberMsg() string {
	return "<b>Введите номер вашего заказа:</b>"
}

func OrderUnavailableMsg() string {
	return "<b>❌ Заказ не найден или недоступен.</b> Проверьте номер и попробуйте снова."
}

func OrderOpenedMsg(opened *session.Opened) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Заказ <b>%s</b>: нужно %d фото.", html.EscapeString(opened.OrderNumber), opened.Required))
	if opened.Resumed {
		sb.WriteString(breakLine(1))
		sb.WriteString(fmt.Sprintf("Для заказа %s уже загружено %d фотографий.", html.EscapeString(opened.OrderNumber), opened.Uploaded))
	}
	if opened.PreviousDispatches > 0 {
		sb.WriteString(breakLine(1))
		sb.WriteString(fmt.Sprintf("⚠️ Этот заказ уже отправлялся в печать (%d раз).", opened.PreviousDispatches))
	}
	return sb.String()
}

func SendAsFileInstructionMsg() string {
	var sb strings.Builder
	sb.WriteString("<b>Отправляйте фото файлом, чтобы сохранить качество:</b>")
	sb.WriteString(breakLine(1))
	sb.WriteString("📎 → Файл/Документ → Выбрать из галереи → отметьте фото → Отправить")
	return sb.String()
}

func ProcessingMsg() string {
	return "Идет обработка..."
}

func LossyPromptMsg(pending int) string {
	var sb strings.Builder
	sb.WriteString("Вы отправили фото не файлом, а изображением. Качество будет хуже.")
	if pending > 1 {
		sb.WriteString(fmt.Sprintf(" Ожидают решения: %d фото.", pending))
	}
	sb.WriteString(breakLine(1))
	sb.WriteString("Выберите действие:")
	return sb.String()
}

func ImagesOnlyMsg() string {
	return "Пожалуйста, присылайте изображения."
}

func RejectedMsg(name string) string {
	if name == "" {
		return "<b>❌ Не удалось обработать фото.</b> Попробуйте отправить его ещё раз."
	}
	return fmt.Sprintf("<b>❌ Не удалось обработать файл %s.</b> Попробуйте отправить его ещё раз.", html.EscapeString(name))
}

// WarningsMsg lists advisory issues of a photo, empty when there are none.
func WarningsMsg(report inspect.Report) string {
	var lines []string
	if len(report.Flags.DuplicateOf) > 0 {
		lines = append(lines, "⚠️ Загруженное фото совпадает с предыдущими.")
		lines = append(lines, "Совпадение с: "+html.EscapeString(originalNames(report.Flags.DuplicateOf)))
	}
	if report.Flags.AspectOutOfRange {
		lines = append(lines, "⚠️ Фотография узкая. Мы можем ее напечатать, но при размещении на карточке будет широкое белое поле. Рекомендуем откадрировать и загрузить снова.")
	}
	if report.Flags.TooBlurry {
		lines = append(lines, `⚠️ Изображение на фотографии слишком "размыто".`)
	}
	return strings.Join(lines, breakLine(1))
}

func ProgressMsg(p session.Progress) string {
	if p.Uploaded >= p.Required {
		return fmt.Sprintf("Получил %d фото из %d.", p.Uploaded, p.Required)
	}
	return fmt.Sprintf("Получил %d фото из %d. Жду ещё", p.Uploaded, p.Required)
}

func CompleteMsg(review *session.Review) string {
	var sb strings.Builder
	if review != nil {
		flagged := review.Flagged()
		if len(flagged) > 0 {
			sb.WriteString("<b>Обратите внимание:</b>")
			for _, p := range flagged {
				sb.WriteString(breakLine(1))
				sb.WriteString(fmt.Sprintf("%d. %s — %s", p.Photo.Index, html.EscapeString(file.OriginalName(p.Photo.Name)), issuesSummary(p.Report)))
			}
			sb.WriteString(breakLine(2))
		}
	}
	sb.WriteString("<b>Заказ сформирован. Отправляю в печать или ещё подумаете?</b>")
	return sb.String()
}

func issuesSummary(report inspect.Report) string {
	var issues []string
	if report.Flags.AspectOutOfRange {
		issues = append(issues, "узкая")
	}
	if report.Flags.TooBlurry {
		issues = append(issues, "размыта")
	}
	if len(report.Flags.DuplicateOf) > 0 {
		issues = append(issues, "повтор")
	}
	return strings.Join(issues, ", ")
}

func SuppressedMsg() string {
	return "Хорошо, больше не буду спрашивать."
}

func ChooseActionMsg() string {
	return "Выберите действие:"
}

func ChooseBlockMsg() string {
	return "Выберите блок фото для редактирования:"
}

func BlockHeaderMsg(r *session.BlockReview) string {
	return fmt.Sprintf("<b>Фото %d–%d из %d</b>", r.Block.First, r.Block.Last, r.Uploaded)
}

func NoPhotosMsg() string {
	return "В заказе пока нет фотографий."
}

func PhotoCaption(p session.PhotoReport) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>%d.</b> Имя файла: %s", p.Photo.Index, html.EscapeString(file.OriginalName(p.Photo.Name))))
	sb.WriteString(breakLine(1))
	sb.WriteString(fmt.Sprintf("Соотношение сторон: %.2f%s", p.Report.AspectRatio, mark(p.Report.Flags.AspectOutOfRange)))
	sb.WriteString(breakLine(1))
	sb.WriteString(fmt.Sprintf("Качество: %.0f%s", p.Report.BlurScore, mark(p.Report.Flags.TooBlurry)))
	sb.WriteString(breakLine(1))
	dups := "нет"
	if len(p.Report.Flags.DuplicateOf) > 0 {
		dups = html.EscapeString(originalNames(p.Report.Flags.DuplicateOf)) + " ⚠️"
	}
	sb.WriteString("Совпадения с другими файлами: " + dups)
	return sb.String()
}

func PhotoDeletedMsg(index int) string {
	return fmt.Sprintf("Фото %d удалено.", index)
}

func PhotoAlreadyDeletedMsg() string {
	return "Фото уже удалено."
}

func RetractedMsg(name string) string {
	return fmt.Sprintf("Файл %s отменен.", html.EscapeString(name))
}

func NothingToRetractMsg() string {
	return "Нет загруженных фото."
}

func PendingDiscardedMsg(n int) string {
	if n == 1 {
		return "Фото отменено."
	}
	return fmt.Sprintf("Отменено фото: %d.", n)
}

func IncompleteWarningMsg(missing int) string {
	return fmt.Sprintf("<b>⚠️ У вас ещё не загружено %d фотографий. Деньги не возвращаются</b>", missing)
}

func IncompleteConfirmMsg(p session.Progress) string {
	return fmt.Sprintf("<b>Отправить в работу %d фото из %d?</b> Загрузить недостающие фото к этому заказу будет нельзя.", p.Uploaded, p.Required)
}

func DispatchedMsg() string {
	return "<b>✅ Заказ отправлен в печать.</b>"
}

func DispatchFailedMsg() string {
	return "<b>❌ Не удалось отправить заказ в печать.</b> Фотографии сохранены, попробуйте ещё раз."
}

func OrderCancelledMsg() string {
	return "Данные заказа сброшены."
}

func UnexpectedInputMsg() string {
	return "Сейчас это действие недоступно."
}
