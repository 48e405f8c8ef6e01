package bot

import (
	"fmt"

	"clinicbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback data prefixes. Payload follows the colon.
const (
	cbClinic     = "clinic"
	cbDoctor     = "doctor"
	cbDay        = "day"
	cbSlot       = "slot"
	cbConfirm    = "confirm"
	cbCancel     = "cancel"
	cbSkipNotes  = "skip_notes"
	cbBookDoctor = "bookdoc"
	cbPage       = "page"
	cbBrowse     = "browse"
)

func clinicKeyboard(clinics []models.Clinic, page, pageSize int) tgbotapi.InlineKeyboardMarkup {
	return pagedKeyboard(len(clinics), page, pageSize, "clinics", func(i int) tgbotapi.InlineKeyboardButton {
		c := clinics[i]
		label := c.Name
		if c.Location != "" {
			label = fmt.Sprintf("%s (%s)", c.Name, c.Location)
		}
		return tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s:%s", cbClinic, c.ID))
	})
}

func doctorKeyboard(doctors []models.Doctor, page, pageSize int) tgbotapi.InlineKeyboardMarkup {
	return pagedKeyboard(len(doctors), page, pageSize, "doctors", func(i int) tgbotapi.InlineKeyboardButton {
		d := doctors[i]
		label := d.Name
		if d.Specialty != "" {
			label = fmt.Sprintf("%s, %s", d.Name, d.Specialty)
		}
		if d.Fee > 0 {
			label = fmt.Sprintf("%s ($%.0f)", label, d.Fee)
		}
		return tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s:%s", cbDoctor, d.ID))
	})
}

// calendarKeyboard renders the rolling week as four-buttons-per-row.
func calendarKeyboard(days []models.CalendarDay) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, (len(days)+3)/4)
	row := make([]tgbotapi.InlineKeyboardButton, 0, 4)
	for i, day := range days {
		label := fmt.Sprintf("%s %d", day.Weekday, day.Day)
		if i == 0 {
			label = "Today"
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s:%s", cbDay, day.Date)))
		if len(row) == 4 {
			rows = append(rows, row)
			row = make([]tgbotapi.InlineKeyboardButton, 0, 4)
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func slotKeyboard(slots []string) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0)
	row := make([]tgbotapi.InlineKeyboardButton, 0, 4)
	for _, slot := range slots {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(slot, fmt.Sprintf("%s:%s", cbSlot, slot)))
		if len(row) == 4 {
			rows = append(rows, row)
			row = make([]tgbotapi.InlineKeyboardButton, 0, 4)
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func confirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", cbConfirm),
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", cbCancel),
		),
	)
}

func skipNotesKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Skip", cbSkipNotes),
		),
	)
}

// browseClinicKeyboard lists clinics for the read-only /clinics flow.
func browseClinicKeyboard(clinics []models.Clinic) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(clinics))
	for _, c := range clinics {
		label := c.Name
		if c.Location != "" {
			label = fmt.Sprintf("%s (%s)", c.Name, c.Location)
		}
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s:%s", cbBrowse, c.ID)),
		})
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// bookDoctorKeyboard offers direct booking from a browsed doctor list. The
// callback carries both ids so the wizard can be seeded in one step.
func bookDoctorKeyboard(clinicID string, doctors []models.Doctor) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(doctors))
	for _, d := range doctors {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("📅 Book %s", d.Name),
				fmt.Sprintf("%s:%s:%s", cbBookDoctor, clinicID, d.ID),
			),
		})
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// pagedKeyboard builds a one-button-per-row keyboard over a window of items
// with prev/next controls when the set does not fit one page.
func pagedKeyboard(total, page, pageSize int, kind string, button func(i int) tgbotapi.InlineKeyboardButton) tgbotapi.InlineKeyboardMarkup {
	if pageSize <= 0 {
		pageSize = models.DefaultPaginationSize
	}
	start := page * pageSize
	if start < 0 || start >= total {
		start = 0
		page = 0
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, end-start+1)
	for i := start; i < end; i++ {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{button(i)})
	}

	if total > pageSize {
		nav := make([]tgbotapi.InlineKeyboardButton, 0, 2)
		if page > 0 {
			nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️ Prev", fmt.Sprintf("%s:%s:%d", cbPage, kind, page-1)))
		}
		if end < total {
			nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Next ➡️", fmt.Sprintf("%s:%s:%d", cbPage, kind, page+1)))
		}
		if len(nav) > 0 {
			rows = append(rows, nav)
		}
	}

	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}
