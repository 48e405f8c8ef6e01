package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"clinicbook/internal/models"
	"clinicbook/internal/wizard"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleCallbackQuery(ctx context.Context, update tgbotapi.Update) {
	query := update.CallbackQuery
	chatID := query.Message.Chat.ID
	userID := query.From.ID

	b.answerCallback(query.ID)

	prefix, payload := splitCallback(query.Data)

	// Flows that do not need an existing session.
	switch prefix {
	case cbBrowse:
		b.handleBrowseClinic(ctx, chatID, payload)
		return
	case cbBookDoctor:
		parts := strings.SplitN(payload, ":", 2)
		if len(parts) != 2 {
			return
		}
		b.startWizard(ctx, chatID, userID, parts[0], parts[1])
		return
	}

	session := b.loadSession(ctx, userID)
	if session == nil {
		b.sendText(chatID, "This booking has expired. Use /book to start over.")
		return
	}

	switch prefix {
	case cbClinic:
		b.handleClinicChoice(ctx, chatID, session, payload)
	case cbDoctor:
		b.handleDoctorChoice(ctx, chatID, session, payload)
	case cbDay:
		b.handleDayChoice(ctx, chatID, session, payload)
	case cbSlot:
		b.handleSlotChoice(ctx, chatID, session, payload)
	case cbSkipNotes:
		session.AwaitingField = ""
		b.saveSession(ctx, session)
		b.promptPatientDetails(ctx, chatID, session)
	case cbConfirm:
		b.handleConfirm(ctx, chatID, session)
	case cbCancel:
		b.handleCancel(ctx, chatID, userID)
	case cbPage:
		b.handlePage(ctx, chatID, session, payload)
	}
}

func splitCallback(data string) (prefix, payload string) {
	if i := strings.Index(data, ":"); i >= 0 {
		return data[:i], data[i+1:]
	}
	return data, ""
}

func (b *Bot) handleClinicChoice(ctx context.Context, chatID int64, session *models.WizardSession, clinicID string) {
	if err := b.machine.SelectClinic(session, clinicID); err != nil {
		b.sendText(chatID, "That clinic is no longer available. Pick another one.")
		return
	}

	if err := b.machine.LoadDoctors(ctx, session); err != nil {
		b.logger.Error().Err(err).Str("clinic_id", clinicID).Msg("Failed to load doctors")
		b.sendText(chatID, "Could not load doctors for this clinic. Please try again.")
		b.saveSession(ctx, session)
		return
	}

	b.saveSession(ctx, session)
	b.promptStep(ctx, chatID, session)
}

func (b *Bot) handleDoctorChoice(ctx context.Context, chatID int64, session *models.WizardSession, doctorID string) {
	if err := b.machine.SelectDoctor(session, doctorID); err != nil {
		b.sendText(chatID, "That doctor is no longer available. Pick another one.")
		return
	}

	b.saveSession(ctx, session)
	b.promptStep(ctx, chatID, session)
}

func (b *Bot) handleDayChoice(ctx context.Context, chatID int64, session *models.WizardSession, date string) {
	if err := b.machine.SelectDay(session, date); err != nil {
		b.sendWithKeyboard(chatID, "That day is no longer bookable. Pick another one:", calendarKeyboard(b.machine.Calendar()))
		return
	}

	b.saveSession(ctx, session)
	b.promptStep(ctx, chatID, session)
}

func (b *Bot) handleSlotChoice(ctx context.Context, chatID int64, session *models.WizardSession, slot string) {
	if err := b.machine.SelectSlot(session, slot); err != nil {
		b.sendText(chatID, "That time is not offered. Pick one from the keyboard.")
		return
	}

	b.saveSession(ctx, session)
	b.promptStep(ctx, chatID, session)
}

func (b *Bot) handleConfirm(ctx context.Context, chatID int64, session *models.WizardSession) {
	result, err := b.machine.Submit(ctx, session)
	b.saveSession(ctx, session)

	if err != nil {
		switch {
		case errors.Is(err, wizard.ErrAuthenticationRequired):
			b.sendText(chatID, session.LastError)
		case errors.Is(err, wizard.ErrSubmissionInFlight):
			b.sendText(chatID, "Your appointment is already being submitted, one moment.")
		case errors.Is(err, wizard.ErrIncompleteDraft):
			b.promptPatientDetails(ctx, chatID, session)
		default:
			b.sendWithKeyboard(chatID, session.LastError, confirmKeyboard())
		}
		return
	}

	if !result.Success {
		b.sendWithKeyboard(chatID, fmt.Sprintf("%s\nYou can adjust the details and try again.", session.LastError), confirmKeyboard())
		return
	}

	b.promptStep(ctx, chatID, session)
}

func (b *Bot) handleBrowseClinic(ctx context.Context, chatID int64, clinicID string) {
	doctors, err := b.provider.ListDoctors(ctx, clinicID)
	if err != nil {
		b.logger.Error().Err(err).Str("clinic_id", clinicID).Msg("Failed to browse doctors")
		b.sendText(chatID, "Could not load doctors for this clinic.")
		return
	}
	if len(doctors) == 0 {
		b.sendText(chatID, "This clinic has no doctors listed.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Doctors at this clinic:\n")
	for _, d := range doctors {
		fmt.Fprintf(&sb, "\n%s", d.Name)
		if d.Specialty != "" {
			fmt.Fprintf(&sb, " - %s", d.Specialty)
		}
		if d.Fee > 0 {
			fmt.Fprintf(&sb, " ($%.0f)", d.Fee)
		}
	}
	b.sendWithKeyboard(chatID, sb.String(), bookDoctorKeyboard(clinicID, doctors))
}

// handlePage re-renders a paginated list. Payload is "<kind>:<page>".
func (b *Bot) handlePage(ctx context.Context, chatID int64, session *models.WizardSession, payload string) {
	parts := strings.SplitN(payload, ":", 2)
	if len(parts) != 2 {
		return
	}
	page, err := strconv.Atoi(parts[1])
	if err != nil {
		return
	}

	switch parts[0] {
	case "clinics":
		b.sendWithKeyboard(chatID, "Choose a clinic:", clinicKeyboard(session.Clinics, page, b.config.Bot.PaginationSize))
	case "doctors":
		b.sendWithKeyboard(chatID, "Choose a doctor:", doctorKeyboard(session.Doctors, page, b.config.Bot.PaginationSize))
	}
}
