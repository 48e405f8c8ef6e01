package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"clinicbook/internal/models"
	"clinicbook/internal/wizard"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const startPayloadClinicPrefix = "clinic_"

func (b *Bot) handleMessage(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.handleStart(ctx, msg)
		case "book":
			b.startWizard(ctx, msg.Chat.ID, msg.From.ID, "", "")
		case "clinics":
			b.handleClinics(ctx, msg.Chat.ID)
		case "appointments":
			b.handleAppointments(ctx, msg.Chat.ID, msg.From.ID)
		case "export":
			b.handleExport(ctx, msg.Chat.ID, msg.From.ID)
		case "login":
			b.handleLogin(ctx, msg)
		case "logout":
			b.handleLogout(ctx, msg.Chat.ID, msg.From.ID)
		case "cancel":
			b.handleCancel(ctx, msg.Chat.ID, msg.From.ID)
		case "help":
			b.sendText(msg.Chat.ID, helpText)
		default:
			b.sendText(msg.Chat.ID, "Unknown command. Try /help.")
		}
		return
	}

	b.handleText(ctx, msg)
}

const helpText = `I can book medical appointments for you.

/book - start the booking wizard
/clinics - browse clinics and doctors
/appointments - your booking history
/export - download your history as a spreadsheet
/login <token> - store your platform access token
/logout - forget the stored token
/cancel - abandon the current booking
/help - this message`

// handleStart supports clinic deep links: t.me/<bot>?start=clinic_<id>
// opens the wizard with the clinic preselected.
func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	payload := strings.TrimSpace(msg.CommandArguments())

	if strings.HasPrefix(payload, startPayloadClinicPrefix) {
		seedClinic := strings.TrimPrefix(payload, startPayloadClinicPrefix)
		b.startWizard(ctx, msg.Chat.ID, msg.From.ID, seedClinic, "")
		return
	}

	b.sendText(msg.Chat.ID, "Welcome! Use /book to make an appointment or /help for all commands.")
}

func (b *Bot) startWizard(ctx context.Context, chatID, userID int64, seedClinic, seedDoctor string) {
	session, err := b.machine.Start(ctx, userID, seedClinic, seedDoctor)
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to start wizard")
		b.sendText(chatID, "The booking service is unavailable right now. Please try again later.")
		return
	}

	b.saveSession(ctx, session)
	b.promptStep(ctx, chatID, session)
}

// promptStep renders the screen for the session's current step.
func (b *Bot) promptStep(ctx context.Context, chatID int64, session *models.WizardSession) {
	switch session.Step {
	case models.StepSelectClinic:
		if len(session.Clinics) == 0 {
			b.sendText(chatID, "No clinics are available at the moment.")
			return
		}
		b.sendWithKeyboard(chatID, "Choose a clinic:", clinicKeyboard(session.Clinics, 0, b.config.Bot.PaginationSize))
	case models.StepSelectDoctor:
		if len(session.Doctors) == 0 {
			b.sendText(chatID, "This clinic has no doctors available.")
			return
		}
		b.sendWithKeyboard(chatID, "Choose a doctor:", doctorKeyboard(session.Doctors, 0, b.config.Bot.PaginationSize))
	case models.StepSelectSlot:
		if session.Draft.Day == nil {
			b.sendWithKeyboard(chatID, "Pick a day:", calendarKeyboard(b.machine.Calendar()))
			return
		}
		slots := b.machine.SlotsFor(session, session.Draft.Day.Date)
		b.sendWithKeyboard(chatID, fmt.Sprintf("Pick a time on %s:", session.Draft.Day.Date), slotKeyboard(slots))
	case models.StepPatientDetails:
		b.promptPatientDetails(ctx, chatID, session)
	case models.StepConfirmed:
		b.sendText(chatID, "Your appointment is booked. Use /appointments to review it.")
	}
}

// promptPatientDetails walks the intake fields one free-text message at a
// time, then shows the summary with the confirm keyboard.
func (b *Bot) promptPatientDetails(ctx context.Context, chatID int64, session *models.WizardSession) {
	p := session.Draft.Patient
	switch {
	case p.Name == "":
		session.AwaitingField = models.FieldName
		b.sendText(chatID, "Patient full name?")
	case p.Email == "":
		session.AwaitingField = models.FieldEmail
		b.sendText(chatID, "Contact email?")
	case p.Phone == "":
		session.AwaitingField = models.FieldPhone
		b.sendText(chatID, "Contact phone number?")
	case session.AwaitingField == models.FieldNotes:
		b.sendWithKeyboard(chatID, "Anything the doctor should know? (or skip)", skipNotesKeyboard())
		return
	default:
		session.AwaitingField = ""
		b.sendWithKeyboard(chatID, b.draftSummary(session), confirmKeyboard())
	}
	b.saveSession(ctx, session)
}

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	session := b.loadSession(ctx, msg.From.ID)
	if session == nil || session.Step != models.StepPatientDetails || session.AwaitingField == "" {
		b.sendText(msg.Chat.ID, "Use /book to make an appointment or /help for all commands.")
		return
	}

	field := session.AwaitingField
	if err := b.machine.SetPatientField(session, field, msg.Text); err != nil {
		switch {
		case errors.Is(err, wizard.ErrInvalidEmail):
			b.sendText(msg.Chat.ID, "That does not look like an email address. Please try again.")
		case errors.Is(err, wizard.ErrInvalidPhone):
			b.sendText(msg.Chat.ID, "A phone number needs 10 to 15 digits. Please try again.")
		default:
			b.logger.Error().Err(err).Str("field", field).Msg("Failed to set patient field")
			b.sendText(msg.Chat.ID, "Something went wrong. Please try again.")
		}
		return
	}

	if field == models.FieldPhone {
		// notes are optional and come last
		session.AwaitingField = models.FieldNotes
	} else if field == models.FieldNotes {
		session.AwaitingField = ""
	}

	b.saveSession(ctx, session)
	b.promptPatientDetails(ctx, msg.Chat.ID, session)
}

func (b *Bot) handleClinics(ctx context.Context, chatID int64) {
	clinics, err := b.provider.ListClinics(ctx)
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to list clinics")
		b.sendText(chatID, "Could not load clinics. Please try again later.")
		return
	}
	if len(clinics) == 0 {
		b.sendText(chatID, "No clinics are available at the moment.")
		return
	}
	b.sendWithKeyboard(chatID, "Clinics on the platform:", browseClinicKeyboard(clinics))
}

func (b *Bot) handleAppointments(ctx context.Context, chatID, userID int64) {
	records, err := b.appointments.ListAppointments(ctx, userID)
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to list appointments")
		b.sendText(chatID, "Could not load your appointments.")
		return
	}
	if len(records) == 0 {
		b.sendText(chatID, "You have no booked appointments yet. Use /book to make one.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Your appointments:\n")
	for _, r := range records {
		fmt.Fprintf(&sb, "\n%s %s - %s at %s", r.Date, r.Slot, r.DoctorName, r.ClinicName)
	}
	b.sendText(chatID, sb.String())
}

func (b *Bot) handleLogin(ctx context.Context, msg *tgbotapi.Message) {
	token := strings.TrimSpace(msg.CommandArguments())
	if token == "" {
		b.sendText(msg.Chat.ID, "Usage: /login <token>\nPaste the access token from your platform account.")
		return
	}

	if err := b.credentials.SetToken(ctx, msg.From.ID, token); err != nil {
		b.logger.Error().Err(err).Int64("user_id", msg.From.ID).Msg("Failed to store token")
		b.sendText(msg.Chat.ID, "Could not store the token. Please try again.")
		return
	}

	// scrub the token from the chat history
	if _, err := b.tg.Request(tgbotapi.NewDeleteMessage(msg.Chat.ID, msg.MessageID)); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to delete login message")
	}

	b.sendText(msg.Chat.ID, "Token saved. You can now confirm appointments.")
}

func (b *Bot) handleLogout(ctx context.Context, chatID, userID int64) {
	if err := b.credentials.ClearToken(ctx, userID); err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to clear token")
		b.sendText(chatID, "Could not clear the token. Please try again.")
		return
	}
	b.sendText(chatID, "Token removed.")
}

func (b *Bot) handleCancel(ctx context.Context, chatID, userID int64) {
	if err := b.sessions.ClearSession(ctx, userID); err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to clear session")
	}
	_ = b.eventBus.PublishJSON(models.EventSessionCancelled, map[string]int64{"user_id": userID})
	b.sendText(chatID, "Booking cancelled. Nothing was sent to the clinic.")
}

func (b *Bot) draftSummary(session *models.WizardSession) string {
	d := session.Draft
	var sb strings.Builder
	sb.WriteString("Please review your appointment:\n\n")
	fmt.Fprintf(&sb, "Clinic: %s\n", d.Clinic.Name)
	fmt.Fprintf(&sb, "Doctor: %s", d.Doctor.Name)
	if d.Doctor.Specialty != "" {
		fmt.Fprintf(&sb, " (%s)", d.Doctor.Specialty)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "When: %s at %s\n", d.Day.Date, d.Slot)
	fmt.Fprintf(&sb, "Patient: %s, %s, %s\n", d.Patient.Name, d.Patient.Email, d.Patient.Phone)
	if d.Patient.Notes != "" {
		fmt.Fprintf(&sb, "Notes: %s\n", d.Patient.Notes)
	}
	if d.Doctor.Fee > 0 {
		fmt.Fprintf(&sb, "Consultation fee: $%.2f\n", d.Doctor.Fee)
	}
	return sb.String()
}

func (b *Bot) loadSession(ctx context.Context, userID int64) *models.WizardSession {
	session, err := b.sessions.GetSession(ctx, userID)
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to load session")
		return nil
	}
	return session
}

func (b *Bot) saveSession(ctx context.Context, session *models.WizardSession) {
	if err := b.sessions.SetSession(ctx, session); err != nil {
		b.logger.Error().Err(err).Int64("user_id", session.UserID).Msg("Failed to save session")
	}
}
