package domain

import (
	"context"
	"time"

	"clinicbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// AvailabilityProvider is the platform backend seen from the wizard: two
// public reads and one authenticated write. Slot lists are static
// client-side and therefore not part of this contract.
type AvailabilityProvider interface {
	ListClinics(ctx context.Context) ([]models.Clinic, error)
	ListDoctors(ctx context.Context, clinicID string) ([]models.Doctor, error)
	CreateAppointment(ctx context.Context, req models.AppointmentRequest, token string) (*models.AppointmentResult, error)
}

// CredentialStore yields the locally persisted platform bearer token for a
// user. The wizard never reads credentials from a global; it goes through
// this interface so tests can plug in doubles.
type CredentialStore interface {
	Token(ctx context.Context, userID int64) (string, error)
}

// CredentialManager extends CredentialStore with the mutations used by the
// /login and /logout commands.
type CredentialManager interface {
	CredentialStore
	SetToken(ctx context.Context, userID int64, token string) error
	ClearToken(ctx context.Context, userID int64) error
}

// SessionRepository persists wizard sessions across bot restarts and
// tracks per-user message rates.
type SessionRepository interface {
	GetSession(ctx context.Context, userID int64) (*models.WizardSession, error)
	SetSession(ctx context.Context, session *models.WizardSession) error
	ClearSession(ctx context.Context, userID int64) error
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}

// AppointmentLog records successful submissions locally for the history
// and export views.
type AppointmentLog interface {
	RecordAppointment(ctx context.Context, rec *models.AppointmentRecord) error
	ListAppointments(ctx context.Context, userID int64) ([]models.AppointmentRecord, error)
}

// EventPublisher is the in-process event bus seen from producers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// TelegramSender abstracts the Telegram API surface the bot uses, so the
// presentation layer is testable without the network.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}
