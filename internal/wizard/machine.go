package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinicbook/internal/domain"
	"clinicbook/internal/events"
	"clinicbook/internal/metrics"
	"clinicbook/internal/models"
	"clinicbook/internal/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidStep is returned when an operation does not apply to the
	// session's current step.
	ErrInvalidStep = errors.New("wizard: operation not valid at this step")

	// ErrIncompleteDraft is returned by Submit when the gating predicate
	// fails for the patient details step.
	ErrIncompleteDraft = errors.New("wizard: draft is incomplete")

	// ErrAuthenticationRequired is returned by Submit before any network
	// activity when no platform token is stored for the user.
	ErrAuthenticationRequired = errors.New("wizard: authentication required")

	// ErrSubmissionInFlight blocks a second Submit while one is running.
	ErrSubmissionInFlight = errors.New("wizard: submission already in flight")

	ErrUnknownClinic = errors.New("wizard: clinic not in current set")
	ErrUnknownDoctor = errors.New("wizard: doctor not in current set")
	ErrUnknownDay    = errors.New("wizard: day outside booking window")
	ErrUnknownSlot   = errors.New("wizard: slot not offered")

	ErrInvalidEmail = errors.New("wizard: invalid email address")
	ErrInvalidPhone = errors.New("wizard: invalid phone number")
)

const authRequiredMessage = "Authentication required. Use /login <token> first."

// SlotSource yields the selectable time slots for a doctor on a date. The
// default is the static list; a real per-doctor schedule plugs in here.
type SlotSource interface {
	Slots(doctorID, date string) []string
}

// StaticSlots serves the same fixed slot grid for every doctor and day.
type StaticSlots struct {
	slots []string
}

func NewStaticSlots(slots []string) *StaticSlots {
	if len(slots) == 0 {
		slots = models.DefaultSlots
	}
	return &StaticSlots{slots: slots}
}

func (s *StaticSlots) Slots(doctorID, date string) []string {
	return s.slots
}

// Machine drives a wizard session through its steps. It is stateless
// itself; all per-user state lives in the session, which the caller
// persists between updates.
type Machine struct {
	provider    domain.AvailabilityProvider
	credentials domain.CredentialStore
	slots       SlotSource
	log         domain.AppointmentLog
	bus         domain.EventPublisher
	logger      *zerolog.Logger
	now         func() time.Time
}

type Option func(*Machine)

// WithAppointmentLog records accepted submissions locally.
func WithAppointmentLog(log domain.AppointmentLog) Option {
	return func(m *Machine) { m.log = log }
}

// WithEventPublisher publishes lifecycle events on the given bus.
func WithEventPublisher(bus domain.EventPublisher) Option {
	return func(m *Machine) { m.bus = bus }
}

// WithClock overrides the calendar clock.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

func NewMachine(provider domain.AvailabilityProvider, credentials domain.CredentialStore, slots SlotSource, logger *zerolog.Logger, opts ...Option) *Machine {
	if slots == nil {
		slots = NewStaticSlots(nil)
	}
	m := &Machine{
		provider:    provider,
		credentials: credentials,
		slots:       slots,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start opens a fresh session, loads the clinic catalog and applies deep
// link seeds. A seeded clinic that is not in the fetched set is ignored; a
// seeded doctor is held until the doctor list for its clinic arrives.
func (m *Machine) Start(ctx context.Context, userID int64, seedClinicID, seedDoctorID string) (*models.WizardSession, error) {
	session := models.NewWizardSession(userID)

	clinics, err := m.provider.ListClinics(ctx)
	if err != nil {
		return nil, fmt.Errorf("start wizard: %w", err)
	}
	session.Clinics = clinics

	metrics.IncWizardSession()
	m.publish(models.EventSessionStarted, map[string]int64{"user_id": userID})

	if seedDoctorID != "" {
		session.PendingDoctorID = seedDoctorID
	}

	if seedClinicID != "" {
		if err := m.SelectClinic(session, seedClinicID); err != nil {
			// Bad deep link payloads degrade to a normal start.
			m.logger.Warn().Str("clinic_id", seedClinicID).Msg("Ignoring unknown seeded clinic")
			session.PendingDoctorID = ""
		} else if err := m.LoadDoctors(ctx, session); err != nil {
			return nil, err
		}
	}

	return session, nil
}

// SelectClinic fixes the clinic choice. Selecting a different clinic
// discards any doctor choice; the candidate doctor set must be refetched.
func (m *Machine) SelectClinic(session *models.WizardSession, clinicID string) error {
	clinic := session.ClinicByID(clinicID)
	if clinic == nil {
		return ErrUnknownClinic
	}

	if session.Draft.Clinic != nil && session.Draft.Clinic.ID == clinicID {
		return nil
	}

	session.Draft.Clinic = clinic
	session.Draft.Doctor = nil
	session.Doctors = nil
	session.Step = models.StepSelectDoctor
	return nil
}

// LoadDoctors fetches the doctor list for the currently selected clinic
// and applies it synchronously.
func (m *Machine) LoadDoctors(ctx context.Context, session *models.WizardSession) error {
	if session.Draft.Clinic == nil {
		return ErrInvalidStep
	}
	clinicID := session.Draft.Clinic.ID

	doctors, err := m.provider.ListDoctors(ctx, clinicID)
	if err != nil {
		return fmt.Errorf("load doctors: %w", err)
	}

	m.ApplyDoctors(session, clinicID, doctors)
	return nil
}

// ApplyDoctors installs a fetched doctor list. The response is dropped
// when the clinic selection has moved on since the fetch was issued, so a
// slow response for a previously selected clinic can never leak into the
// candidate set. Returns whether the list was applied.
func (m *Machine) ApplyDoctors(session *models.WizardSession, clinicID string, doctors []models.Doctor) bool {
	if session.Draft.Clinic == nil || session.Draft.Clinic.ID != clinicID {
		return false
	}

	session.Doctors = doctors

	if session.PendingDoctorID != "" {
		if doctor := session.DoctorByID(session.PendingDoctorID); doctor != nil {
			session.Draft.Doctor = doctor
			session.Step = models.StepSelectSlot
		}
		session.PendingDoctorID = ""
	}
	return true
}

// SelectDoctor fixes the doctor choice from the current candidate set.
func (m *Machine) SelectDoctor(session *models.WizardSession, doctorID string) error {
	if session.Step < models.StepSelectDoctor || session.Step >= models.StepConfirmed {
		return ErrInvalidStep
	}

	doctor := session.DoctorByID(doctorID)
	if doctor == nil {
		return ErrUnknownDoctor
	}

	session.Draft.Doctor = doctor
	session.Step = models.StepSelectSlot
	return nil
}

// Calendar returns the rolling booking window offered on the slot step.
func (m *Machine) Calendar() []models.CalendarDay {
	return models.UpcomingWeek(m.now())
}

// SlotsFor lists the selectable slots for the drafted doctor on a date.
func (m *Machine) SlotsFor(session *models.WizardSession, date string) []string {
	doctorID := ""
	if session.Draft.Doctor != nil {
		doctorID = session.Draft.Doctor.ID
	}
	return m.slots.Slots(doctorID, date)
}

// SelectDay picks a date from the booking window. Reselection is allowed
// until the session is confirmed.
func (m *Machine) SelectDay(session *models.WizardSession, date string) error {
	if session.Step < models.StepSelectSlot || session.Step >= models.StepConfirmed {
		return ErrInvalidStep
	}

	for _, day := range m.Calendar() {
		if day.Date == date {
			d := day
			session.Draft.Day = &d
			m.maybeAdvanceToDetails(session)
			return nil
		}
	}
	return ErrUnknownDay
}

// SelectSlot picks a time slot. Idempotent: reselecting the same or
// another slot before confirmation just replaces the draft value.
func (m *Machine) SelectSlot(session *models.WizardSession, slot string) error {
	if session.Step < models.StepSelectSlot || session.Step >= models.StepConfirmed {
		return ErrInvalidStep
	}

	date := ""
	if session.Draft.Day != nil {
		date = session.Draft.Day.Date
	}
	offered := false
	for _, s := range m.SlotsFor(session, date) {
		if s == slot {
			offered = true
			break
		}
	}
	if !offered {
		return ErrUnknownSlot
	}

	session.Draft.Slot = slot
	m.maybeAdvanceToDetails(session)
	return nil
}

func (m *Machine) maybeAdvanceToDetails(session *models.WizardSession) {
	if session.Step == models.StepSelectSlot && session.Draft.Day != nil && session.Draft.Slot != "" {
		session.Step = models.StepPatientDetails
	}
}

// SetPatientField fills one intake field, validating email and phone on
// entry so the user is reprompted immediately instead of at submit time.
func (m *Machine) SetPatientField(session *models.WizardSession, field, value string) error {
	if session.Step != models.StepPatientDetails {
		return ErrInvalidStep
	}

	value = strings.TrimSpace(value)
	switch field {
	case models.FieldName:
		session.Draft.Patient.Name = value
	case models.FieldEmail:
		if !validation.IsValidEmail(value) {
			return ErrInvalidEmail
		}
		session.Draft.Patient.Email = value
	case models.FieldPhone:
		if !validation.IsValidPhone(value) {
			return ErrInvalidPhone
		}
		session.Draft.Patient.Phone = value
	case models.FieldNotes:
		session.Draft.Patient.Notes = value
	default:
		return fmt.Errorf("wizard: unknown patient field %q", field)
	}
	return nil
}

// CanProceed reports whether the current step's requirement is met.
func (m *Machine) CanProceed(session *models.WizardSession) bool {
	switch session.Step {
	case models.StepSelectClinic:
		return session.Draft.Clinic != nil
	case models.StepSelectDoctor:
		return session.Draft.Doctor != nil
	case models.StepSelectSlot:
		return session.Draft.Day != nil && session.Draft.Slot != ""
	case models.StepPatientDetails:
		p := session.Draft.Patient
		return p.Name != "" && validation.IsValidEmail(p.Email) && validation.IsValidPhone(p.Phone)
	default:
		return false
	}
}

// Submit sends the assembled draft to the platform. Without a stored
// token it fails before any network activity. On any failure the session
// stays on the details step with the draft intact; there is no automatic
// retry.
func (m *Machine) Submit(ctx context.Context, session *models.WizardSession) (*models.AppointmentResult, error) {
	if session.Step != models.StepPatientDetails {
		return nil, ErrInvalidStep
	}
	if !m.CanProceed(session) {
		return nil, ErrIncompleteDraft
	}
	if session.Submitting {
		return nil, ErrSubmissionInFlight
	}

	token, err := m.credentials.Token(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("submit: read credentials: %w", err)
	}
	if token == "" {
		session.LastError = authRequiredMessage
		return nil, ErrAuthenticationRequired
	}

	session.Submitting = true
	defer func() { session.Submitting = false }()

	req := m.buildRequest(session)
	result, err := m.provider.CreateAppointment(ctx, req, token)
	if err != nil {
		metrics.IncSubmission("failed")
		session.LastError = "Could not reach the booking platform. Please try again."
		m.logger.Error().Err(err).Int64("user_id", session.UserID).Msg("Appointment submission failed")
		return nil, err
	}

	if !result.Success {
		metrics.IncSubmission("rejected")
		session.LastError = result.Message
		if session.LastError == "" {
			session.LastError = "The platform rejected the appointment."
		}
		m.publish(models.EventAppointmentRejected, m.eventPayload(session, "", result.Message))
		return result, nil
	}

	metrics.IncSubmission("accepted")
	session.Step = models.StepConfirmed
	session.LastError = ""

	requestID := uuid.NewString()
	m.recordAppointment(ctx, session, requestID)
	m.publish(models.EventAppointmentSubmitted, m.eventPayload(session, requestID, ""))
	return result, nil
}

// Restart discards the draft and returns to clinic selection, keeping the
// already fetched clinic catalog.
func (m *Machine) Restart(session *models.WizardSession) {
	clinics := session.Clinics
	*session = *models.NewWizardSession(session.UserID)
	session.Clinics = clinics
}

func (m *Machine) buildRequest(session *models.WizardSession) models.AppointmentRequest {
	d := session.Draft
	return models.AppointmentRequest{
		TenantID:       d.Clinic.ID,
		DoctorID:       d.Doctor.ID,
		Date:           d.Day.Date,
		Slot:           d.Slot,
		PatientName:    d.Patient.Name,
		PatientEmail:   d.Patient.Email,
		PatientContact: d.Patient.Phone,
		Notes:          d.Patient.Notes,
		Fee:            d.Doctor.Fee,
	}
}

func (m *Machine) recordAppointment(ctx context.Context, session *models.WizardSession, requestID string) {
	if m.log == nil {
		return
	}
	d := session.Draft
	record := &models.AppointmentRecord{
		UserID:         session.UserID,
		RequestID:      requestID,
		ClinicID:       d.Clinic.ID,
		ClinicName:     d.Clinic.Name,
		DoctorID:       d.Doctor.ID,
		DoctorName:     d.Doctor.Name,
		Specialty:      d.Doctor.Specialty,
		Date:           d.Day.Date,
		Slot:           d.Slot,
		PatientName:    d.Patient.Name,
		PatientEmail:   d.Patient.Email,
		PatientContact: d.Patient.Phone,
		Notes:          d.Patient.Notes,
		Fee:            d.Doctor.Fee,
	}
	if err := m.log.RecordAppointment(ctx, record); err != nil {
		m.logger.Error().Err(err).Int64("user_id", session.UserID).Msg("Failed to record appointment locally")
	}
}

func (m *Machine) eventPayload(session *models.WizardSession, requestID, reason string) events.AppointmentEventPayload {
	d := session.Draft
	return events.AppointmentEventPayload{
		RequestID:   requestID,
		UserID:      session.UserID,
		ClinicID:    d.Clinic.ID,
		ClinicName:  d.Clinic.Name,
		DoctorID:    d.Doctor.ID,
		DoctorName:  d.Doctor.Name,
		Date:        d.Day.Date,
		Slot:        d.Slot,
		PatientName: d.Patient.Name,
		Fee:         d.Doctor.Fee,
		Reason:      reason,
	}
}

func (m *Machine) publish(eventType string, payload interface{}) {
	if m.bus == nil {
		return
	}
	if err := m.bus.PublishJSON(eventType, payload); err != nil {
		m.logger.Warn().Err(err).Str("event", eventType).Msg("Failed to publish event")
	}
}
