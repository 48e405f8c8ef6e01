package wizard

import (
	"context"
	"errors"
	"testing"
	"time"

	"clinicbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) ListClinics(ctx context.Context) ([]models.Clinic, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Clinic), args.Error(1)
}

func (m *mockProvider) ListDoctors(ctx context.Context, clinicID string) ([]models.Doctor, error) {
	args := m.Called(ctx, clinicID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Doctor), args.Error(1)
}

func (m *mockProvider) CreateAppointment(ctx context.Context, req models.AppointmentRequest, token string) (*models.AppointmentResult, error) {
	args := m.Called(ctx, req, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AppointmentResult), args.Error(1)
}

type stubCredentials struct {
	token string
	err   error
	calls int
}

func (s *stubCredentials) Token(ctx context.Context, userID int64) (string, error) {
	s.calls++
	return s.token, s.err
}

var (
	testClinics = []models.Clinic{
		{ID: "c1", Name: "City Clinic", Location: "Downtown"},
		{ID: "c2", Name: "Westside Medical", Location: "West End"},
	}
	testDoctors = []models.Doctor{
		{ID: "d1", Name: "Dr. Smith", Specialty: "Cardiology", Fee: 150},
		{ID: "d2", Name: "Dr. Jones", Specialty: "Dermatology", Fee: 120},
	}
)

func fixedClock() time.Time {
	return time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
}

func newTestMachine(provider *mockProvider, creds *stubCredentials, opts ...Option) *Machine {
	logger := zerolog.Nop()
	opts = append(opts, WithClock(fixedClock))
	return NewMachine(provider, creds, nil, &logger, opts...)
}

func TestStart(t *testing.T) {
	ctx := context.Background()

	t.Run("FreshSession", func(t *testing.T) {
		provider := new(mockProvider)
		provider.On("ListClinics", mock.Anything).Return(testClinics, nil)

		m := newTestMachine(provider, &stubCredentials{})
		session, err := m.Start(ctx, 42, "", "")
		require.NoError(t, err)

		assert.Equal(t, models.StepSelectClinic, session.Step)
		assert.Len(t, session.Clinics, 2)
		assert.Nil(t, session.Draft.Clinic)
		provider.AssertExpectations(t)
	})

	t.Run("CatalogUnavailable", func(t *testing.T) {
		provider := new(mockProvider)
		provider.On("ListClinics", mock.Anything).Return(nil, errors.New("timeout"))

		m := newTestMachine(provider, &stubCredentials{})
		_, err := m.Start(ctx, 42, "", "")
		assert.Error(t, err)
	})

	t.Run("SeededClinicSkipsToDoctorStep", func(t *testing.T) {
		provider := new(mockProvider)
		provider.On("ListClinics", mock.Anything).Return(testClinics, nil)
		provider.On("ListDoctors", mock.Anything, "c1").Return(testDoctors, nil)

		m := newTestMachine(provider, &stubCredentials{})
		session, err := m.Start(ctx, 42, "c1", "")
		require.NoError(t, err)

		assert.Equal(t, models.StepSelectDoctor, session.Step)
		require.NotNil(t, session.Draft.Clinic)
		assert.Equal(t, "c1", session.Draft.Clinic.ID)
		assert.Len(t, session.Doctors, 2)
		provider.AssertExpectations(t)
	})

	t.Run("SeededDoctorSkipsToSlotStep", func(t *testing.T) {
		provider := new(mockProvider)
		provider.On("ListClinics", mock.Anything).Return(testClinics, nil)
		provider.On("ListDoctors", mock.Anything, "c1").Return(testDoctors, nil)

		m := newTestMachine(provider, &stubCredentials{})
		session, err := m.Start(ctx, 42, "c1", "d2")
		require.NoError(t, err)

		assert.Equal(t, models.StepSelectSlot, session.Step)
		require.NotNil(t, session.Draft.Doctor)
		assert.Equal(t, "d2", session.Draft.Doctor.ID)
		assert.Empty(t, session.PendingDoctorID)
	})

	t.Run("UnknownSeededClinicIgnored", func(t *testing.T) {
		provider := new(mockProvider)
		provider.On("ListClinics", mock.Anything).Return(testClinics, nil)

		m := newTestMachine(provider, &stubCredentials{})
		session, err := m.Start(ctx, 42, "nope", "d1")
		require.NoError(t, err)

		assert.Equal(t, models.StepSelectClinic, session.Step)
		assert.Nil(t, session.Draft.Clinic)
		assert.Empty(t, session.PendingDoctorID)
	})
}

func TestSelectClinic(t *testing.T) {
	m := newTestMachine(new(mockProvider), &stubCredentials{})

	session := models.NewWizardSession(1)
	session.Clinics = testClinics

	t.Run("UnknownClinicRejected", func(t *testing.T) {
		assert.ErrorIs(t, m.SelectClinic(session, "nope"), ErrUnknownClinic)
	})

	t.Run("SelectAdvances", func(t *testing.T) {
		require.NoError(t, m.SelectClinic(session, "c1"))
		assert.Equal(t, models.StepSelectDoctor, session.Step)
		assert.Equal(t, "c1", session.Draft.Clinic.ID)
	})

	t.Run("ReselectSameClinicIsNoop", func(t *testing.T) {
		session.Doctors = testDoctors
		require.NoError(t, m.SelectClinic(session, "c1"))
		assert.Len(t, session.Doctors, 2)
	})

	t.Run("SwitchingClinicResetsDoctor", func(t *testing.T) {
		session.Draft.Doctor = &testDoctors[0]
		require.NoError(t, m.SelectClinic(session, "c2"))

		assert.Nil(t, session.Draft.Doctor)
		assert.Empty(t, session.Doctors)
		assert.Equal(t, models.StepSelectDoctor, session.Step)
	})
}

func TestApplyDoctors(t *testing.T) {
	m := newTestMachine(new(mockProvider), &stubCredentials{})

	t.Run("StaleResponseIgnored", func(t *testing.T) {
		session := models.NewWizardSession(1)
		session.Clinics = testClinics
		require.NoError(t, m.SelectClinic(session, "c2"))

		// response for the previously selected clinic arrives late
		applied := m.ApplyDoctors(session, "c1", testDoctors)
		assert.False(t, applied)
		assert.Empty(t, session.Doctors)
	})

	t.Run("MatchingResponseApplied", func(t *testing.T) {
		session := models.NewWizardSession(1)
		session.Clinics = testClinics
		require.NoError(t, m.SelectClinic(session, "c1"))

		applied := m.ApplyDoctors(session, "c1", testDoctors)
		assert.True(t, applied)
		assert.Len(t, session.Doctors, 2)
	})

	t.Run("PendingDoctorNotInListStaysOnDoctorStep", func(t *testing.T) {
		session := models.NewWizardSession(1)
		session.Clinics = testClinics
		session.PendingDoctorID = "ghost"
		require.NoError(t, m.SelectClinic(session, "c1"))

		m.ApplyDoctors(session, "c1", testDoctors)
		assert.Equal(t, models.StepSelectDoctor, session.Step)
		assert.Empty(t, session.PendingDoctorID)
	})
}

func TestSingleScopedFetchPerClinicChange(t *testing.T) {
	ctx := context.Background()
	provider := new(mockProvider)
	provider.On("ListClinics", mock.Anything).Return(testClinics, nil)
	provider.On("ListDoctors", mock.Anything, "c1").Return(testDoctors, nil).Once()
	provider.On("ListDoctors", mock.Anything, "c2").Return([]models.Doctor{}, nil).Once()

	m := newTestMachine(provider, &stubCredentials{})
	session, err := m.Start(ctx, 1, "", "")
	require.NoError(t, err)

	require.NoError(t, m.SelectClinic(session, "c1"))
	require.NoError(t, m.LoadDoctors(ctx, session))

	require.NoError(t, m.SelectClinic(session, "c2"))
	require.NoError(t, m.LoadDoctors(ctx, session))

	provider.AssertExpectations(t)
}

func TestSlotSelection(t *testing.T) {
	m := newTestMachine(new(mockProvider), &stubCredentials{})

	session := models.NewWizardSession(1)
	session.Clinics = testClinics
	require.NoError(t, m.SelectClinic(session, "c1"))
	m.ApplyDoctors(session, "c1", testDoctors)
	require.NoError(t, m.SelectDoctor(session, "d1"))

	t.Run("SlotAloneDoesNotAdvance", func(t *testing.T) {
		require.NoError(t, m.SelectSlot(session, "09:00"))
		assert.Equal(t, models.StepSelectSlot, session.Step)
	})

	t.Run("DayOutsideWindowRejected", func(t *testing.T) {
		assert.ErrorIs(t, m.SelectDay(session, "2030-01-01"), ErrUnknownDay)
	})

	t.Run("UnknownSlotRejected", func(t *testing.T) {
		assert.ErrorIs(t, m.SelectSlot(session, "03:13"), ErrUnknownSlot)
	})

	t.Run("DayPlusSlotAdvances", func(t *testing.T) {
		require.NoError(t, m.SelectDay(session, "2024-06-10"))
		assert.Equal(t, models.StepPatientDetails, session.Step)
	})

	t.Run("ReselectingSlotIsIdempotent", func(t *testing.T) {
		require.NoError(t, m.SelectSlot(session, "14:00"))
		require.NoError(t, m.SelectSlot(session, "14:00"))
		assert.Equal(t, "14:00", session.Draft.Slot)
		assert.Equal(t, models.StepPatientDetails, session.Step)
	})
}

func TestCalendarWindow(t *testing.T) {
	m := newTestMachine(new(mockProvider), &stubCredentials{})
	days := m.Calendar()

	require.Len(t, days, models.BookingWindowDays)
	assert.Equal(t, "2024-06-10", days[0].Date)
	assert.Equal(t, "Mon", days[0].Weekday)
	assert.Equal(t, "2024-06-16", days[6].Date)
}

func TestSetPatientField(t *testing.T) {
	m := newTestMachine(new(mockProvider), &stubCredentials{})

	session := detailsStepSession(t, m)

	t.Run("RejectedBeforeDetailsStep", func(t *testing.T) {
		fresh := models.NewWizardSession(1)
		assert.ErrorIs(t, m.SetPatientField(fresh, models.FieldName, "Jane"), ErrInvalidStep)
	})

	t.Run("InvalidEmailRejected", func(t *testing.T) {
		assert.ErrorIs(t, m.SetPatientField(session, models.FieldEmail, "not-an-email"), ErrInvalidEmail)
		assert.Empty(t, session.Draft.Patient.Email)
	})

	t.Run("InvalidPhoneRejected", func(t *testing.T) {
		assert.ErrorIs(t, m.SetPatientField(session, models.FieldPhone, "12345"), ErrInvalidPhone)
	})

	t.Run("ValidFieldsStored", func(t *testing.T) {
		require.NoError(t, m.SetPatientField(session, models.FieldName, "  Jane Doe  "))
		require.NoError(t, m.SetPatientField(session, models.FieldEmail, "jane@x.com"))
		require.NoError(t, m.SetPatientField(session, models.FieldPhone, "555-123-4567"))

		assert.Equal(t, "Jane Doe", session.Draft.Patient.Name)
		assert.Equal(t, "555-123-4567", session.Draft.Patient.Phone)
	})

	t.Run("UnknownFieldRejected", func(t *testing.T) {
		assert.Error(t, m.SetPatientField(session, "ssn", "x"))
	})
}

func TestCanProceed(t *testing.T) {
	m := newTestMachine(new(mockProvider), &stubCredentials{})

	session := models.NewWizardSession(1)
	session.Clinics = testClinics

	assert.False(t, m.CanProceed(session), "no clinic selected")

	require.NoError(t, m.SelectClinic(session, "c1"))
	assert.False(t, m.CanProceed(session), "no doctor selected")

	m.ApplyDoctors(session, "c1", testDoctors)
	require.NoError(t, m.SelectDoctor(session, "d1"))
	assert.False(t, m.CanProceed(session), "no day and slot")

	require.NoError(t, m.SelectDay(session, "2024-06-10"))
	assert.False(t, m.CanProceed(session), "no slot")

	require.NoError(t, m.SelectSlot(session, "09:00"))
	assert.False(t, m.CanProceed(session), "patient details empty")

	require.NoError(t, m.SetPatientField(session, models.FieldName, "Jane Doe"))
	require.NoError(t, m.SetPatientField(session, models.FieldEmail, "jane@x.com"))
	assert.False(t, m.CanProceed(session), "phone missing")

	require.NoError(t, m.SetPatientField(session, models.FieldPhone, "5551234567"))
	assert.True(t, m.CanProceed(session))

	session.Step = models.StepConfirmed
	assert.False(t, m.CanProceed(session), "confirmed is terminal")
}

// detailsStepSession walks a session to the patient details step.
func detailsStepSession(t *testing.T, m *Machine) *models.WizardSession {
	t.Helper()

	session := models.NewWizardSession(1)
	session.Clinics = testClinics
	require.NoError(t, m.SelectClinic(session, "c1"))
	m.ApplyDoctors(session, "c1", testDoctors)
	require.NoError(t, m.SelectDoctor(session, "d1"))
	require.NoError(t, m.SelectDay(session, "2024-06-10"))
	require.NoError(t, m.SelectSlot(session, "09:00"))
	return session
}

func completeSession(t *testing.T, m *Machine) *models.WizardSession {
	t.Helper()

	session := detailsStepSession(t, m)
	require.NoError(t, m.SetPatientField(session, models.FieldName, "Jane Doe"))
	require.NoError(t, m.SetPatientField(session, models.FieldEmail, "jane@x.com"))
	require.NoError(t, m.SetPatientField(session, models.FieldPhone, "5551234567"))
	return session
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("SendsExactPayload", func(t *testing.T) {
		provider := new(mockProvider)
		expected := models.AppointmentRequest{
			TenantID:       "c1",
			DoctorID:       "d1",
			Date:           "2024-06-10",
			Slot:           "09:00",
			PatientName:    "Jane Doe",
			PatientEmail:   "jane@x.com",
			PatientContact: "5551234567",
			Notes:          "",
			Fee:            150,
		}
		provider.On("CreateAppointment", mock.Anything, expected, "token-1").
			Return(&models.AppointmentResult{Success: true}, nil)

		m := newTestMachine(provider, &stubCredentials{token: "token-1"})
		session := completeSession(t, m)

		result, err := m.Submit(ctx, session)
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, models.StepConfirmed, session.Step)
		assert.Empty(t, session.LastError)
		provider.AssertExpectations(t)
	})

	t.Run("NoCredentialFailsBeforeNetwork", func(t *testing.T) {
		provider := new(mockProvider)
		m := newTestMachine(provider, &stubCredentials{token: ""})
		session := completeSession(t, m)

		_, err := m.Submit(ctx, session)
		assert.ErrorIs(t, err, ErrAuthenticationRequired)
		assert.Equal(t, models.StepPatientDetails, session.Step)
		assert.Contains(t, session.LastError, "Authentication required")
		// nothing may have been sent
		provider.AssertNotCalled(t, "CreateAppointment", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("NetworkFailureKeepsDraft", func(t *testing.T) {
		provider := new(mockProvider)
		provider.On("CreateAppointment", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("connection refused"))

		m := newTestMachine(provider, &stubCredentials{token: "token-1"})
		session := completeSession(t, m)

		_, err := m.Submit(ctx, session)
		assert.Error(t, err)
		assert.Equal(t, models.StepPatientDetails, session.Step)
		assert.Equal(t, "Jane Doe", session.Draft.Patient.Name)
		assert.NotEmpty(t, session.LastError)
		assert.False(t, session.Submitting)

		// no automatic retry
		provider.AssertNumberOfCalls(t, "CreateAppointment", 1)
	})

	t.Run("RejectionSurfacesServerMessage", func(t *testing.T) {
		provider := new(mockProvider)
		provider.On("CreateAppointment", mock.Anything, mock.Anything, mock.Anything).
			Return(&models.AppointmentResult{Success: false, Message: "Slot already taken"}, nil)

		m := newTestMachine(provider, &stubCredentials{token: "token-1"})
		session := completeSession(t, m)

		result, err := m.Submit(ctx, session)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, models.StepPatientDetails, session.Step)
		assert.Equal(t, "Slot already taken", session.LastError)
	})

	t.Run("IncompleteDraftRejected", func(t *testing.T) {
		m := newTestMachine(new(mockProvider), &stubCredentials{token: "token-1"})
		session := detailsStepSession(t, m)

		_, err := m.Submit(ctx, session)
		assert.ErrorIs(t, err, ErrIncompleteDraft)
	})

	t.Run("SubmitBlockedWhileInFlight", func(t *testing.T) {
		m := newTestMachine(new(mockProvider), &stubCredentials{token: "token-1"})
		session := completeSession(t, m)
		session.Submitting = true

		_, err := m.Submit(ctx, session)
		assert.ErrorIs(t, err, ErrSubmissionInFlight)
	})

	t.Run("RejectedFromConfirmedStep", func(t *testing.T) {
		m := newTestMachine(new(mockProvider), &stubCredentials{token: "token-1"})
		session := completeSession(t, m)
		session.Step = models.StepConfirmed

		_, err := m.Submit(ctx, session)
		assert.ErrorIs(t, err, ErrInvalidStep)
	})
}

func TestRestart(t *testing.T) {
	m := newTestMachine(new(mockProvider), &stubCredentials{})
	session := completeSession(t, m)

	m.Restart(session)

	assert.Equal(t, models.StepSelectClinic, session.Step)
	assert.Nil(t, session.Draft.Clinic)
	assert.Empty(t, session.Draft.Slot)
	assert.Len(t, session.Clinics, 2, "catalog survives restart")
}

func TestStaticSlots(t *testing.T) {
	src := NewStaticSlots(nil)
	assert.Equal(t, models.DefaultSlots, src.Slots("d1", "2024-06-10"))

	custom := NewStaticSlots([]string{"08:00"})
	assert.Equal(t, []string{"08:00"}, custom.Slots("", ""))
}
