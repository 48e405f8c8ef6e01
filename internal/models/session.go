package models

// WizardStep enumerates the linear booking wizard states.
type WizardStep int

const (
	StepSelectClinic WizardStep = iota + 1
	StepSelectDoctor
	StepSelectSlot
	StepPatientDetails
	StepConfirmed
)

func (s WizardStep) String() string {
	switch s {
	case StepSelectClinic:
		return "select_clinic"
	case StepSelectDoctor:
		return "select_doctor"
	case StepSelectSlot:
		return "select_slot"
	case StepPatientDetails:
		return "patient_details"
	case StepConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// Patient intake field names used by SetPatientField and the bot prompts.
const (
	FieldName  = "name"
	FieldEmail = "email"
	FieldPhone = "phone"
	FieldNotes = "notes"
)

// WizardSession is the serializable snapshot of one user's booking wizard.
// It survives bot restarts through the session repository; the draft itself
// is never sent to the platform until submission.
type WizardSession struct {
	UserID int64        `json:"user_id"`
	Step   WizardStep   `json:"step"`
	Draft  BookingDraft `json:"draft"`

	// Clinics is the last fetched clinic set; SelectClinic only accepts
	// members of it.
	Clinics []Clinic `json:"clinics,omitempty"`
	// Doctors is the candidate set scoped to the selected clinic.
	Doctors []Doctor `json:"doctors,omitempty"`

	// PendingDoctorID carries a deep-linked doctor selection until the
	// doctor list for the seeded clinic arrives.
	PendingDoctorID string `json:"pending_doctor_id,omitempty"`

	// AwaitingField tells the presentation layer which patient intake
	// field the next free-text message should fill.
	AwaitingField string `json:"awaiting_field,omitempty"`

	// Submitting blocks concurrent re-submission while a request is in
	// flight.
	Submitting bool `json:"submitting,omitempty"`

	// LastError is the user-visible message of the most recent failure.
	LastError string `json:"last_error,omitempty"`
}

// NewWizardSession starts a fresh session at the first step.
func NewWizardSession(userID int64) *WizardSession {
	return &WizardSession{UserID: userID, Step: StepSelectClinic}
}

// ClinicByID looks up a clinic in the last fetched set.
func (s *WizardSession) ClinicByID(id string) *Clinic {
	for i := range s.Clinics {
		if s.Clinics[i].ID == id {
			return &s.Clinics[i]
		}
	}
	return nil
}

// DoctorByID looks up a doctor in the current candidate set.
func (s *WizardSession) DoctorByID(id string) *Doctor {
	for i := range s.Doctors {
		if s.Doctors[i].ID == id {
			return &s.Doctors[i]
		}
	}
	return nil
}
