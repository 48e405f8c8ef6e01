package models

import "time"

// Clinic is a healthcare facility (tenant) on the booking platform.
// Once selected inside a wizard session it is immutable; picking a
// different clinic restarts the doctor selection.
type Clinic struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

// Doctor belongs to exactly one clinic. The candidate set is refetched
// whenever the clinic selection changes.
type Doctor struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Specialty string  `json:"specialty"`
	Fee       float64 `json:"fee"`
}

// CalendarDay is one entry of the rolling booking window. Generated
// client-side, never fetched.
type CalendarDay struct {
	Date    string `json:"date"`    // YYYY-MM-DD
	Weekday string `json:"weekday"` // Mon..Sun
	Day     int    `json:"day"`     // day of month
}

// UpcomingWeek returns today plus the following six days.
func UpcomingWeek(now time.Time) []CalendarDay {
	days := make([]CalendarDay, 0, BookingWindowDays)
	for i := 0; i < BookingWindowDays; i++ {
		d := now.AddDate(0, 0, i)
		days = append(days, CalendarDay{
			Date:    d.Format("2006-01-02"),
			Weekday: d.Format("Mon"),
			Day:     d.Day(),
		})
	}
	return days
}

// PatientIntake holds the free-form patient details entered on the last
// wizard step. Validation happens in the gating predicate, not here.
type PatientIntake struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Notes string `json:"notes"`
}

// BookingDraft is the in-memory appointment request being assembled by
// the wizard. It is never partially persisted to the platform: either the
// whole draft is submitted as one request or it is discarded.
type BookingDraft struct {
	Clinic  *Clinic       `json:"clinic,omitempty"`
	Doctor  *Doctor       `json:"doctor,omitempty"`
	Day     *CalendarDay  `json:"day,omitempty"`
	Slot    string        `json:"slot,omitempty"`
	Patient PatientIntake `json:"patient"`
}

// AppointmentRequest is the wire body for POST /appointments.
type AppointmentRequest struct {
	TenantID       string  `json:"tenantId"`
	DoctorID       string  `json:"doctorId"`
	Date           string  `json:"date"` // YYYY-MM-DD
	Slot           string  `json:"slot"` // HH:MM
	PatientName    string  `json:"patientName"`
	PatientEmail   string  `json:"patientEmail"`
	PatientContact string  `json:"patientContact"`
	Notes          string  `json:"notes"`
	Fee            float64 `json:"fee"`
}

// AppointmentResult is the platform's answer to a submission.
type AppointmentResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// AppointmentRecord is the locally kept trace of a successful submission,
// used by the history and export views. The platform stays the system of
// record; this is a convenience copy.
type AppointmentRecord struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	RequestID      string    `json:"request_id"`
	ClinicID       string    `json:"clinic_id"`
	ClinicName     string    `json:"clinic_name"`
	DoctorID       string    `json:"doctor_id"`
	DoctorName     string    `json:"doctor_name"`
	Specialty      string    `json:"specialty"`
	Date           string    `json:"date"`
	Slot           string    `json:"slot"`
	PatientName    string    `json:"patient_name"`
	PatientEmail   string    `json:"patient_email"`
	PatientContact string    `json:"patient_contact"`
	Notes          string    `json:"notes"`
	Fee            float64   `json:"fee"`
	CreatedAt      time.Time `json:"created_at"`
}
