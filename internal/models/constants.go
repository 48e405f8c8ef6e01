package models

const (
	// BookingWindowDays is the size of the rolling calendar window offered
	// by the wizard: today plus six days.
	BookingWindowDays = 7

	// DefaultSessionTTL keeps an unfinished wizard session alive in the
	// session store for 24 hours.
	DefaultSessionTTL = 24 * 60 * 60

	// RateLimitMessages bounds updates per user within RateLimitWindow.
	RateLimitMessages = 20
	RateLimitWindow   = 60

	// CatalogCacheTTL is how long fetched clinic and doctor lists stay in
	// the read-through cache.
	CatalogCacheTTL = 5 * 60

	// DefaultPaginationSize is the page size for list keyboards.
	DefaultPaginationSize = 8
)

// DefaultSlots is the static time-of-day slot list. It is not derived from
// real per-doctor schedules; wizard.SlotSource is the extension point for a
// fetched schedule.
var DefaultSlots = []string{
	"09:00", "09:30", "10:00", "10:30",
	"11:00", "11:30", "12:00",
	"14:00", "14:30", "15:00", "15:30",
	"16:00", "16:30", "17:00",
}

// Appointment event types published on the in-process bus.
const (
	EventSessionStarted       = "wizard_session_started"
	EventSessionCancelled     = "wizard_session_cancelled"
	EventAppointmentSubmitted = "appointment_submitted"
	EventAppointmentRejected  = "appointment_rejected"
	EventCatalogRefreshed     = "catalog_refreshed"
)
