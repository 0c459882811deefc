package models

const (
	ReasonVisitReminder   = "visit_reminder"
	ReasonScheduleChanged = "schedule_changed"
)

// ReminderPayload is the queued body of a visit reminder or change notice.
type ReminderPayload struct {
	EntryID    string   `json:"entryId"`
	ClientID   string   `json:"clientId"`
	SubjectID  string   `json:"subjectId"`
	BookingIDs []string `json:"bookingIds"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	FireDate   string   `json:"fireDate,omitempty"` // RFC3339
	Reason     string   `json:"reason"`
}
