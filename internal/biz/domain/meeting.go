package domain

import "time"

// MaxDurationMinutes caps a single meeting at one day
const MaxDurationMinutes = 24 * 60

// MeetingRequest is a parsed meeting-creation command (value object)
type MeetingRequest struct {
	Title           string
	DurationMinutes int
	GuestMentions   []string // Mention IDs in the order they were typed
	ChannelID       string
	RequesterID     string
}

// Duration returns the requested meeting length
func (r MeetingRequest) Duration() time.Duration {
	return time.Duration(r.DurationMinutes) * time.Minute
}

// CalendarEventDraft is the event handed to the calendar collaborator
type CalendarEventDraft struct {
	Summary             string
	Start               time.Time
	End                 time.Time
	Attendees           []string // Email addresses, no duplicates
	AttendeeIDs         []string // User IDs matching Attendees by index
	ConferenceRequestID string
}

// CreatedEvent is the calendar collaborator's reference to a created event
type CreatedEvent struct {
	EventID     string
	JoinURL     string
	CalendarURL string
}

// BuildSummary prefixes the title when a channel prefix is registered
func BuildSummary(prefix, title string) string {
	if prefix == "" {
		return title
	}
	return prefix + " " + title
}
