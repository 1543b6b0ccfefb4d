package feishu

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// CalendarEvent is the subset of a Calendar v4 event the bot creates
type CalendarEvent struct {
	Summary string
	Start   time.Time
	End     time.Time
}

// CreatedCalendarEvent is what Feishu returns for a new event
type CreatedCalendarEvent struct {
	EventID    string
	AppLink    string
	MeetingURL string
}

type eventTime struct {
	Timestamp string `json:"timestamp"`
}

type eventBody struct {
	Summary   string    `json:"summary"`
	StartTime eventTime `json:"start_time"`
	EndTime   eventTime `json:"end_time"`
	Vchat     struct {
		VcType string `json:"vc_type"`
	} `json:"vchat"`
	AttendeeAbility string `json:"attendee_ability"`
}

type attendee struct {
	Type            string `json:"type"`
	UserID          string `json:"user_id,omitempty"`
	ThirdPartyEmail string `json:"third_party_email,omitempty"`
}

// EventAttendee is a person to invite
// Tenant users are invited by open_id; the email is only used without one.
type EventAttendee struct {
	UserID string
	Email  string
}

func attendeeBody(list []EventAttendee) []attendee {
	out := make([]attendee, 0, len(list))
	for _, a := range list {
		if a.UserID != "" {
			out = append(out, attendee{Type: "user", UserID: a.UserID})
		} else if a.Email != "" {
			out = append(out, attendee{Type: "third_party", ThirdPartyEmail: a.Email})
		}
	}
	return out
}

// PrimaryCalendarID returns the bot's primary calendar
func (c *Client) PrimaryCalendarID(ctx context.Context) (string, error) {
	var out struct {
		Calendars []struct {
			Calendar struct {
				CalendarID string `json:"calendar_id"`
			} `json:"calendar"`
		} `json:"calendars"`
	}
	if err := c.call(ctx, "POST", "/open-apis/calendar/v4/calendars/primary", nil, &out, true); err != nil {
		return "", err
	}
	if len(out.Calendars) == 0 || out.Calendars[0].Calendar.CalendarID == "" {
		return "", &APIError{Msg: "no primary calendar"}
	}
	return out.Calendars[0].Calendar.CalendarID, nil
}

// CreateCalendarEvent creates an event with a Feishu video meeting attached
// Feishu returns the already created event when idempotencyKey repeats.
func (c *Client) CreateCalendarEvent(ctx context.Context, calendarID, idempotencyKey string, event CalendarEvent) (*CreatedCalendarEvent, error) {
	body := eventBody{
		Summary:         event.Summary,
		StartTime:       eventTime{Timestamp: strconv.FormatInt(event.Start.Unix(), 10)},
		EndTime:         eventTime{Timestamp: strconv.FormatInt(event.End.Unix(), 10)},
		AttendeeAbility: "can_see_others",
	}
	body.Vchat.VcType = "vc"

	var out struct {
		Event struct {
			EventID string `json:"event_id"`
			AppLink string `json:"app_link"`
			Vchat   struct {
				MeetingURL string `json:"meeting_url"`
			} `json:"vchat"`
		} `json:"event"`
	}
	path := fmt.Sprintf("/open-apis/calendar/v4/calendars/%s/events?idempotency_key=%s",
		url.PathEscape(calendarID), url.QueryEscape(idempotencyKey))
	if err := c.call(ctx, "POST", path, body, &out, true); err != nil {
		return nil, err
	}

	c.log.Info("calendar event created", "event_id", out.Event.EventID)
	return &CreatedCalendarEvent{
		EventID:    out.Event.EventID,
		AppLink:    out.Event.AppLink,
		MeetingURL: out.Event.Vchat.MeetingURL,
	}, nil
}

// AddEventAttendees invites the given people to an event
// Adding someone who is already an attendee is accepted by Feishu.
func (c *Client) AddEventAttendees(ctx context.Context, calendarID, eventID string, list []EventAttendee) error {
	attendees := attendeeBody(list)
	if len(attendees) == 0 {
		return nil
	}
	body := map[string]interface{}{
		"attendees":         attendees,
		"need_notification": true,
	}
	path := fmt.Sprintf("/open-apis/calendar/v4/calendars/%s/events/%s/attendees?user_id_type=open_id",
		url.PathEscape(calendarID), url.PathEscape(eventID))
	return c.call(ctx, "POST", path, body, nil, true)
}

// DeleteCalendarEvent deletes an event without notifying attendees
func (c *Client) DeleteCalendarEvent(ctx context.Context, calendarID, eventID string) error {
	path := fmt.Sprintf("/open-apis/calendar/v4/calendars/%s/events/%s?need_notification=false",
		url.PathEscape(calendarID), url.PathEscape(eventID))
	return c.call(ctx, "DELETE", path, nil, nil, true)
}
