package data

import (
	"context"
	"log/slog"
	"sync"

	"github.com/DevRickLin/feishu-meet-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-meet-bot/internal/biz/repo"
	"github.com/DevRickLin/feishu-meet-bot/internal/infra/feishu"
)

// calendarAPI is the part of the Feishu client the calendar repository uses
type calendarAPI interface {
	PrimaryCalendarID(ctx context.Context) (string, error)
	CreateCalendarEvent(ctx context.Context, calendarID, idempotencyKey string, event feishu.CalendarEvent) (*feishu.CreatedCalendarEvent, error)
	AddEventAttendees(ctx context.Context, calendarID, eventID string, attendees []feishu.EventAttendee) error
	DeleteCalendarEvent(ctx context.Context, calendarID, eventID string) error
}

// pendingEvent is an event created for a request whose attendees are not yet added
type pendingEvent struct {
	calendarID string
	eventID    string
}

// feishuCalendarRepo implements the calendar repository on Feishu Calendar v4
type feishuCalendarRepo struct {
	api calendarAPI
	log *slog.Logger

	mu         sync.Mutex
	calendarID string
	pending    map[string]pendingEvent // By conference request ID
}

// NewCalendarRepo creates a new Feishu calendar repository
func NewCalendarRepo(api calendarAPI, log *slog.Logger) repo.CalendarRepo {
	return &feishuCalendarRepo{
		api:     api,
		log:     log.With("component", "calendar"),
		pending: make(map[string]pendingEvent),
	}
}

// CreateEvent creates the event then invites the attendees
// A retry after a failed attendee step reuses the event from the first attempt.
func (r *feishuCalendarRepo) CreateEvent(ctx context.Context, draft domain.CalendarEventDraft) (*domain.CreatedEvent, error) {
	calendarID, err := r.primaryCalendar(ctx)
	if err != nil {
		return nil, classifyCalendarError(err)
	}

	created, err := r.api.CreateCalendarEvent(ctx, calendarID, draft.ConferenceRequestID, feishu.CalendarEvent{
		Summary: draft.Summary,
		Start:   draft.Start,
		End:     draft.End,
	})
	if err != nil {
		return nil, classifyCalendarError(err)
	}

	r.mu.Lock()
	r.pending[draft.ConferenceRequestID] = pendingEvent{calendarID: calendarID, eventID: created.EventID}
	r.mu.Unlock()

	if err := r.api.AddEventAttendees(ctx, calendarID, created.EventID, eventAttendees(draft)); err != nil {
		r.log.Warn("failed to add attendees", "event_id", created.EventID, "error", err)
		return nil, classifyCalendarError(err)
	}

	r.mu.Lock()
	delete(r.pending, draft.ConferenceRequestID)
	r.mu.Unlock()

	return &domain.CreatedEvent{
		EventID:     created.EventID,
		JoinURL:     created.MeetingURL,
		CalendarURL: created.AppLink,
	}, nil
}

// eventAttendees pairs each attendee email with its user ID, when known
func eventAttendees(draft domain.CalendarEventDraft) []feishu.EventAttendee {
	out := make([]feishu.EventAttendee, len(draft.Attendees))
	for i, email := range draft.Attendees {
		out[i].Email = email
		if i < len(draft.AttendeeIDs) {
			out[i].UserID = draft.AttendeeIDs[i]
		}
	}
	return out
}

// DiscardEvent deletes an event whose attendees could not be added
func (r *feishuCalendarRepo) DiscardEvent(ctx context.Context, conferenceRequestID string) error {
	r.mu.Lock()
	ev, ok := r.pending[conferenceRequestID]
	delete(r.pending, conferenceRequestID)
	r.mu.Unlock()
	if !ok {
		return nil
	}

	if err := r.api.DeleteCalendarEvent(ctx, ev.calendarID, ev.eventID); err != nil {
		return err
	}
	r.log.Info("partial event deleted", "event_id", ev.eventID)
	return nil
}

func (r *feishuCalendarRepo) primaryCalendar(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calendarID != "" {
		return r.calendarID, nil
	}
	id, err := r.api.PrimaryCalendarID(ctx)
	if err != nil {
		return "", err
	}
	r.calendarID = id
	return id, nil
}

// classifyCalendarError maps Feishu failures onto calendar error kinds
// Anything that is not an API response (network, timeout) is transient.
func classifyCalendarError(err error) *domain.CalendarAPIError {
	apiErr, ok := feishu.AsAPIError(err)
	if !ok {
		return &domain.CalendarAPIError{Kind: domain.CalendarTransient, Err: err}
	}

	switch {
	case apiErr.IsRateLimited():
		return &domain.CalendarAPIError{Kind: domain.CalendarRateLimited, Err: err}
	case apiErr.IsUnauthorized():
		return &domain.CalendarAPIError{Kind: domain.CalendarUnauthorized, Err: err}
	case apiErr.IsServerError():
		return &domain.CalendarAPIError{Kind: domain.CalendarTransient, Err: err}
	default:
		return &domain.CalendarAPIError{Kind: domain.CalendarMalformed, Err: err}
	}
}
