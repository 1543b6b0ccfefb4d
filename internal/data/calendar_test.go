package data

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/feishu-meet-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-meet-bot/internal/infra/feishu"
)

var discardLog = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeCalendarAPI struct {
	primaryCalls int
	creates      []string // Idempotency keys
	events       map[string]string
	attendeeErrs []error
	attendees    [][]feishu.EventAttendee
	deleted      []string
}

func (f *fakeCalendarAPI) PrimaryCalendarID(ctx context.Context) (string, error) {
	f.primaryCalls++
	return "cal_primary", nil
}

func (f *fakeCalendarAPI) CreateCalendarEvent(ctx context.Context, calendarID, key string, event feishu.CalendarEvent) (*feishu.CreatedCalendarEvent, error) {
	f.creates = append(f.creates, key)
	if f.events == nil {
		f.events = map[string]string{}
	}
	id, ok := f.events[key]
	if !ok {
		id = "evt_" + key
		f.events[key] = id
	}
	return &feishu.CreatedCalendarEvent{
		EventID:    id,
		AppLink:    "https://applink.feishu.cn/client/calendar/event/detail?id=" + id,
		MeetingURL: "https://vc.feishu.cn/j/" + id,
	}, nil
}

func (f *fakeCalendarAPI) AddEventAttendees(ctx context.Context, calendarID, eventID string, attendees []feishu.EventAttendee) error {
	f.attendees = append(f.attendees, attendees)
	if len(f.attendeeErrs) > 0 {
		err := f.attendeeErrs[0]
		f.attendeeErrs = f.attendeeErrs[1:]
		return err
	}
	return nil
}

func (f *fakeCalendarAPI) DeleteCalendarEvent(ctx context.Context, calendarID, eventID string) error {
	f.deleted = append(f.deleted, eventID)
	return nil
}

func testDraft() domain.CalendarEventDraft {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return domain.CalendarEventDraft{
		Summary:             "[ENG] Sync",
		Start:               now,
		End:                 now.Add(30 * time.Minute),
		Attendees:           []string{"me@corp.com", "alice@corp.com"},
		AttendeeIDs:         []string{"ou_me", "ou_alice"},
		ConferenceRequestID: "req-1",
	}
}

func TestCalendarRepo_CreateEvent(t *testing.T) {
	api := &fakeCalendarAPI{}
	r := NewCalendarRepo(api, discardLog)

	ev, err := r.CreateEvent(context.Background(), testDraft())
	require.NoError(t, err)
	assert.Equal(t, "evt_req-1", ev.EventID)
	assert.Equal(t, "https://vc.feishu.cn/j/evt_req-1", ev.JoinURL)
	assert.Contains(t, ev.CalendarURL, "evt_req-1")
	assert.Equal(t, []string{"req-1"}, api.creates)
	assert.Equal(t, [][]feishu.EventAttendee{{
		{UserID: "ou_me", Email: "me@corp.com"},
		{UserID: "ou_alice", Email: "alice@corp.com"},
	}}, api.attendees)

	_, err = r.CreateEvent(context.Background(), domain.CalendarEventDraft{ConferenceRequestID: "req-2"})
	require.NoError(t, err)
	assert.Equal(t, 1, api.primaryCalls, "primary calendar id is cached")
}

func TestCalendarRepo_AttendeeFailureThenRetry(t *testing.T) {
	api := &fakeCalendarAPI{attendeeErrs: []error{&feishu.APIError{StatusCode: 503, Msg: "unavailable"}}}
	r := NewCalendarRepo(api, discardLog)

	_, err := r.CreateEvent(context.Background(), testDraft())
	var apiErr *domain.CalendarAPIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, domain.CalendarTransient, apiErr.Kind)

	ev, err := r.CreateEvent(context.Background(), testDraft())
	require.NoError(t, err)
	assert.Equal(t, "evt_req-1", ev.EventID, "retry reuses the same event")
	assert.Len(t, api.events, 1)

	require.NoError(t, r.DiscardEvent(context.Background(), "req-1"))
	assert.Empty(t, api.deleted, "nothing pending after success")
}

func TestCalendarRepo_DiscardPartialEvent(t *testing.T) {
	api := &fakeCalendarAPI{attendeeErrs: []error{&feishu.APIError{StatusCode: 400, Code: 190002, Msg: "invalid email"}}}
	r := NewCalendarRepo(api, discardLog)

	_, err := r.CreateEvent(context.Background(), testDraft())
	var apiErr *domain.CalendarAPIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, domain.CalendarMalformed, apiErr.Kind)

	require.NoError(t, r.DiscardEvent(context.Background(), "req-1"))
	assert.Equal(t, []string{"evt_req-1"}, api.deleted)

	// Second discard has nothing left to delete
	require.NoError(t, r.DiscardEvent(context.Background(), "req-1"))
	assert.Len(t, api.deleted, 1)
}

func TestClassifyCalendarError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.CalendarErrorKind
	}{
		{"http 429", &feishu.APIError{StatusCode: 429}, domain.CalendarRateLimited},
		{"rate limit code", &feishu.APIError{StatusCode: 200, Code: feishu.CodeRateLimited}, domain.CalendarRateLimited},
		{"http 401", &feishu.APIError{StatusCode: 401}, domain.CalendarUnauthorized},
		{"http 403", &feishu.APIError{StatusCode: 403}, domain.CalendarUnauthorized},
		{"invalid token code", &feishu.APIError{StatusCode: 400, Code: feishu.CodeTenantTokenInvalid}, domain.CalendarUnauthorized},
		{"http 400", &feishu.APIError{StatusCode: 400, Code: 190002}, domain.CalendarMalformed},
		{"http 500", &feishu.APIError{StatusCode: 500}, domain.CalendarTransient},
		{"http 503", &feishu.APIError{StatusCode: 503}, domain.CalendarTransient},
		{"network", errors.New("dial tcp: connection refused"), domain.CalendarTransient},
		{"deadline", context.DeadlineExceeded, domain.CalendarTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyCalendarError(tt.err)
			assert.Equal(t, tt.want, got.Kind)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}
