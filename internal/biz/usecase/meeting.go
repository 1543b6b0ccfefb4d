package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/DevRickLin/feishu-meet-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-meet-bot/internal/biz/repo"
)

// ComposerConfig holds calendar call settings
type ComposerConfig struct {
	MaxAttempts int                   // Total calendar attempts, including the first
	CallTimeout time.Duration         // Upper bound for all attempts together
	NewBackOff  func() backoff.BackOff // Delay policy between attempts
}

// DefaultComposerConfig returns the default calendar call settings
func DefaultComposerConfig() ComposerConfig {
	return ComposerConfig{
		MaxAttempts: 3,
		CallTimeout: 30 * time.Second,
		NewBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 300 * time.Millisecond
			b.MaxInterval = 3 * time.Second
			return b
		},
	}
}

// MeetingComposer turns a parsed request into a calendar event
type MeetingComposer struct {
	prefixRepo   repo.PrefixRepo
	calendarRepo repo.CalendarRepo
	guests       *GuestResolver
	config       ComposerConfig
	newRequestID func() string
	log          *slog.Logger
}

// NewMeetingComposer creates a new meeting composer
func NewMeetingComposer(
	prefixRepo repo.PrefixRepo,
	calendarRepo repo.CalendarRepo,
	guests *GuestResolver,
	config ComposerConfig,
	log *slog.Logger,
) *MeetingComposer {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.NewBackOff == nil {
		config.NewBackOff = DefaultComposerConfig().NewBackOff
	}
	return &MeetingComposer{
		prefixRepo:   prefixRepo,
		calendarRepo: calendarRepo,
		guests:       guests,
		config:       config,
		newRequestID: uuid.NewString,
		log:          log.With("component", "meeting_composer"),
	}
}

// ComposeResult is a draft plus what the reply needs to know about it
type ComposeResult struct {
	Draft          domain.CalendarEventDraft
	RequesterEmail string
	Guests         []string                 // Mention IDs invited, self-mentions removed
	Unresolved     []domain.GuestResolution // One per distinct unresolved mention
}

// Meeting is a successfully created meeting
type Meeting struct {
	*ComposeResult
	Event *domain.CreatedEvent
}

// Schedule composes the draft and creates the calendar event
func (c *MeetingComposer) Schedule(ctx context.Context, req domain.MeetingRequest, now time.Time) (*Meeting, error) {
	composed, err := c.Compose(ctx, req, now)
	if err != nil {
		return nil, err
	}
	event, err := c.Create(ctx, composed.Draft)
	if err != nil {
		return nil, err
	}
	return &Meeting{ComposeResult: composed, Event: event}, nil
}

// Compose merges the request, the channel prefix and the resolved guests
func (c *MeetingComposer) Compose(ctx context.Context, req domain.MeetingRequest, now time.Time) (*ComposeResult, error) {
	prefix, _, err := c.prefixRepo.Get(ctx, req.ChannelID)
	if err != nil {
		return nil, err
	}

	requester, err := c.guests.ResolveOne(ctx, req.RequesterID)
	if err != nil {
		return nil, err
	}

	guestIDs := lo.Reject(req.GuestMentions, func(id string, _ int) bool {
		return id == req.RequesterID
	})
	resolutions := c.guests.Resolve(ctx, guestIDs)

	attendees := []domain.GuestResolution{requester}
	var unresolved []domain.GuestResolution
	for _, res := range resolutions {
		if res.Resolved() {
			attendees = append(attendees, res)
		} else {
			unresolved = append(unresolved, res)
		}
	}
	attendees = lo.UniqBy(attendees, func(res domain.GuestResolution) string {
		return strings.ToLower(res.Email)
	})
	emails := lo.Map(attendees, func(res domain.GuestResolution, _ int) string { return res.Email })
	userIDs := lo.Map(attendees, func(res domain.GuestResolution, _ int) string { return res.MentionID })

	return &ComposeResult{
		Draft: domain.CalendarEventDraft{
			Summary:             domain.BuildSummary(prefix, req.Title),
			Start:               now,
			End:                 now.Add(req.Duration()),
			Attendees:           emails,
			AttendeeIDs:         userIDs,
			ConferenceRequestID: c.newRequestID(),
		},
		RequesterEmail: requester.Email,
		Guests:         lo.Uniq(guestIDs),
		Unresolved: lo.UniqBy(unresolved, func(res domain.GuestResolution) string {
			return res.MentionID
		}),
	}, nil
}

// Create calls the calendar collaborator, retrying transient failures
// Every attempt carries the draft's ConferenceRequestID so retries never add a
// second conference link. The call is detached from ctx cancellation so a
// caller that goes away does not leave a half-created event behind.
func (c *MeetingComposer) Create(ctx context.Context, draft domain.CalendarEventDraft) (*domain.CreatedEvent, error) {
	callCtx := context.WithoutCancel(ctx)
	if c.config.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, c.config.CallTimeout)
		defer cancel()
	}

	attempts := 0
	operation := func() (*domain.CreatedEvent, error) {
		attempts++
		event, err := c.calendarRepo.CreateEvent(callCtx, draft)
		if err == nil {
			return event, nil
		}
		apiErr := asCalendarError(err)
		if !apiErr.Retryable() {
			return nil, backoff.Permanent(apiErr)
		}
		return nil, apiErr
	}

	event, err := backoff.Retry(callCtx, operation,
		backoff.WithBackOff(c.config.NewBackOff()),
		backoff.WithMaxTries(uint(c.config.MaxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.log.Warn("calendar call failed, retrying",
				"request_id", draft.ConferenceRequestID, "attempt", attempts, "next", next, "error", err)
		}),
	)
	if err != nil {
		apiErr := asCalendarError(err)
		c.log.Error("calendar call failed",
			"request_id", draft.ConferenceRequestID, "attempts", attempts, "kind", apiErr.Kind, "error", apiErr.Err)
		if derr := c.calendarRepo.DiscardEvent(context.WithoutCancel(ctx), draft.ConferenceRequestID); derr != nil {
			c.log.Error("failed to discard partial event", "request_id", draft.ConferenceRequestID, "error", derr)
		}
		return nil, &domain.CalendarAPIError{Kind: apiErr.Kind, Attempts: attempts, Err: apiErr.Err}
	}

	c.log.Info("calendar event created",
		"request_id", draft.ConferenceRequestID, "event_id", event.EventID, "attempts", attempts)
	return event, nil
}

// asCalendarError treats untyped failures as transient
func asCalendarError(err error) *domain.CalendarAPIError {
	var apiErr *domain.CalendarAPIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &domain.CalendarAPIError{Kind: domain.CalendarTransient, Err: err}
}
