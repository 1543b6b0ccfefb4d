package repo

import (
	"context"

	"github.com/DevRickLin/feishu-meet-bot/internal/biz/domain"
)

// CalendarRepo creates calendar events with a video-conference link
type CalendarRepo interface {
	// CreateEvent creates one event for the draft
	// Calls repeated with the same ConferenceRequestID must not create a second event or link
	// Failures are *domain.CalendarAPIError
	CreateEvent(ctx context.Context, draft domain.CalendarEventDraft) (*domain.CreatedEvent, error)

	// DiscardEvent removes whatever a failed CreateEvent left behind for the request ID
	// It is a no-op when nothing was created.
	DiscardEvent(ctx context.Context, conferenceRequestID string) error
}
