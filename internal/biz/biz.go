package biz

import (
	"log/slog"

	"github.com/DevRickLin/feishu-meet-bot/internal/biz/repo"
	"github.com/DevRickLin/feishu-meet-bot/internal/biz/usecase"
)

// Usecases contains all usecases
type Usecases struct {
	Guests   *usecase.GuestResolver
	Composer *usecase.MeetingComposer
}

// NewUsecases creates all usecases
func NewUsecases(
	prefixRepo repo.PrefixRepo,
	directoryRepo repo.DirectoryRepo,
	calendarRepo repo.CalendarRepo,
	guestConfig usecase.GuestConfig,
	composerConfig usecase.ComposerConfig,
	log *slog.Logger,
) *Usecases {
	guests := usecase.NewGuestResolver(directoryRepo, guestConfig, log)
	return &Usecases{
		Guests:   guests,
		Composer: usecase.NewMeetingComposer(prefixRepo, calendarRepo, guests, composerConfig, log),
	}
}
