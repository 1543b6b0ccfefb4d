package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/DevRickLin/feishu-meet-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-meet-bot/internal/biz/repo"
	"github.com/DevRickLin/feishu-meet-bot/internal/biz/usecase"
	"github.com/DevRickLin/feishu-meet-bot/internal/conf"
)

// RouterConfig contains command names and reply settings
type RouterConfig struct {
	MeetingCommand  string
	PrefixCommand   string
	WorkspaceDomain string
	Location        *time.Location
	Messages        *conf.Messages
}

// CommandRouter turns invocations into replies
type CommandRouter struct {
	composer   *usecase.MeetingComposer
	prefixRepo repo.PrefixRepo
	access     repo.AccessRepo // nil allows everyone
	validate   *validator.Validate
	config     RouterConfig
	log        *slog.Logger
}

// NewCommandRouter creates a new command router
func NewCommandRouter(
	composer *usecase.MeetingComposer,
	prefixRepo repo.PrefixRepo,
	access repo.AccessRepo,
	config RouterConfig,
	log *slog.Logger,
) *CommandRouter {
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.Messages == nil {
		config.Messages = conf.DefaultMessages()
	}
	return &CommandRouter{
		composer:   composer,
		prefixRepo: prefixRepo,
		access:     access,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		config:     config,
		log:        log.With("component", "router"),
	}
}

// Handle runs one invocation to a terminal state and returns its reply
// It never fails: every error becomes an ephemeral reply.
func (r *CommandRouter) Handle(ctx context.Context, inv domain.Invocation) (reply domain.Reply) {
	log := r.log.With("invocation_id", inv.ID, "command", inv.CommandName, "channel_id", inv.ChannelID)
	log.Info("invocation state", "state", domain.StateReceived)

	defer func() {
		if p := recover(); p != nil {
			log.Error("invocation panicked", "panic", fmt.Sprint(p))
			reply = r.fail(r.config.Messages.System.Internal)
		}
		log.Info("invocation state", "state", reply.Status)
	}()

	cmd, err := r.decode(inv)
	if err != nil {
		log.Warn("invocation rejected", "error", err)
		return r.fail(r.errorText(err, inv))
	}
	log.Info("invocation state", "state", domain.StateValidated)

	log.Info("invocation state", "state", domain.StateExecuting)
	switch c := cmd.(type) {
	case domain.MeetingCreate:
		return r.handleMeeting(ctx, c, log)
	case domain.PrefixRegister:
		return r.handlePrefix(ctx, c, log)
	default:
		return r.fail(r.config.Messages.System.Internal)
	}
}

// decode validates the invocation and maps it onto a command exactly once
func (r *CommandRouter) decode(inv domain.Invocation) (domain.Command, error) {
	if err := r.validate.Struct(inv); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInvocation, err)
	}

	switch inv.CommandName {
	case r.config.MeetingCommand:
		return domain.MeetingCreate{
			ChannelID:   inv.ChannelID,
			RequesterID: inv.RequesterID,
			Text:        inv.RawText,
			At:          inv.ReceivedAt,
		}, nil
	case r.config.PrefixCommand:
		return domain.PrefixRegister{
			ChannelID:   inv.ChannelID,
			RequesterID: inv.RequesterID,
			Prefix:      inv.RawText,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownCommand, inv.CommandName)
	}
}

func (r *CommandRouter) handleMeeting(ctx context.Context, cmd domain.MeetingCreate, log *slog.Logger) domain.Reply {
	m := r.config.Messages
	if strings.TrimSpace(cmd.Text) == "" {
		return r.fail(m.Usage.Meeting)
	}

	req, err := usecase.ParseMeetingRequest(cmd.Text, cmd.ChannelID, cmd.RequesterID)
	if err != nil {
		log.Info("meeting request rejected", "error", err)
		return r.fail(r.errorText(err, domain.Invocation{}) + "\n\n" + m.Usage.Meeting)
	}

	meeting, err := r.composer.Schedule(ctx, req, cmd.At)
	if err != nil {
		log.Warn("meeting not created", "error", err)
		return r.fail(r.errorText(err, domain.Invocation{}))
	}

	log.Info("meeting created",
		"event_id", meeting.Event.EventID,
		"attendees", len(meeting.Draft.Attendees),
		"unresolved", len(meeting.Unresolved))
	return domain.Reply{
		Text:       r.formatMeeting(meeting, cmd.RequesterID),
		Visibility: domain.VisibilityInChannel,
		Status:     domain.StateSucceeded,
	}
}

func (r *CommandRouter) handlePrefix(ctx context.Context, cmd domain.PrefixRegister, log *slog.Logger) domain.Reply {
	m := r.config.Messages
	if strings.TrimSpace(cmd.Prefix) == "" {
		return r.fail(m.Prefix.Empty + "\n" + m.Usage.Prefix)
	}

	prefix, err := domain.NormalizePrefix(cmd.Prefix)
	if err != nil {
		return r.fail(r.errorText(err, domain.Invocation{}))
	}

	if r.access != nil {
		ok, err := r.access.CanManagePrefix(ctx, cmd.ChannelID, cmd.RequesterID)
		if err != nil {
			log.Error("permission check failed", "error", err)
			return r.fail(m.System.DirectoryUnavailable)
		}
		if !ok {
			log.Warn("prefix change denied", "user_id", cmd.RequesterID)
			return r.fail(r.errorText(domain.ErrNotAuthorized, domain.Invocation{}))
		}
	}

	if err := r.prefixRepo.Set(ctx, cmd.ChannelID, prefix); err != nil {
		log.Error("failed to save prefix", "error", err)
		return r.fail(r.errorText(err, domain.Invocation{}))
	}

	log.Info("prefix saved", "prefix", prefix)
	return domain.Reply{
		Text:       conf.Render(m.Prefix.Saved, map[string]string{"prefix": plainText(prefix)}),
		Visibility: domain.VisibilityEphemeral,
		Status:     domain.StateSucceeded,
	}
}

// errorText maps a failure onto catalogue wording
// Internal identifiers and raw upstream errors never reach the user.
func (r *CommandRouter) errorText(err error, inv domain.Invocation) string {
	m := r.config.Messages

	var parseErr *domain.ParseError
	var storeErr *domain.StoreError
	var calErr *domain.CalendarAPIError
	switch {
	case errors.As(err, &parseErr):
		switch parseErr.Kind {
		case domain.MissingTitle:
			return m.Parse.MissingTitle
		case domain.MissingDuration:
			return m.Parse.MissingDuration
		case domain.InvalidDuration:
			return conf.Render(m.Parse.InvalidDuration, map[string]string{
				"token": plainText(parseErr.Token),
				"max":   strconv.Itoa(domain.MaxDurationMinutes),
			})
		default:
			return conf.Render(m.Parse.UnexpectedToken, map[string]string{"token": plainText(parseErr.Token)})
		}
	case errors.As(err, &storeErr):
		return m.System.StoreUnavailable
	case errors.As(err, &calErr):
		switch calErr.Kind {
		case domain.CalendarRateLimited:
			return m.Calendar.RateLimited
		case domain.CalendarUnauthorized:
			return m.Calendar.Unauthorized
		case domain.CalendarMalformed:
			return m.Calendar.Malformed
		default:
			return m.Calendar.Transient
		}
	case errors.Is(err, domain.ErrEmptyPrefix):
		return m.Prefix.Empty
	case errors.Is(err, domain.ErrPrefixTooLong):
		return conf.Render(m.Prefix.TooLong, map[string]string{"max": strconv.Itoa(domain.MaxPrefixLength)})
	case errors.Is(err, domain.ErrPrefixMultiline):
		return m.Prefix.Multiline
	case errors.Is(err, domain.ErrNotAuthorized):
		return m.Prefix.NotAuthorized
	case errors.Is(err, domain.ErrRequesterUnresolved):
		return m.Meeting.RequesterNoEmail
	case errors.Is(err, domain.ErrRequesterNotAllowed):
		return conf.Render(m.Meeting.RequesterDomain, map[string]string{"domain": r.config.WorkspaceDomain})
	case errors.Is(err, domain.ErrDirectoryUnavailable):
		return m.System.DirectoryUnavailable
	case errors.Is(err, domain.ErrUnknownCommand):
		return conf.Render(m.System.UnknownCommand, map[string]string{"command": plainText(inv.CommandName)})
	case errors.Is(err, domain.ErrInvalidInvocation):
		return m.System.InvalidInvocation
	default:
		return m.System.Internal
	}
}

// formatMeeting renders the in-channel announcement of a created meeting
func (r *CommandRouter) formatMeeting(meeting *usecase.Meeting, requesterID string) string {
	m := r.config.Messages
	start := meeting.Draft.Start.In(r.config.Location)
	end := meeting.Draft.End.In(r.config.Location)

	endFormat := m.Meeting.EndTimeFormat
	if start.YearDay() != end.YearDay() || start.Year() != end.Year() {
		endFormat = m.Meeting.TimeFormat
	}
	timeRange := start.Format(m.Meeting.TimeFormat) + " ~ " + end.Format(endFormat)

	unresolved := lo.SliceToMap(meeting.Unresolved, func(res domain.GuestResolution) (string, struct{}) {
		return res.MentionID, struct{}{}
	})
	invited := lo.Reject(meeting.Guests, func(id string, _ int) bool {
		_, ok := unresolved[id]
		return ok
	})
	guests := m.Meeting.NoGuests
	if len(invited) > 0 {
		guests = strings.Join(lo.Map(invited, func(id string, _ int) string {
			return usecase.FormatMention(id)
		}), ", ")
	}

	text := conf.Render(m.Meeting.Created, map[string]string{
		"title":        plainText(meeting.Draft.Summary),
		"time":         timeRange,
		"owner":        usecase.FormatMention(requesterID),
		"guests":       guests,
		"join_url":     orDefault(meeting.Event.JoinURL, m.Meeting.LinkUnavailable),
		"calendar_url": orDefault(meeting.Event.CalendarURL, m.Meeting.LinkUnavailable),
	})

	if len(meeting.Unresolved) > 0 {
		names := lo.Map(meeting.Unresolved, func(res domain.GuestResolution, _ int) string {
			return usecase.FormatMention(res.MentionID) + " (" + res.Reason + ")"
		})
		text += "\n\n" + conf.Render(m.Meeting.UnresolvedWarning, map[string]string{
			"mentions": strings.Join(names, ", "),
		})
	}
	return text
}

func (r *CommandRouter) fail(text string) domain.Reply {
	return domain.Reply{Text: text, Visibility: domain.VisibilityEphemeral, Status: domain.StateFailed}
}

// userTextMarkup matches the openings of mention markup inside typed text
var userTextMarkup = strings.NewReplacer("<@", "<\u200b@", "<at", "<\u200bat")

// plainText keeps user-typed text from rendering as a mention in a reply
func plainText(s string) string {
	return userTextMarkup.Replace(s)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
