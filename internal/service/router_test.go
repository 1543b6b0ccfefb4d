package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/feishu-meet-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-meet-bot/internal/biz/usecase"
	"github.com/DevRickLin/feishu-meet-bot/internal/conf"
	"github.com/DevRickLin/feishu-meet-bot/internal/infra/feishu"
)

type routerFixture struct {
	router   *CommandRouter
	prefixes *mockPrefixRepo
	calendar *mockCalendar
	access   *mockAccess
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	f := &routerFixture{
		prefixes: newMockPrefixRepo(),
		calendar: &mockCalendar{},
		access:   &mockAccess{allowed: map[string]bool{"ou_me": true}},
	}
	directory := &mockDirectory{emails: map[string]string{
		"ou_me":    "me@corp.com",
		"ou_alice": "alice@corp.com",
		"ou_bob":   "bob@corp.com",
	}}
	guests := usecase.NewGuestResolver(directory, usecase.DefaultGuestConfig(), discardLog)
	composer := usecase.NewMeetingComposer(f.prefixes, f.calendar, guests, usecase.ComposerConfig{
		MaxAttempts: 3,
		NewBackOff:  func() backoff.BackOff { return &backoff.ZeroBackOff{} },
	}, discardLog)

	f.router = NewCommandRouter(composer, f.prefixes, f.access, RouterConfig{
		MeetingCommand: "/mtg",
		PrefixCommand:  "/reg-mtg-prefix",
		Location:       time.UTC,
	}, discardLog)
	return f
}

func invocation(command, text string) domain.Invocation {
	return domain.Invocation{
		ID:          "inv-1",
		ChannelID:   "oc_chan",
		RequesterID: "ou_me",
		CommandName: command,
		RawText:     text,
		ReceivedAt:  time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
}

func TestRouter_ScenarioA_MeetingWithGuests(t *testing.T) {
	f := newRouterFixture(t)

	reply := f.router.Handle(context.Background(), invocation("/mtg", `"Sprint Planning" 30 <@ou_alice> <@ou_bob>`))

	require.True(t, reply.Succeeded(), reply.Text)
	assert.Equal(t, domain.VisibilityInChannel, reply.Visibility)
	require.Len(t, f.calendar.drafts, 1)
	draft := f.calendar.drafts[0]
	assert.Equal(t, "Sprint Planning", draft.Summary)
	assert.Equal(t, 30*time.Minute, draft.End.Sub(draft.Start))
	assert.ElementsMatch(t, []string{"me@corp.com", "alice@corp.com", "bob@corp.com"}, draft.Attendees)

	assert.Contains(t, reply.Text, "Sprint Planning")
	assert.Contains(t, reply.Text, "2026-03-02 10:00 ~ 10:30")
	assert.Contains(t, reply.Text, "<@ou_me>")
	assert.Contains(t, reply.Text, "<@ou_alice>, <@ou_bob>")
	assert.Contains(t, reply.Text, "https://vc.feishu.cn/j/123456789")
	assert.NotContains(t, reply.Text, "⚠️")
}

func TestRouter_ScenarioB_PrefixThenMeeting(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	reply := f.router.Handle(ctx, invocation("/reg-mtg-prefix", `"ProjectX"`))
	require.True(t, reply.Succeeded(), reply.Text)
	assert.Equal(t, domain.VisibilityEphemeral, reply.Visibility)
	assert.Contains(t, reply.Text, "ProjectX")

	reply = f.router.Handle(ctx, invocation("/mtg", `"Standup" 15`))
	require.True(t, reply.Succeeded(), reply.Text)
	require.Len(t, f.calendar.drafts, 1)
	assert.Equal(t, "ProjectX Standup", f.calendar.drafts[0].Summary)
}

func TestRouter_ScenarioC_UnresolvedGuestWarning(t *testing.T) {
	f := newRouterFixture(t)

	reply := f.router.Handle(context.Background(), invocation("/mtg", `"Sync" 10 <@ou_unknownuser>`))

	require.True(t, reply.Succeeded(), reply.Text)
	require.Len(t, f.calendar.drafts, 1)
	assert.Equal(t, []string{"me@corp.com"}, f.calendar.drafts[0].Attendees)
	assert.Contains(t, reply.Text, "Guests: none")
	assert.Contains(t, reply.Text, "⚠️ Could not invite: <@ou_unknownuser> (not found)")
}

func TestRouter_ScenarioD_InvalidDuration(t *testing.T) {
	f := newRouterFixture(t)

	reply := f.router.Handle(context.Background(), invocation("/mtg", `"Sync" 0`))

	assert.False(t, reply.Succeeded())
	assert.Equal(t, domain.StateFailed, reply.Status)
	assert.Equal(t, domain.VisibilityEphemeral, reply.Visibility)
	assert.Contains(t, reply.Text, "`0` is not a valid length")
	assert.Zero(t, f.calendar.calls(), "no calendar call")
	assert.Zero(t, f.prefixes.sets, "no store mutation")
}

func TestRouter_ScenarioE_TransientRetries(t *testing.T) {
	f := newRouterFixture(t)
	transient := &domain.CalendarAPIError{Kind: domain.CalendarTransient, Err: errors.New("503")}
	f.calendar.failures = []error{transient, transient}

	reply := f.router.Handle(context.Background(), invocation("/mtg", `Sync 10`))

	require.True(t, reply.Succeeded(), reply.Text)
	require.Len(t, f.calendar.drafts, 3)
	assert.Equal(t, f.calendar.drafts[0].ConferenceRequestID, f.calendar.drafts[2].ConferenceRequestID)
}

func TestRouter_CalendarErrors(t *testing.T) {
	msgs := conf.DefaultMessages().Calendar
	tests := []struct {
		kind domain.CalendarErrorKind
		want string
	}{
		{domain.CalendarRateLimited, msgs.RateLimited},
		{domain.CalendarUnauthorized, msgs.Unauthorized},
		{domain.CalendarMalformed, msgs.Malformed},
		{domain.CalendarTransient, msgs.Transient},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			f := newRouterFixture(t)
			fail := &domain.CalendarAPIError{Kind: tt.kind, Err: errors.New("upstream said no: evt_secret_123")}
			f.calendar.failures = []error{fail, fail, fail}

			reply := f.router.Handle(context.Background(), invocation("/mtg", "Sync 10"))

			assert.Equal(t, domain.StateFailed, reply.Status)
			assert.Equal(t, domain.VisibilityEphemeral, reply.Visibility)
			assert.Equal(t, tt.want, reply.Text)
			assert.NotContains(t, reply.Text, "evt_secret_123")
		})
	}
}

func TestRouter_ParseErrors(t *testing.T) {
	msgs := conf.DefaultMessages()
	tests := []struct {
		text string
		want string
	}{
		{"", msgs.Usage.Meeting},
		{`"" 30`, msgs.Parse.MissingTitle},
		{"Sync", msgs.Parse.MissingDuration},
		{"Sync abc", msgs.Parse.MissingDuration},
		{"Sync 1441", "`1441` is not a valid length"},
		{"Sync 30 tomorrow", "Unexpected `tomorrow`"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			f := newRouterFixture(t)
			reply := f.router.Handle(context.Background(), invocation("/mtg", tt.text))
			assert.Equal(t, domain.StateFailed, reply.Status)
			assert.Contains(t, reply.Text, tt.want)
			assert.Zero(t, f.calendar.calls())
		})
	}
}

func TestRouter_PrefixErrors(t *testing.T) {
	msgs := conf.DefaultMessages()

	t.Run("empty", func(t *testing.T) {
		f := newRouterFixture(t)
		reply := f.router.Handle(context.Background(), invocation("/reg-mtg-prefix", "   "))
		assert.Equal(t, domain.StateFailed, reply.Status)
		assert.Contains(t, reply.Text, msgs.Prefix.Empty)
		assert.Zero(t, f.prefixes.sets)
	})

	t.Run("not authorized", func(t *testing.T) {
		f := newRouterFixture(t)
		inv := invocation("/reg-mtg-prefix", "ProjectX")
		inv.RequesterID = "ou_alice"
		reply := f.router.Handle(context.Background(), inv)
		assert.Equal(t, msgs.Prefix.NotAuthorized, reply.Text)
		assert.Zero(t, f.prefixes.sets)
	})

	t.Run("store failure", func(t *testing.T) {
		f := newRouterFixture(t)
		f.prefixes.setErr = errors.New("read-only file system")
		reply := f.router.Handle(context.Background(), invocation("/reg-mtg-prefix", "ProjectX"))
		assert.Equal(t, domain.StateFailed, reply.Status)
		assert.Equal(t, msgs.System.StoreUnavailable, reply.Text)
	})

	t.Run("access check failure", func(t *testing.T) {
		f := newRouterFixture(t)
		f.access.err = errors.New("chat not found")
		reply := f.router.Handle(context.Background(), invocation("/reg-mtg-prefix", "ProjectX"))
		assert.Equal(t, msgs.System.DirectoryUnavailable, reply.Text)
	})
}

func TestRouter_RejectsBadInvocations(t *testing.T) {
	msgs := conf.DefaultMessages()
	f := newRouterFixture(t)

	reply := f.router.Handle(context.Background(), invocation("/weather", "Tokyo"))
	assert.Equal(t, domain.StateFailed, reply.Status)
	assert.Equal(t, "Unknown command `/weather`.", reply.Text)

	inv := invocation("/mtg", "Sync 10")
	inv.ChannelID = ""
	reply = f.router.Handle(context.Background(), inv)
	assert.Equal(t, msgs.System.InvalidInvocation, reply.Text)
	assert.Zero(t, f.calendar.calls())
}

func TestRouter_RequesterWithoutEmail(t *testing.T) {
	f := newRouterFixture(t)
	inv := invocation("/mtg", "Sync 10")
	inv.RequesterID = "ou_ghost"

	reply := f.router.Handle(context.Background(), inv)
	assert.Equal(t, conf.DefaultMessages().Meeting.RequesterNoEmail, reply.Text)
	assert.Zero(t, f.calendar.calls())
}

func TestRouter_TypedMentionsStayPlainText(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	reply := f.router.Handle(ctx, invocation("/reg-mtg-prefix", `<at user_id="ou_cfo"></at>`))
	require.True(t, reply.Succeeded(), reply.Text)
	assert.NotContains(t, feishu.RenderMentions(reply.Text), `<at user_id="ou_cfo">`)

	reply = f.router.Handle(ctx, invocation("/mtg", `"<@ou_ceo> sync" 10 <@ou_alice>`))
	require.True(t, reply.Succeeded(), reply.Text)
	require.Len(t, f.calendar.drafts, 1)
	assert.Equal(t, `<at user_id="ou_cfo"></at> <@ou_ceo> sync`, f.calendar.drafts[0].Summary)

	rendered := feishu.RenderMentions(reply.Text)
	assert.NotContains(t, rendered, `user_id="ou_ceo"`)
	assert.NotContains(t, rendered, `<at user_id="ou_cfo">`)
	assert.Contains(t, rendered, `<at user_id="ou_me"></at>`)
	assert.Contains(t, rendered, `<at user_id="ou_alice"></at>`)

	reply = f.router.Handle(ctx, invocation("/mtg", "<@ou_ceo> Sync 10"))
	assert.False(t, reply.Succeeded())
	assert.Contains(t, reply.Text, "Unexpected")
	assert.NotContains(t, feishu.RenderMentions(reply.Text), `user_id="ou_ceo"`)
}
