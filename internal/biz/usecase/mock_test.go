package usecase

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/DevRickLin/feishu-meet-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-meet-bot/internal/biz/repo"
)

// Mock implementations

var discardLog = slog.New(slog.NewTextHandler(io.Discard, nil))

type mockDirectory struct {
	mu     sync.Mutex
	emails map[string]string
	errs   map[string]error
	calls  map[string]int
}

func newMockDirectory(emails map[string]string) *mockDirectory {
	return &mockDirectory{emails: emails, errs: map[string]error{}, calls: map[string]int{}}
}

func (m *mockDirectory) LookupEmail(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[userID]++
	if err, ok := m.errs[userID]; ok {
		return "", err
	}
	email, ok := m.emails[userID]
	if !ok {
		return "", repo.ErrUserNotFound
	}
	return email, nil
}

type mockPrefixRepo struct {
	prefixes map[string]string
	getErr   error
}

func (m *mockPrefixRepo) Get(ctx context.Context, channelID string) (string, bool, error) {
	if m.getErr != nil {
		return "", false, m.getErr
	}
	p, ok := m.prefixes[channelID]
	return p, ok, nil
}

func (m *mockPrefixRepo) Set(ctx context.Context, channelID, prefix string) error {
	m.prefixes[channelID] = prefix
	return nil
}

func (m *mockPrefixRepo) Delete(ctx context.Context, channelID string) error {
	delete(m.prefixes, channelID)
	return nil
}

func (m *mockPrefixRepo) List(ctx context.Context) ([]domain.ChannelPrefix, error) {
	return nil, nil
}

func (m *mockPrefixRepo) Close() error {
	return nil
}

type mockCalendar struct {
	mu       sync.Mutex
	failures []error // Returned in order before succeeding
	drafts   []domain.CalendarEventDraft
	created  map[string]*domain.CreatedEvent // By conference request ID
	discards []string
}

func (m *mockCalendar) CreateEvent(ctx context.Context, draft domain.CalendarEventDraft) (*domain.CreatedEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts = append(m.drafts, draft)
	if len(m.failures) > 0 {
		err := m.failures[0]
		m.failures = m.failures[1:]
		return nil, err
	}
	if m.created == nil {
		m.created = map[string]*domain.CreatedEvent{}
	}
	if ev, ok := m.created[draft.ConferenceRequestID]; ok {
		return ev, nil
	}
	ev := &domain.CreatedEvent{
		EventID: "evt-" + draft.ConferenceRequestID,
		JoinURL: "https://vc.example.com/j/" + draft.ConferenceRequestID,
	}
	m.created[draft.ConferenceRequestID] = ev
	return ev, nil
}

func (m *mockCalendar) DiscardEvent(ctx context.Context, conferenceRequestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discards = append(m.discards, conferenceRequestID)
	delete(m.created, conferenceRequestID)
	return nil
}
