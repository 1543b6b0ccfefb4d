package service

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

type mockPrefixRepo struct {
	mu         sync.Mutex
	prefixes   map[string]string
	sets       int
	setErr     error
	getEntered chan struct{} // When set, Get closes it and waits for ctx to end
}

func newMockPrefixRepo() *mockPrefixRepo {
	return &mockPrefixRepo{prefixes: map[string]string{}}
}

func (m *mockPrefixRepo) Get(ctx context.Context, channelID string) (string, bool, error) {
	if m.getEntered != nil {
		close(m.getEntered)
		<-ctx.Done()
		return "", false, ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prefixes[channelID]
	return p, ok, nil
}

func (m *mockPrefixRepo) Set(ctx context.Context, channelID, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return &domain.StoreError{Op: "set", ChannelID: channelID, Err: m.setErr}
	}
	m.sets++
	m.prefixes[channelID] = prefix
	return nil
}

func (m *mockPrefixRepo) Delete(ctx context.Context, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.prefixes, channelID)
	return nil
}

func (m *mockPrefixRepo) List(ctx context.Context) ([]domain.ChannelPrefix, error) {
	return nil, nil
}

func (m *mockPrefixRepo) Close() error {
	return nil
}

type mockDirectory struct {
	emails map[string]string
}

func (m *mockDirectory) LookupEmail(ctx context.Context, userID string) (string, error) {
	email, ok := m.emails[userID]
	if !ok {
		return "", repo.ErrUserNotFound
	}
	return email, nil
}

type mockCalendar struct {
	mu       sync.Mutex
	failures []error
	drafts   []domain.CalendarEventDraft
	block    chan struct{} // When set, CreateEvent waits for it to close
	entered  chan struct{} // Closed by the first CreateEvent call, when set
	once     sync.Once
}

func (m *mockCalendar) CreateEvent(ctx context.Context, draft domain.CalendarEventDraft) (*domain.CreatedEvent, error) {
	if m.entered != nil {
		m.once.Do(func() { close(m.entered) })
	}
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts = append(m.drafts, draft)
	if len(m.failures) > 0 {
		err := m.failures[0]
		m.failures = m.failures[1:]
		return nil, err
	}
	return &domain.CreatedEvent{
		EventID:     "evt_1",
		JoinURL:     "https://vc.feishu.cn/j/123456789",
		CalendarURL: "https://applink.feishu.cn/client/calendar/event/detail?id=evt_1",
	}, nil
}

func (m *mockCalendar) DiscardEvent(ctx context.Context, conferenceRequestID string) error {
	return nil
}

func (m *mockCalendar) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.drafts)
}

type mockAccess struct {
	allowed map[string]bool
	err     error
}

func (m *mockAccess) CanManagePrefix(ctx context.Context, channelID, userID string) (bool, error) {
	return m.allowed[userID], m.err
}

type sentReply struct {
	inv   domain.Invocation
	reply domain.Reply
}

type mockReplies struct {
	mu   sync.Mutex
	sent []sentReply
	ch   chan sentReply
}

func newMockReplies() *mockReplies {
	return &mockReplies{ch: make(chan sentReply, 16)}
}

func (m *mockReplies) SendReply(ctx context.Context, inv domain.Invocation, reply domain.Reply) error {
	m.mu.Lock()
	m.sent = append(m.sent, sentReply{inv: inv, reply: reply})
	m.mu.Unlock()
	m.ch <- sentReply{inv: inv, reply: reply}
	return nil
}
