package server

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/DevRickLin/feishu-meet-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-meet-bot/internal/infra/feishu"
)

// seenTTL is how long a message ID is remembered for redelivery checks
const seenTTL = 5 * time.Minute

// messageSource is the Feishu event connection
type messageSource interface {
	OnMessage(handler feishu.MessageHandler)
	Start() error
	Stop()
}

// dispatcher queues invocations for the worker pool
type dispatcher interface {
	Dispatch(ctx context.Context, inv domain.Invocation) error
}

// FeishuServer turns Feishu messages into command invocations
type FeishuServer struct {
	source     messageSource
	dispatcher dispatcher
	log        *slog.Logger
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	// Message deduplication cache
	seenMsgsMu sync.Mutex
	seenMsgs   map[string]time.Time // msgID -> timestamp
}

// NewFeishuServer creates a new Feishu server
func NewFeishuServer(source messageSource, dispatcher dispatcher, log *slog.Logger) *FeishuServer {
	ctx, cancel := context.WithCancel(context.Background())
	return &FeishuServer{
		source:     source,
		dispatcher: dispatcher,
		log:        log.With("component", "feishu_server"),
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
		seenMsgs:   make(map[string]time.Time),
	}
}

// Start sets the message handler and blocks on the Feishu connection
func (s *FeishuServer) Start() error {
	s.source.OnMessage(s.handleMessage)
	return s.source.Start()
}

// Stop disconnects; replies of invocations still running are dropped
func (s *FeishuServer) Stop() {
	s.cancel()
	s.source.Stop()
}

// handleMessage handles Feishu messages
// It only enqueues so the event is acknowledged right away.
func (s *FeishuServer) handleMessage(msg *feishu.Message) {
	command, rawText, ok := splitCommand(msg.Text)
	if !ok {
		s.log.Debug("ignoring non-command message", "chat_id", msg.ChatID, "msg_id", msg.MsgID)
		return
	}

	// Message deduplication: Feishu redelivers events it considers unacknowledged
	if !s.markMessageSeen(msg.MsgID) {
		s.log.Info("duplicate message ignored", "msg_id", msg.MsgID)
		return
	}

	inv := domain.Invocation{
		ID:          msg.MsgID,
		ChannelID:   msg.ChatID,
		RequesterID: msg.SenderID,
		CommandName: command,
		RawText:     rawText,
		ReceivedAt:  s.now(),
	}
	s.log.Info("command received",
		"msg_id", msg.MsgID, "chat_id", msg.ChatID, "chat_type", msg.ChatType, "command", command)

	if err := s.dispatcher.Dispatch(s.ctx, inv); err != nil {
		s.log.Warn("command not dispatched", "msg_id", msg.MsgID, "error", err)
	}
}

// leadingMentions matches mentions typed before the command, such as an
// "@Bot" that was not recognised as the bot's own
var leadingMentions = regexp.MustCompile(`^(?:<@[^>]+>\s*)+`)

// splitCommand splits "/name rest of text" into its parts
func splitCommand(text string) (string, string, bool) {
	text = strings.TrimSpace(text)
	text = leadingMentions.ReplaceAllString(text, "")
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	name, rest, _ := strings.Cut(text, " ")
	if i := strings.IndexAny(name, "\n\t"); i >= 0 {
		rest = name[i:] + " " + rest
		name = name[:i]
	}
	if len(name) < 2 {
		return "", "", false
	}
	return name, strings.TrimSpace(rest), true
}

// markMessageSeen records msgID and reports whether it was new
func (s *FeishuServer) markMessageSeen(msgID string) bool {
	s.seenMsgsMu.Lock()
	defer s.seenMsgsMu.Unlock()

	now := s.now()
	if ts, exists := s.seenMsgs[msgID]; exists && now.Sub(ts) < seenTTL {
		return false
	}
	s.seenMsgs[msgID] = now

	// Clean up expired message records to prevent memory leaks
	cutoff := now.Add(-seenTTL)
	for id, ts := range s.seenMsgs {
		if ts.Before(cutoff) {
			delete(s.seenMsgs, id)
		}
	}
	return true
}
