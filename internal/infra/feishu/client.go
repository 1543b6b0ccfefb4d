package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
)

// Message represents a received Feishu text message
type Message struct {
	ChatID   string
	MsgID    string
	ChatType string // p2p (private), group
	SenderID string // open_id
	Text     string // Mentions rewritten to <@open_id>, bot mention removed
}

// MessageHandler is the callback for received messages
// It runs on the SDK's event goroutine and must return quickly so the event is acknowledged.
type MessageHandler func(msg *Message)

// Client is the Feishu API client
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
	wsCli     *larkws.Client
	onMessage MessageHandler
	ctx       context.Context
	cancel    context.CancelFunc
	log       *slog.Logger

	// Bot identity, fetched lazily and retried after botRetryInterval on failure
	botMu      sync.Mutex
	botOpenID  string
	botTriedAt time.Time
	fetchBot   func(ctx context.Context) (string, error)
	now        func() time.Time
}

const (
	botRetryInterval = 30 * time.Second
	botFetchTimeout  = 5 * time.Second
)

// NewClient creates a new Feishu client
func NewClient(appID, appSecret string, log *slog.Logger) *Client {
	c := &Client{
		appID:     appID,
		appSecret: appSecret,
		larkCli:   lark.NewClient(appID, appSecret),
		log:       log.With("component", "feishu"),
		now:       time.Now,
	}
	c.fetchBot = c.fetchBotOpenID
	return c
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler MessageHandler) {
	c.onMessage = handler
}

// Start connects to Feishu via WebSocket and blocks while listening for messages
func (c *Client) Start() error {
	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.botID(c.ctx)

	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			c.handleMessage(ctx, event)
			return nil
		})

	c.wsCli = larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	c.log.Info("starting WebSocket connection")
	return c.wsCli.Start(c.ctx)
}

// Stop disconnects from Feishu
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// botID returns the bot's open_id, fetching it when still unknown
// Failed fetches are retried at most once per botRetryInterval.
func (c *Client) botID(ctx context.Context) string {
	c.botMu.Lock()
	defer c.botMu.Unlock()
	if c.botOpenID != "" {
		return c.botOpenID
	}
	now := c.now()
	if !c.botTriedAt.IsZero() && now.Sub(c.botTriedAt) < botRetryInterval {
		return ""
	}
	c.botTriedAt = now

	ctx, cancel := context.WithTimeout(ctx, botFetchTimeout)
	defer cancel()
	id, err := c.fetchBot(ctx)
	if err != nil {
		c.log.Warn("failed to fetch bot open_id", "error", err)
		return ""
	}
	c.botOpenID = id
	return id
}

func (c *Client) fetchBotOpenID(ctx context.Context) (string, error) {
	var out struct {
		Bot struct {
			OpenID  string `json:"open_id"`
			AppName string `json:"app_name"`
		} `json:"bot"`
	}
	// bot/v3/info puts the payload at the top level instead of under "data"
	if err := c.call(ctx, "GET", "/open-apis/bot/v3/info", nil, &out, false); err != nil {
		return "", err
	}
	if out.Bot.OpenID == "" {
		return "", fmt.Errorf("bot info has no open_id")
	}
	c.log.Info("bot identity", "open_id", out.Bot.OpenID, "name", out.Bot.AppName)
	return out.Bot.OpenID, nil
}

// handleMessage converts a receive event into a Message
func (c *Client) handleMessage(ctx context.Context, event *larkim.P2MessageReceiveV1) {
	if event == nil || event.Event == nil || event.Event.Message == nil {
		return
	}
	rawMsg := event.Event.Message

	// Ignore the bot's own messages
	if event.Event.Sender != nil && event.Event.Sender.SenderType != nil && *event.Event.Sender.SenderType == "app" {
		return
	}
	if rawMsg.MessageType == nil || *rawMsg.MessageType != larkim.MsgTypeText || rawMsg.Content == nil {
		return
	}

	msg := &Message{
		ChatID: deref(rawMsg.ChatId),
		MsgID:  deref(rawMsg.MessageId),
	}
	if rawMsg.ChatType != nil {
		msg.ChatType = *rawMsg.ChatType
	}
	if event.Event.Sender != nil && event.Event.Sender.SenderId != nil {
		msg.SenderID = deref(event.Event.Sender.SenderId.OpenId)
	}

	// Mention placeholders (@_user_1) map to open_ids
	mentionMap := make(map[string]string)
	for _, mention := range rawMsg.Mentions {
		if mention == nil || mention.Key == nil || mention.Id == nil || mention.Id.OpenId == nil {
			continue
		}
		mentionMap[*mention.Key] = *mention.Id.OpenId
	}

	msg.Text = RewriteMentions(parseTextContent(*rawMsg.Content), mentionMap, c.botID(ctx))
	if c.onMessage != nil {
		c.onMessage(msg)
	}
}

func parseTextContent(content string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}
	return parsed.Text
}

// RewriteMentions replaces @_user_N placeholders with <@open_id> tokens
// The bot's own mention is dropped so "@Bot /mtg ..." reads as "/mtg ...".
func RewriteMentions(text string, mentionMap map[string]string, botOpenID string) string {
	if len(mentionMap) == 0 {
		return strings.TrimSpace(text)
	}
	// Longest keys first so @_user_10 is never read as @_user_1 followed by "0"
	keys := make([]string, 0, len(mentionMap))
	for key := range mentionMap {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })

	pairs := make([]string, 0, len(keys)*2)
	for _, key := range keys {
		replacement := "<@" + mentionMap[key] + ">"
		if mentionMap[key] == botOpenID {
			replacement = ""
		}
		pairs = append(pairs, key, replacement)
	}
	return strings.TrimSpace(strings.NewReplacer(pairs...).Replace(text))
}

// SendText sends a text message to a chat
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	return c.sendText(ctx, larkim.ReceiveIdTypeChatId, chatID, text)
}

// SendTextToUser sends a text message privately to a user by open_id
func (c *Client) SendTextToUser(ctx context.Context, openID, text string) error {
	return c.sendText(ctx, larkim.ReceiveIdTypeOpenId, openID, text)
}

func (c *Client) sendText(ctx context.Context, idType, receiveID, text string) error {
	content := map[string]string{"text": text}
	contentJSON, _ := json.Marshal(content)

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(idType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(receiveID).
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return &APIError{Code: resp.Code, Msg: resp.Msg}
	}

	c.log.Debug("message sent", "receive_id_type", idType, "receive_id", receiveID)
	return nil
}

// GetChatOwner returns the open_id of the chat's owner
func (c *Client) GetChatOwner(ctx context.Context, chatID string) (string, error) {
	req := larkim.NewGetChatReqBuilder().
		ChatId(chatID).
		Build()

	resp, err := c.larkCli.Im.Chat.Get(ctx, req)
	if err != nil {
		return "", fmt.Errorf("get chat info failed: %w", err)
	}
	if !resp.Success() {
		return "", &APIError{Code: resp.Code, Msg: resp.Msg}
	}
	return deref(resp.Data.OwnerId), nil
}

// GetUserEmail looks up a user's email in the contact directory
// The enterprise mailbox wins over the personal address when both exist.
func (c *Client) GetUserEmail(ctx context.Context, openID string) (string, error) {
	var out struct {
		User struct {
			Email           string `json:"email"`
			EnterpriseEmail string `json:"enterprise_email"`
		} `json:"user"`
	}
	path := "/open-apis/contact/v3/users/" + openID + "?user_id_type=open_id"
	if err := c.call(ctx, "GET", path, nil, &out, true); err != nil {
		return "", err
	}
	if out.User.EnterpriseEmail != "" {
		return out.User.EnterpriseEmail, nil
	}
	return out.User.Email, nil
}

// call performs an OpenAPI request with the tenant token and decodes the response
// When wrapped is true the payload is read from the "data" field.
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}, wrapped bool) error {
	var (
		resp *larkcore.ApiResp
		err  error
	)
	switch method {
	case "GET":
		resp, err = c.larkCli.Get(ctx, path, body, larkcore.AccessTokenTypeTenant)
	case "POST":
		resp, err = c.larkCli.Post(ctx, path, body, larkcore.AccessTokenTypeTenant)
	case "DELETE":
		resp, err = c.larkCli.Delete(ctx, path, body, larkcore.AccessTokenTypeTenant)
	default:
		return fmt.Errorf("unsupported method %s", method)
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, trimQuery(path), err)
	}
	return decodeResponse(resp.StatusCode, resp.RawBody, out, wrapped)
}

func decodeResponse(status int, raw []byte, out interface{}, wrapped bool) error {
	var envelope struct {
		Code int             `json:"code"`
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		if status >= 300 {
			return &APIError{StatusCode: status, Msg: strings.TrimSpace(string(raw))}
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if status >= 300 || envelope.Code != 0 {
		return &APIError{StatusCode: status, Code: envelope.Code, Msg: envelope.Msg}
	}
	if out == nil {
		return nil
	}
	payload := raw
	if wrapped {
		payload = envelope.Data
	}
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

func trimQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var mentionTokenPattern = regexp.MustCompile(`<@([A-Za-z0-9_\-]+)(?:\|[^>]*)?>`)

// RenderMentions turns <@open_id> tokens into Feishu text-message mentions
func RenderMentions(text string) string {
	return mentionTokenPattern.ReplaceAllString(text, `<at user_id="$1"></at>`)
}
