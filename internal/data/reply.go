package data

import (
	"context"

	"github.com/DevRickLin/feishu-meet-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-meet-bot/internal/biz/repo"
	"github.com/DevRickLin/feishu-meet-bot/internal/infra/feishu"
)

type messageAPI interface {
	SendText(ctx context.Context, chatID, text string) error
	SendTextToUser(ctx context.Context, openID, text string) error
}

// feishuReplyRepo delivers command replies through Feishu messages
type feishuReplyRepo struct {
	api messageAPI
}

// NewReplyRepo creates a new Feishu reply repository
func NewReplyRepo(api messageAPI) repo.ReplyRepo {
	return &feishuReplyRepo{api: api}
}

// SendReply posts in-channel replies to the chat and ephemeral ones privately to the requester
func (r *feishuReplyRepo) SendReply(ctx context.Context, inv domain.Invocation, reply domain.Reply) error {
	text := feishu.RenderMentions(reply.Text)
	if reply.Visibility == domain.VisibilityInChannel || inv.RequesterID == "" {
		return r.api.SendText(ctx, inv.ChannelID, text)
	}
	return r.api.SendTextToUser(ctx, inv.RequesterID, text)
}
