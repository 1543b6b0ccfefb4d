package repo

import (
	"context"

	"github.com/DevRickLin/feishu-meet-bot/internal/biz/domain"
)

// ReplyRepo delivers router replies back to the chat platform
type ReplyRepo interface {
	// SendReply posts to the channel or, for ephemeral replies, to the invoker only
	SendReply(ctx context.Context, inv domain.Invocation, reply domain.Reply) error
}
