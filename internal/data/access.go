package data

import (
	"context"

	"github.com/samber/lo"

	"github.com/DevRickLin/feishu-meet-bot/internal/biz/repo"
)

type chatOwnerAPI interface {
	GetChatOwner(ctx context.Context, chatID string) (string, error)
}

// feishuAccessRepo decides who may manage a channel's prefix
type feishuAccessRepo struct {
	api          chatOwnerAPI
	admins       map[string]struct{}
	requireOwner bool
}

// NewAccessRepo creates an access repository
// Admins may always manage prefixes. Otherwise only the chat owner may,
// unless requireOwner is false.
func NewAccessRepo(api chatOwnerAPI, admins []string, requireOwner bool) repo.AccessRepo {
	return &feishuAccessRepo{
		api: api,
		admins: lo.SliceToMap(admins, func(id string) (string, struct{}) {
			return id, struct{}{}
		}),
		requireOwner: requireOwner,
	}
}

// CanManagePrefix reports whether userID may change channelID's prefix
func (r *feishuAccessRepo) CanManagePrefix(ctx context.Context, channelID, userID string) (bool, error) {
	if _, ok := r.admins[userID]; ok {
		return true, nil
	}
	if !r.requireOwner {
		return true, nil
	}
	owner, err := r.api.GetChatOwner(ctx, channelID)
	if err != nil {
		return false, err
	}
	return owner != "" && owner == userID, nil
}
