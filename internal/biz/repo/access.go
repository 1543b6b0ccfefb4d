package repo

import "context"

// AccessRepo decides who may change a channel's configuration
type AccessRepo interface {
	CanManagePrefix(ctx context.Context, channelID, userID string) (bool, error)
}
