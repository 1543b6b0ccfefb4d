package data

import (
	"context"

	"github.com/DevRickLin/feishu-meet-bot/internal/biz/repo"
	"github.com/DevRickLin/feishu-meet-bot/internal/infra/feishu"
)

type directoryAPI interface {
	GetUserEmail(ctx context.Context, openID string) (string, error)
}

// feishuDirectoryRepo implements the directory repository on the Feishu contact API
type feishuDirectoryRepo struct {
	api directoryAPI
}

// NewDirectoryRepo creates a new Feishu directory repository
func NewDirectoryRepo(api directoryAPI) repo.DirectoryRepo {
	return &feishuDirectoryRepo{api: api}
}

// LookupEmail returns the user's email, or repo.ErrUserNotFound
func (r *feishuDirectoryRepo) LookupEmail(ctx context.Context, userID string) (string, error) {
	email, err := r.api.GetUserEmail(ctx, userID)
	if err != nil {
		if apiErr, ok := feishu.AsAPIError(err); ok && apiErr.IsNotFound() {
			return "", repo.ErrUserNotFound
		}
		return "", err
	}
	if email == "" {
		return "", repo.ErrUserNotFound
	}
	return email, nil
}
