package repo

import (
	"context"

	"github.com/DevRickLin/feishu-meet-bot/internal/biz/domain"
)

// PrefixRepo is the channel prefix store
// Writes are atomic per channel: a reader sees the old or the new value, never a mix
type PrefixRepo interface {
	// Get returns the channel's prefix; found is false when none is registered
	Get(ctx context.Context, channelID string) (prefix string, found bool, err error)

	// Set creates or overwrites the channel's prefix
	Set(ctx context.Context, channelID, prefix string) error

	// Delete removes the channel's prefix, if any
	Delete(ctx context.Context, channelID string) error

	// List returns every stored prefix ordered by channel ID
	List(ctx context.Context) ([]domain.ChannelPrefix, error)

	// Close releases the underlying storage
	Close() error
}
