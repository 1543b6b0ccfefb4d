package data

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/DevRickLin/feishu-meet-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-meet-bot/internal/biz/repo"
)

const prefixFileExt = ".prefix"

// filePrefixRepo stores one file per channel holding the current prefix
type filePrefixRepo struct {
	dir   string
	locks *channelLocks
}

// NewFilePrefixRepo creates a file-backed prefix repository rooted at dir
// The directory is created on first write.
func NewFilePrefixRepo(dir string) (repo.PrefixRepo, error) {
	if dir == "" {
		return nil, fmt.Errorf("prefix store directory is required")
	}
	return &filePrefixRepo{dir: dir, locks: newChannelLocks()}, nil
}

// Get reads the channel's prefix
func (r *filePrefixRepo) Get(ctx context.Context, channelID string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, &domain.StoreError{Op: "get", ChannelID: channelID, Err: err}
	}
	lock := r.locks.get(channelID)
	lock.RLock()
	defer lock.RUnlock()

	data, err := os.ReadFile(r.path(channelID))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &domain.StoreError{Op: "get", ChannelID: channelID, Err: err}
	}
	prefix := strings.TrimSpace(string(data))
	if prefix == "" {
		return "", false, nil
	}
	return prefix, true, nil
}

// Set writes to a temp file in the same directory and renames it into place
func (r *filePrefixRepo) Set(ctx context.Context, channelID, prefix string) error {
	if err := ctx.Err(); err != nil {
		return &domain.StoreError{Op: "set", ChannelID: channelID, Err: err}
	}
	lock := r.locks.get(channelID)
	lock.Lock()
	defer lock.Unlock()

	if err := r.writeAtomic(channelID, prefix); err != nil {
		return &domain.StoreError{Op: "set", ChannelID: channelID, Err: err}
	}
	return nil
}

func (r *filePrefixRepo) writeAtomic(channelID, prefix string) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	tmp, err := os.CreateTemp(r.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.WriteString(prefix); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, r.path(channelID)); err != nil {
		return fmt.Errorf("publish prefix file: %w", err)
	}
	committed = true

	// Persist the rename itself; not every platform supports syncing a directory
	if d, err := os.Open(r.dir); err == nil {
		_ = d.Sync()
		d.Close()
	}
	return nil
}

// Delete removes the channel's prefix file
func (r *filePrefixRepo) Delete(ctx context.Context, channelID string) error {
	lock := r.locks.get(channelID)
	lock.Lock()
	defer lock.Unlock()

	err := os.Remove(r.path(channelID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &domain.StoreError{Op: "delete", ChannelID: channelID, Err: err}
	}
	return nil
}

// List reads every prefix file in the store directory
func (r *filePrefixRepo) List(ctx context.Context) ([]domain.ChannelPrefix, error) {
	entries, err := os.ReadDir(r.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "list", Err: err}
	}

	var result []domain.ChannelPrefix
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, prefixFileExt) {
			continue
		}
		channelID, err := url.PathUnescape(strings.TrimSuffix(name, prefixFileExt))
		if err != nil {
			continue
		}
		prefix, found, err := r.Get(ctx, channelID)
		if err != nil {
			return nil, err
		}
		if found {
			result = append(result, domain.ChannelPrefix{ChannelID: channelID, Prefix: prefix})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ChannelID < result[j].ChannelID })
	return result, nil
}

// Close is a no-op for the file store
func (r *filePrefixRepo) Close() error {
	return nil
}

// path escapes the channel ID so it can never leave the store directory
func (r *filePrefixRepo) path(channelID string) string {
	return filepath.Join(r.dir, url.PathEscape(channelID)+prefixFileExt)
}
