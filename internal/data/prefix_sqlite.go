package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/DevRickLin/feishu-meet-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-meet-bot/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// sqlitePrefixRepo implements the prefix repository on SQLite
type sqlitePrefixRepo struct {
	db    *sql.DB
	locks *channelLocks
}

// NewSQLitePrefixRepo opens (and migrates) the prefix database at dbPath
func NewSQLitePrefixRepo(dbPath string) (repo.PrefixRepo, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS channel_prefixes (
			channel_id TEXT PRIMARY KEY,
			prefix TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return newSQLitePrefixRepo(db), nil
}

func newSQLitePrefixRepo(db *sql.DB) *sqlitePrefixRepo {
	return &sqlitePrefixRepo{db: db, locks: newChannelLocks()}
}

// Get gets the prefix by channel ID
func (r *sqlitePrefixRepo) Get(ctx context.Context, channelID string) (string, bool, error) {
	lock := r.locks.get(channelID)
	lock.RLock()
	defer lock.RUnlock()

	var prefix string
	err := r.db.QueryRowContext(ctx, `
		SELECT prefix FROM channel_prefixes WHERE channel_id = ?
	`, channelID).Scan(&prefix)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &domain.StoreError{Op: "get", ChannelID: channelID, Err: err}
	}
	return prefix, true, nil
}

// Set upserts the channel's prefix in a single statement
func (r *sqlitePrefixRepo) Set(ctx context.Context, channelID, prefix string) error {
	lock := r.locks.get(channelID)
	lock.Lock()
	defer lock.Unlock()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO channel_prefixes (channel_id, prefix, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(channel_id) DO UPDATE SET prefix = excluded.prefix, updated_at = excluded.updated_at
	`, channelID, prefix, time.Now().Unix())
	if err != nil {
		return &domain.StoreError{Op: "set", ChannelID: channelID, Err: err}
	}
	return nil
}

// Delete deletes the channel's prefix
func (r *sqlitePrefixRepo) Delete(ctx context.Context, channelID string) error {
	lock := r.locks.get(channelID)
	lock.Lock()
	defer lock.Unlock()

	_, err := r.db.ExecContext(ctx, `DELETE FROM channel_prefixes WHERE channel_id = ?`, channelID)
	if err != nil {
		return &domain.StoreError{Op: "delete", ChannelID: channelID, Err: err}
	}
	return nil
}

// List lists all prefixes
func (r *sqlitePrefixRepo) List(ctx context.Context) ([]domain.ChannelPrefix, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT channel_id, prefix FROM channel_prefixes ORDER BY channel_id
	`)
	if err != nil {
		return nil, &domain.StoreError{Op: "list", Err: err}
	}
	defer rows.Close()

	var result []domain.ChannelPrefix
	for rows.Next() {
		var p domain.ChannelPrefix
		if err := rows.Scan(&p.ChannelID, &p.Prefix); err != nil {
			return nil, &domain.StoreError{Op: "list", Err: err}
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: "list", Err: err}
	}
	return result, nil
}

// Close closes the database connection
func (r *sqlitePrefixRepo) Close() error {
	return r.db.Close()
}
