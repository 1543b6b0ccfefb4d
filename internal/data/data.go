package data

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/DevRickLin/feishu-meet-bot/internal/biz/repo"
	"github.com/DevRickLin/feishu-meet-bot/internal/infra/feishu"
)

// Prefix store drivers
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Options selects and configures the repositories
type Options struct {
	PrefixDriver string // file or sqlite
	PrefixDir    string // Directory of per-channel files for the file driver
	PrefixDBPath string // Database path for the sqlite driver
	Admins       []string
	RequireOwner bool
}

// Repositories contains all repositories
type Repositories struct {
	Prefix    repo.PrefixRepo
	Directory repo.DirectoryRepo
	Calendar  repo.CalendarRepo
	Access    repo.AccessRepo
	Reply     repo.ReplyRepo
}

// NewRepositories creates all repositories
func NewRepositories(feishuClient *feishu.Client, opts Options, log *slog.Logger) (*Repositories, error) {
	prefixRepo, err := NewPrefixRepo(opts)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		Prefix:    prefixRepo,
		Directory: NewDirectoryRepo(feishuClient),
		Calendar:  NewCalendarRepo(feishuClient, log),
		Access:    NewAccessRepo(feishuClient, opts.Admins, opts.RequireOwner),
		Reply:     NewReplyRepo(feishuClient),
	}, nil
}

// NewPrefixRepo opens the prefix store for the configured driver
func NewPrefixRepo(opts Options) (repo.PrefixRepo, error) {
	switch opts.PrefixDriver {
	case "", DriverFile:
		return NewFilePrefixRepo(opts.PrefixDir)
	case DriverSQLite:
		path := opts.PrefixDBPath
		if path == "" {
			path = filepath.Join(opts.PrefixDir, "prefixes.db")
		}
		return NewSQLitePrefixRepo(path)
	default:
		return nil, fmt.Errorf("unknown prefix store driver %q", opts.PrefixDriver)
	}
}

// Close releases resources held by the repositories
func (r *Repositories) Close() error {
	return r.Prefix.Close()
}
