package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/DevRickLin/feishu-meet-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-meet-bot/internal/biz/repo"
)

// GuestConfig holds guest lookup settings
type GuestConfig struct {
	LookupTimeout   time.Duration // Per lookup, no retries
	MaxParallel     int
	WorkspaceDomain string // Empty disables the domain check
}

// DefaultGuestConfig returns the default lookup settings
func DefaultGuestConfig() GuestConfig {
	return GuestConfig{
		LookupTimeout: 3 * time.Second,
		MaxParallel:   4,
	}
}

// GuestResolver maps mention IDs to attendee emails
type GuestResolver struct {
	directory repo.DirectoryRepo
	config    GuestConfig
	log       *slog.Logger
}

// NewGuestResolver creates a new guest resolver
func NewGuestResolver(directory repo.DirectoryRepo, config GuestConfig, log *slog.Logger) *GuestResolver {
	if config.MaxParallel <= 0 {
		config.MaxParallel = 1
	}
	return &GuestResolver{
		directory: directory,
		config:    config,
		log:       log.With("component", "guest_resolver"),
	}
}

// Resolve returns one result per mention, in input order
// Lookup failures only mark the affected mention unresolved.
func (r *GuestResolver) Resolve(ctx context.Context, mentionIDs []string) []domain.GuestResolution {
	unique := lo.Uniq(mentionIDs)
	found := make([]domain.GuestResolution, len(unique))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.MaxParallel)
	for i, id := range unique {
		g.Go(func() error {
			found[i] = r.lookup(gctx, id)
			return nil
		})
	}
	_ = g.Wait()

	byID := lo.SliceToMap(found, func(res domain.GuestResolution) (string, domain.GuestResolution) {
		return res.MentionID, res
	})
	return lo.Map(mentionIDs, func(id string, _ int) domain.GuestResolution {
		return byID[id]
	})
}

// ResolveOne resolves a single user, failing instead of degrading
func (r *GuestResolver) ResolveOne(ctx context.Context, userID string) (domain.GuestResolution, error) {
	res := r.lookup(ctx, userID)
	if !res.Resolved() {
		switch res.Reason {
		case reasonOutsideWorkspace:
			return res, domain.ErrRequesterNotAllowed
		case reasonNotFound:
			return res, domain.ErrRequesterUnresolved
		default:
			return res, domain.ErrDirectoryUnavailable
		}
	}
	return res, nil
}

const (
	reasonNotFound         = "not found"
	reasonOutsideWorkspace = "outside workspace"
)

func (r *GuestResolver) lookup(ctx context.Context, userID string) domain.GuestResolution {
	ctx, cancel := context.WithTimeout(ctx, r.config.LookupTimeout)
	defer cancel()

	email, err := r.directory.LookupEmail(ctx, userID)
	if err != nil {
		reason := "lookup failed"
		switch {
		case errors.Is(err, repo.ErrUserNotFound):
			reason = reasonNotFound
		case errors.Is(err, context.DeadlineExceeded):
			reason = "timeout"
		}
		r.log.Warn("guest lookup failed", "user_id", userID, "reason", reason, "error", err)
		return domain.Unresolved(userID, reason)
	}
	if !r.inWorkspace(email) {
		r.log.Info("guest outside workspace domain", "user_id", userID, "domain", r.config.WorkspaceDomain)
		return domain.Unresolved(userID, reasonOutsideWorkspace)
	}
	return domain.GuestResolution{MentionID: userID, Email: email}
}

func (r *GuestResolver) inWorkspace(email string) bool {
	if r.config.WorkspaceDomain == "" {
		return true
	}
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	return strings.EqualFold(email[at+1:], r.config.WorkspaceDomain)
}
