package repo

import "context"

// DirectoryRepo looks users up in the chat platform's directory
type DirectoryRepo interface {
	// LookupEmail returns the user's email address
	// An unknown user or an account without email returns ErrUserNotFound
	LookupEmail(ctx context.Context, userID string) (string, error)
}
