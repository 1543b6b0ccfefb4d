package repo

import "errors"

// ErrUserNotFound is returned by DirectoryRepo for unknown users
var ErrUserNotFound = errors.New("user not found")
