package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyPrefix          = errors.New("prefix is empty")
	ErrPrefixTooLong        = errors.New("prefix is too long")
	ErrPrefixMultiline      = errors.New("prefix spans multiple lines")
	ErrNotAuthorized        = errors.New("not authorized")
	ErrRequesterUnresolved  = errors.New("requester email not found")
	ErrRequesterNotAllowed  = errors.New("requester outside workspace domain")
	ErrUnknownCommand       = errors.New("unknown command")
	ErrInvalidInvocation    = errors.New("invalid invocation")
	ErrDirectoryUnavailable = errors.New("directory lookup failed")
)

// ParseErrorKind classifies a command text mistake
type ParseErrorKind string

const (
	MissingTitle    ParseErrorKind = "missing_title"
	MissingDuration ParseErrorKind = "missing_duration"
	InvalidDuration ParseErrorKind = "invalid_duration"
	UnexpectedToken ParseErrorKind = "unexpected_token"
)

// ParseError is returned for malformed meeting command text
type ParseError struct {
	Kind  ParseErrorKind
	Token string // Offending token, if any
}

func (e *ParseError) Error() string {
	if e.Token == "" {
		return "parse: " + string(e.Kind)
	}
	return fmt.Sprintf("parse: %s %q", e.Kind, e.Token)
}

// StoreError wraps a prefix storage failure
type StoreError struct {
	Op        string
	ChannelID string
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("prefix store %s %s: %v", e.Op, e.ChannelID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// CalendarErrorKind classifies a calendar collaborator failure
type CalendarErrorKind string

const (
	CalendarRateLimited  CalendarErrorKind = "rate_limited"
	CalendarUnauthorized CalendarErrorKind = "unauthorized"
	CalendarMalformed    CalendarErrorKind = "malformed"
	CalendarTransient    CalendarErrorKind = "transient"
)

// CalendarAPIError is a typed failure from the calendar collaborator
type CalendarAPIError struct {
	Kind     CalendarErrorKind
	Attempts int
	Err      error
}

func (e *CalendarAPIError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("calendar %s after %d attempts: %v", e.Kind, e.Attempts, e.Err)
	}
	return fmt.Sprintf("calendar %s: %v", e.Kind, e.Err)
}

func (e *CalendarAPIError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt may succeed
func (e *CalendarAPIError) Retryable() bool {
	return e.Kind == CalendarRateLimited || e.Kind == CalendarTransient
}
