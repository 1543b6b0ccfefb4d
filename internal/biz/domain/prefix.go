package domain

import (
	"strings"
	"unicode/utf8"
)

// MaxPrefixLength is the longest prefix a channel may register, in runes
const MaxPrefixLength = 64

// ChannelPrefix is the per-channel title prefix record
type ChannelPrefix struct {
	ChannelID string `json:"channel_id"`
	Prefix    string `json:"prefix"`
}

// NormalizePrefix trims the raw command text and checks it can be stored
// One pair of surrounding double quotes is removed.
func NormalizePrefix(raw string) (string, error) {
	prefix := strings.TrimSpace(raw)
	if len(prefix) >= 2 && strings.HasPrefix(prefix, `"`) && strings.HasSuffix(prefix, `"`) {
		prefix = strings.TrimSpace(prefix[1 : len(prefix)-1])
	}
	if prefix == "" {
		return "", ErrEmptyPrefix
	}
	if utf8.RuneCountInString(prefix) > MaxPrefixLength {
		return "", ErrPrefixTooLong
	}
	if strings.ContainsAny(prefix, "\r\n") {
		return "", ErrPrefixMultiline
	}
	return prefix, nil
}
