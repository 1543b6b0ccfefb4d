package usecase

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/DevRickLin/feishu-meet-bot/internal/biz/domain"
)

var (
	// <@ID> or <@ID|display name>; the label may contain spaces
	tokenPattern   = regexp.MustCompile(`<@[^>\s|]+(?:\|[^>]*)?>|\S+`)
	mentionPattern = regexp.MustCompile(`^<@([A-Za-z0-9_\-]+)(?:\|[^>]*)?>$`)
	numberPattern  = regexp.MustCompile(`^[+-]?\d+(?:\.\d+)?$`)
)

// ParseMeetingRequest parses `<title> <minutes> [<@mention>...]`
// The title may be double-quoted; unquoted titles run up to the last numeric
// token that is followed only by mentions.
func ParseMeetingRequest(rawText, channelID, requesterID string) (domain.MeetingRequest, error) {
	req := domain.MeetingRequest{ChannelID: channelID, RequesterID: requesterID}

	text := strings.TrimSpace(rawText)
	if text == "" {
		return req, &domain.ParseError{Kind: domain.MissingTitle}
	}

	var (
		title    string
		duration int
		mentions []string
		err      error
	)
	if strings.HasPrefix(text, `"`) {
		title, duration, mentions, err = parseQuoted(text)
	} else {
		title, duration, mentions, err = parseUnquoted(tokenize(text))
	}
	if err != nil {
		return req, err
	}

	req.Title = title
	req.DurationMinutes = duration
	req.GuestMentions = mentions
	return req, nil
}

func parseQuoted(text string) (string, int, []string, error) {
	end := strings.Index(text[1:], `"`)
	if end < 0 {
		return "", 0, nil, &domain.ParseError{Kind: domain.UnexpectedToken, Token: tokenize(text)[0]}
	}
	title := strings.Join(strings.Fields(text[1:end+1]), " ")
	if title == "" {
		return "", 0, nil, &domain.ParseError{Kind: domain.MissingTitle}
	}

	rest := tokenize(text[end+2:])
	if len(rest) == 0 || isMention(rest[0]) {
		return "", 0, nil, &domain.ParseError{Kind: domain.MissingDuration}
	}
	duration, err := parseDuration(rest[0])
	if err != nil {
		return "", 0, nil, err
	}
	mentions, err := collectMentions(rest[1:])
	if err != nil {
		return "", 0, nil, err
	}
	return title, duration, mentions, nil
}

func parseUnquoted(tokens []string) (string, int, []string, error) {
	// Trailing run of mentions
	m := len(tokens)
	for m > 0 && isMention(tokens[m-1]) {
		m--
	}
	body := tokens[:m]
	if len(body) == 0 {
		return "", 0, nil, &domain.ParseError{Kind: domain.MissingTitle}
	}

	last := body[len(body)-1]
	if !numberPattern.MatchString(last) {
		// A number followed by junk: the junk is the problem, not the duration
		for i := len(body) - 2; i >= 1; i-- {
			if !numberPattern.MatchString(body[i]) {
				continue
			}
			for _, tok := range body[i+1:] {
				if !isMention(tok) {
					return "", 0, nil, &domain.ParseError{Kind: domain.UnexpectedToken, Token: tok}
				}
			}
		}
		return "", 0, nil, &domain.ParseError{Kind: domain.MissingDuration}
	}

	titleTokens := body[:len(body)-1]
	if len(titleTokens) == 0 {
		return "", 0, nil, &domain.ParseError{Kind: domain.MissingTitle}
	}
	for _, tok := range titleTokens {
		if isMention(tok) {
			return "", 0, nil, &domain.ParseError{Kind: domain.UnexpectedToken, Token: tok}
		}
	}

	duration, err := parseDuration(last)
	if err != nil {
		return "", 0, nil, err
	}
	mentions, err := collectMentions(tokens[m:])
	if err != nil {
		return "", 0, nil, err
	}
	return strings.Join(titleTokens, " "), duration, mentions, nil
}

func parseDuration(tok string) (int, error) {
	invalid := &domain.ParseError{Kind: domain.InvalidDuration, Token: tok}
	if !numberPattern.MatchString(tok) {
		return 0, invalid
	}
	n, err := strconv.Atoi(tok)
	if err != nil || n <= 0 || n > domain.MaxDurationMinutes {
		return 0, invalid
	}
	return n, nil
}

func collectMentions(tokens []string) ([]string, error) {
	mentions := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		id, ok := MentionID(tok)
		if !ok {
			return nil, &domain.ParseError{Kind: domain.UnexpectedToken, Token: tok}
		}
		mentions = append(mentions, id)
	}
	return mentions, nil
}

func tokenize(text string) []string {
	return tokenPattern.FindAllString(text, -1)
}

func isMention(tok string) bool {
	return mentionPattern.MatchString(tok)
}

// MentionID extracts the user ID from a mention token
func MentionID(tok string) (string, bool) {
	m := mentionPattern.FindStringSubmatch(tok)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// FormatMention renders a user ID in mention syntax
func FormatMention(userID string) string {
	return "<@" + userID + ">"
}
