package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Messages contains all user-facing wording loaded from YAML
// Templates use {{name}} placeholders, see Render.
type Messages struct {
	Usage    UsageMessages    `yaml:"usage"`
	Parse    ParseMessages    `yaml:"parse"`
	Prefix   PrefixMessages   `yaml:"prefix"`
	Meeting  MeetingMessages  `yaml:"meeting"`
	Calendar CalendarMessages `yaml:"calendar"`
	System   SystemMessages   `yaml:"system"`
}

// UsageMessages describe command syntax
type UsageMessages struct {
	Meeting string `yaml:"meeting"`
	Prefix  string `yaml:"prefix"`
}

// ParseMessages explain meeting request syntax errors
type ParseMessages struct {
	MissingTitle    string `yaml:"missing_title"`
	MissingDuration string `yaml:"missing_duration"`
	InvalidDuration string `yaml:"invalid_duration"` // {{token}} {{max}}
	UnexpectedToken string `yaml:"unexpected_token"` // {{token}}
}

// PrefixMessages are prefix registration replies
type PrefixMessages struct {
	Saved         string `yaml:"saved"` // {{prefix}}
	Empty         string `yaml:"empty"`
	TooLong       string `yaml:"too_long"` // {{max}}
	Multiline     string `yaml:"multiline"`
	NotAuthorized string `yaml:"not_authorized"`
}

// MeetingMessages format a created meeting
type MeetingMessages struct {
	Created           string `yaml:"created"` // {{title}} {{time}} {{owner}} {{guests}} {{join_url}} {{calendar_url}}
	TimeFormat        string `yaml:"time_format"`
	EndTimeFormat     string `yaml:"end_time_format"`
	NoGuests          string `yaml:"no_guests"`
	LinkUnavailable   string `yaml:"link_unavailable"`
	UnresolvedWarning string `yaml:"unresolved_warning"` // {{mentions}}
	RequesterNoEmail  string `yaml:"requester_no_email"`
	RequesterDomain   string `yaml:"requester_domain"` // {{domain}}
}

// CalendarMessages explain calendar failures
type CalendarMessages struct {
	RateLimited  string `yaml:"rate_limited"`
	Unauthorized string `yaml:"unauthorized"`
	Malformed    string `yaml:"malformed"`
	Transient    string `yaml:"transient"`
}

// SystemMessages cover everything else
type SystemMessages struct {
	StoreUnavailable     string `yaml:"store_unavailable"`
	DirectoryUnavailable string `yaml:"directory_unavailable"`
	UnknownCommand       string `yaml:"unknown_command"` // {{command}}
	InvalidInvocation    string `yaml:"invalid_invocation"`
	Busy                 string `yaml:"busy"`
	Internal             string `yaml:"internal"`
}

// LoadMessages loads the message catalogue from a YAML file
func LoadMessages(configPath string) (*Messages, error) {
	// Try multiple paths
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/messages.yaml",
			"/etc/feishu-meet-bot/messages.yaml",
		}
		// Add path relative to executable
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "messages.yaml"))
		}
	}

	var data []byte
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err == nil {
			data = b
			break
		}
		if configPath != "" {
			return nil, fmt.Errorf("failed to read messages config: %w", err)
		}
	}

	if data == nil {
		return DefaultMessages(), nil
	}

	var messages Messages
	if err := yaml.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to parse messages config: %w", err)
	}

	// Fill in defaults for empty values
	messages.fillDefaults()

	return &messages, nil
}

// fillDefaults fills in default values for empty fields
func (m *Messages) fillDefaults() {
	d := DefaultMessages()

	fill := func(dst *string, def string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = def
		}
	}

	fill(&m.Usage.Meeting, d.Usage.Meeting)
	fill(&m.Usage.Prefix, d.Usage.Prefix)

	fill(&m.Parse.MissingTitle, d.Parse.MissingTitle)
	fill(&m.Parse.MissingDuration, d.Parse.MissingDuration)
	fill(&m.Parse.InvalidDuration, d.Parse.InvalidDuration)
	fill(&m.Parse.UnexpectedToken, d.Parse.UnexpectedToken)

	fill(&m.Prefix.Saved, d.Prefix.Saved)
	fill(&m.Prefix.Empty, d.Prefix.Empty)
	fill(&m.Prefix.TooLong, d.Prefix.TooLong)
	fill(&m.Prefix.Multiline, d.Prefix.Multiline)
	fill(&m.Prefix.NotAuthorized, d.Prefix.NotAuthorized)

	fill(&m.Meeting.Created, d.Meeting.Created)
	fill(&m.Meeting.TimeFormat, d.Meeting.TimeFormat)
	fill(&m.Meeting.EndTimeFormat, d.Meeting.EndTimeFormat)
	fill(&m.Meeting.NoGuests, d.Meeting.NoGuests)
	fill(&m.Meeting.LinkUnavailable, d.Meeting.LinkUnavailable)
	fill(&m.Meeting.UnresolvedWarning, d.Meeting.UnresolvedWarning)
	fill(&m.Meeting.RequesterNoEmail, d.Meeting.RequesterNoEmail)
	fill(&m.Meeting.RequesterDomain, d.Meeting.RequesterDomain)

	fill(&m.Calendar.RateLimited, d.Calendar.RateLimited)
	fill(&m.Calendar.Unauthorized, d.Calendar.Unauthorized)
	fill(&m.Calendar.Malformed, d.Calendar.Malformed)
	fill(&m.Calendar.Transient, d.Calendar.Transient)

	fill(&m.System.StoreUnavailable, d.System.StoreUnavailable)
	fill(&m.System.DirectoryUnavailable, d.System.DirectoryUnavailable)
	fill(&m.System.UnknownCommand, d.System.UnknownCommand)
	fill(&m.System.InvalidInvocation, d.System.InvalidInvocation)
	fill(&m.System.Busy, d.System.Busy)
	fill(&m.System.Internal, d.System.Internal)
}

// Render replaces {{name}} placeholders with values
func Render(tmpl string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.TrimSpace(strings.NewReplacer(pairs...).Replace(tmpl))
}

// DefaultMessages returns the built-in message catalogue
func DefaultMessages() *Messages {
	return &Messages{
		Usage: UsageMessages{
			Meeting: "Usage:\n" +
				"  /mtg \"Title with spaces\" <minutes> [@guest ...]\n" +
				"  /mtg Title <minutes> [@guest ...]",
			Prefix: "Usage: /reg-mtg-prefix <prefix>",
		},
		Parse: ParseMessages{
			MissingTitle:    "Please give the meeting a title.",
			MissingDuration: "Please give the meeting length in minutes.",
			InvalidDuration: "`{{token}}` is not a valid length. Use whole minutes between 1 and {{max}}.",
			UnexpectedToken: "Unexpected `{{token}}`. Only guest mentions may follow the length.",
		},
		Prefix: PrefixMessages{
			Saved:         "Meeting title prefix for this chat is now `{{prefix}}`.",
			Empty:         "The prefix must not be empty.",
			TooLong:       "The prefix must be at most {{max}} characters.",
			Multiline:     "The prefix must fit on one line.",
			NotAuthorized: "Only the chat owner or a bot admin can change the meeting prefix.",
		},
		Meeting: MeetingMessages{
			Created: "✅ Meeting created\n" +
				"{{title}}\n" +
				"Time: {{time}}\n" +
				"Owner: {{owner}}\n" +
				"Guests: {{guests}}\n" +
				"Join: {{join_url}}\n" +
				"Calendar: {{calendar_url}}",
			TimeFormat:        "2006-01-02 15:04",
			EndTimeFormat:     "15:04",
			NoGuests:          "none",
			LinkUnavailable:   "unavailable",
			UnresolvedWarning: "⚠️ Could not invite: {{mentions}}",
			RequesterNoEmail:  "Could not find an email address for your account.",
			RequesterDomain:   "This command is only available to {{domain}} users.",
		},
		Calendar: CalendarMessages{
			RateLimited:  "The calendar service is busy right now. Please try again in a minute.",
			Unauthorized: "The bot is not allowed to create calendar events. Please contact an admin.",
			Malformed:    "The calendar service rejected the meeting request.",
			Transient:    "The calendar service is unavailable. Please try again later.",
		},
		System: SystemMessages{
			StoreUnavailable:     "Chat settings are unavailable right now. Please try again later.",
			DirectoryUnavailable: "User information is unavailable right now. Please try again later.",
			UnknownCommand:       "Unknown command `{{command}}`.",
			InvalidInvocation:    "This command could not be processed.",
			Busy:                 "Too many requests in progress. Please try again shortly.",
			Internal:             "Something went wrong. Please try again.",
		},
	}
}
