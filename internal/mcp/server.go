package mcp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/samber/lo"
)

// adminAPI is the part of the bot's admin API the tools use
type adminAPI interface {
	RunCommand(ctx context.Context, req CommandRequest) (*Reply, error)
	ListPrefixes(ctx context.Context) ([]ChannelPrefix, error)
	GetPrefix(ctx context.Context, channelID string) (string, bool, error)
	DeletePrefix(ctx context.Context, channelID string) error
}

// Options configures the MCP server
type Options struct {
	MeetingCommand string
	PrefixCommand  string
	RequesterID    string // Default requester when a call does not name one
	ChannelID      string // Default channel when a call does not name one
}

// MeetingMCPServer exposes meeting commands as MCP tools
type MeetingMCPServer struct {
	server *mcp.Server
	runner adminAPI
	opts   Options
}

// NewServer creates a new MCP server backed by the bot's admin API
func NewServer(runner adminAPI, opts Options) *MeetingMCPServer {
	if opts.MeetingCommand == "" {
		opts.MeetingCommand = "/mtg"
	}
	if opts.PrefixCommand == "" {
		opts.PrefixCommand = "/reg-mtg-prefix"
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "meeting-tools",
		Version: "v1.0.0",
	}, nil)

	s := &MeetingMCPServer{
		server: server,
		runner: runner,
		opts:   opts,
	}
	s.registerTools()
	return s
}

// registerTools registers all meeting tools
func (s *MeetingMCPServer) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "create_meeting",
		Description: "Create a calendar event with a video meeting that starts now and lasts the given number of minutes. The channel's title prefix is applied and guests are invited by user ID.",
	}, s.handleCreateMeeting)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "register_prefix",
		Description: "Set the title prefix applied to meetings created from a channel.",
	}, s.handleRegisterPrefix)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_prefixes",
		Description: "List the title prefixes registered for all channels.",
	}, s.handleListPrefixes)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_prefix",
		Description: "Show the title prefix registered for a channel.",
	}, s.handleGetPrefix)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_prefix",
		Description: "Remove a channel's title prefix so its meetings use the bare title.",
	}, s.handleDeletePrefix)
}

// CreateMeetingInput is the input for create_meeting
type CreateMeetingInput struct {
	Title           string   `json:"title" jsonschema:"the meeting title"`
	DurationMinutes int      `json:"duration_minutes" jsonschema:"meeting length in minutes"`
	Guests          []string `json:"guests,omitempty" jsonschema:"user IDs (open_id) to invite"`
	ChannelID       string   `json:"channel_id,omitempty" jsonschema:"chat whose prefix applies, defaults to the configured chat"`
	RequesterID     string   `json:"requester_id,omitempty" jsonschema:"user who owns the meeting, defaults to the configured user"`
}

// CommandOutput is the bot's reply to a tool call
type CommandOutput struct {
	Success bool   `json:"success"`
	Reply   string `json:"reply"`
	Error   string `json:"error,omitempty"`
}

func (s *MeetingMCPServer) handleCreateMeeting(ctx context.Context, req *mcp.CallToolRequest, input CreateMeetingInput) (*mcp.CallToolResult, CommandOutput, error) {
	title := strings.Join(strings.Fields(strings.ReplaceAll(input.Title, `"`, "'")), " ")
	if title == "" {
		return nil, CommandOutput{Error: "title is required"}, nil
	}

	parts := []string{`"` + title + `"`, strconv.Itoa(input.DurationMinutes)}
	for _, guest := range input.Guests {
		if guest = strings.TrimSpace(guest); guest != "" {
			parts = append(parts, "<@"+guest+">")
		}
	}
	return s.run(ctx, input.ChannelID, input.RequesterID, s.opts.MeetingCommand, strings.Join(parts, " "))
}

// RegisterPrefixInput is the input for register_prefix
type RegisterPrefixInput struct {
	Prefix      string `json:"prefix" jsonschema:"the title prefix"`
	ChannelID   string `json:"channel_id,omitempty" jsonschema:"chat to configure, defaults to the configured chat"`
	RequesterID string `json:"requester_id,omitempty" jsonschema:"user making the change, defaults to the configured user"`
}

func (s *MeetingMCPServer) handleRegisterPrefix(ctx context.Context, req *mcp.CallToolRequest, input RegisterPrefixInput) (*mcp.CallToolResult, CommandOutput, error) {
	return s.run(ctx, input.ChannelID, input.RequesterID, s.opts.PrefixCommand, input.Prefix)
}

// ListPrefixesInput is empty - no input needed
type ListPrefixesInput struct{}

// ListPrefixesOutput contains all registered prefixes
type ListPrefixesOutput struct {
	Prefixes []ChannelPrefix `json:"prefixes"`
	Error    string          `json:"error,omitempty"`
}

func (s *MeetingMCPServer) handleListPrefixes(ctx context.Context, req *mcp.CallToolRequest, input ListPrefixesInput) (*mcp.CallToolResult, ListPrefixesOutput, error) {
	prefixes, err := s.runner.ListPrefixes(ctx)
	if err != nil {
		return nil, ListPrefixesOutput{Error: err.Error()}, nil
	}
	if prefixes == nil {
		prefixes = []ChannelPrefix{}
	}
	return nil, ListPrefixesOutput{Prefixes: prefixes}, nil
}

// PrefixInput names a channel
type PrefixInput struct {
	ChannelID string `json:"channel_id,omitempty" jsonschema:"chat to look at, defaults to the configured chat"`
}

// PrefixOutput is a channel's prefix
type PrefixOutput struct {
	ChannelID string `json:"channel_id"`
	Prefix    string `json:"prefix"`
	Found     bool   `json:"found"`
	Error     string `json:"error,omitempty"`
}

func (s *MeetingMCPServer) handleGetPrefix(ctx context.Context, req *mcp.CallToolRequest, input PrefixInput) (*mcp.CallToolResult, PrefixOutput, error) {
	channelID := lo.CoalesceOrEmpty(input.ChannelID, s.opts.ChannelID)
	if channelID == "" {
		return nil, PrefixOutput{Error: "channel_id is required"}, nil
	}
	prefix, found, err := s.runner.GetPrefix(ctx, channelID)
	if err != nil {
		return nil, PrefixOutput{ChannelID: channelID, Error: err.Error()}, nil
	}
	return nil, PrefixOutput{ChannelID: channelID, Prefix: prefix, Found: found}, nil
}

func (s *MeetingMCPServer) handleDeletePrefix(ctx context.Context, req *mcp.CallToolRequest, input PrefixInput) (*mcp.CallToolResult, PrefixOutput, error) {
	channelID := lo.CoalesceOrEmpty(input.ChannelID, s.opts.ChannelID)
	if channelID == "" {
		return nil, PrefixOutput{Error: "channel_id is required"}, nil
	}
	if err := s.runner.DeletePrefix(ctx, channelID); err != nil {
		return nil, PrefixOutput{ChannelID: channelID, Error: err.Error()}, nil
	}
	return nil, PrefixOutput{ChannelID: channelID}, nil
}

func (s *MeetingMCPServer) run(ctx context.Context, channelID, requesterID, command, text string) (*mcp.CallToolResult, CommandOutput, error) {
	channelID = lo.CoalesceOrEmpty(channelID, s.opts.ChannelID)
	requesterID = lo.CoalesceOrEmpty(requesterID, s.opts.RequesterID)
	if channelID == "" || requesterID == "" {
		return nil, CommandOutput{Error: "channel_id and requester_id are required"}, nil
	}

	reply, err := s.runner.RunCommand(ctx, CommandRequest{
		ChannelID:   channelID,
		RequesterID: requesterID,
		Command:     command,
		Text:        text,
	})
	if errors.Is(err, ErrBusy) {
		return nil, CommandOutput{Reply: reply.Text, Error: err.Error()}, nil
	}
	if err != nil {
		return nil, CommandOutput{Error: fmt.Sprintf("command failed: %v", err)}, nil
	}
	return nil, CommandOutput{Success: reply.Status == "succeeded", Reply: reply.Text}, nil
}

// Run starts the MCP server on stdio
func (s *MeetingMCPServer) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
