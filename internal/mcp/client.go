package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrBusy is returned when the bot's worker queue is full
var ErrBusy = errors.New("bot is busy")

// Client is the HTTP client for the bot's admin API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new admin API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// ChannelPrefix is a channel's registered title prefix
type ChannelPrefix struct {
	ChannelID string `json:"channel_id"`
	Prefix    string `json:"prefix"`
}

// Reply is the bot's answer to a command
type Reply struct {
	Text       string `json:"text"`
	Visibility string `json:"visibility"`
	Status     string `json:"status"`
}

// CommandRequest is a command run on behalf of a user
type CommandRequest struct {
	ChannelID   string `json:"channel_id"`
	RequesterID string `json:"requester_id"`
	Command     string `json:"command"`
	Text        string `json:"text"`
}

// ============ Commands ============

// RunCommand runs a command and returns the bot's reply
// A full worker queue returns the busy reply together with ErrBusy.
func (c *Client) RunCommand(ctx context.Context, req CommandRequest) (*Reply, error) {
	var reply Reply
	status, err := c.do(ctx, http.MethodPost, "/api/commands", req, &reply)
	if status == http.StatusServiceUnavailable && reply.Text != "" {
		return &reply, ErrBusy
	}
	if err != nil {
		return nil, err
	}
	return &reply, nil
}

// ============ Prefix Operations ============

// ListPrefixes lists all registered prefixes
func (c *Client) ListPrefixes(ctx context.Context) ([]ChannelPrefix, error) {
	var result struct {
		Prefixes []ChannelPrefix `json:"prefixes"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/api/prefixes", nil, &result); err != nil {
		return nil, err
	}
	return result.Prefixes, nil
}

// GetPrefix gets a channel's prefix; found is false when none is registered
func (c *Client) GetPrefix(ctx context.Context, channelID string) (string, bool, error) {
	var result ChannelPrefix
	status, err := c.do(ctx, http.MethodGet, "/api/prefixes/"+url.PathEscape(channelID), nil, &result)
	if status == http.StatusNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return result.Prefix, true, nil
}

// DeletePrefix removes a channel's prefix
func (c *Client) DeletePrefix(ctx context.Context, channelID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/prefixes/"+url.PathEscape(channelID), nil, nil)
	return err
}

// ============ HTTP Helpers ============

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HTTP %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	// The busy reply is a JSON body on 503
	if result != nil && len(respBody) > 0 && (resp.StatusCode < 300 || resp.StatusCode == http.StatusServiceUnavailable) {
		if err := json.Unmarshal(respBody, result); err != nil && resp.StatusCode < 300 {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}
	return resp.StatusCode, nil
}
