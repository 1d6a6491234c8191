package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shatool-dad/group-bridge/internal/biz/domain"
)

// Client is the HTTP client for the bridge admin API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new bridge API client
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 3 * time.Minute, // updateChats waits for a full refresh
		},
	}
}

// ActiveChats is a chat cache snapshot
type ActiveChats struct {
	Chats      []domain.ChatCacheEntry `json:"chats"`
	CapturedAt time.Time               `json:"capturedAt"`
}

// UpdateResult is the outcome of a chat refresh
type UpdateResult struct {
	Success    bool      `json:"success"`
	Count      int       `json:"count"`
	CapturedAt time.Time `json:"capturedAt"`
}

// Digest is a model-written digest of a group
type Digest struct {
	GroupID      string `json:"groupId"`
	Template     string `json:"template"`
	MessageCount int    `json:"messageCount"`
	Digest       string `json:"digest"`
}

// ============ Groups ============

// ListGroups returns every registered group
func (c *Client) ListGroups(ctx context.Context) (map[string]domain.Group, error) {
	var result struct {
		Groups map[string]domain.Group `json:"groups"`
	}
	if err := c.post(ctx, "/api/getActive", nil, &result); err != nil {
		return nil, err
	}
	return result.Groups, nil
}

// GetMessages returns the retained messages of a group
func (c *Client) GetMessages(ctx context.Context, groupID string) ([]*domain.NormalizedMessage, error) {
	var result struct {
		Messages []*domain.NormalizedMessage `json:"messages"`
	}
	if err := c.post(ctx, "/api/getMessages/"+url.PathEscape(groupID), nil, &result); err != nil {
		return nil, err
	}
	return result.Messages, nil
}

// DrainMessages returns and clears the retained messages of a group
func (c *Client) DrainMessages(ctx context.Context, groupID string) ([]*domain.NormalizedMessage, error) {
	var result struct {
		Messages []*domain.NormalizedMessage `json:"messages"`
	}
	if err := c.post(ctx, "/api/drainMessages/"+url.PathEscape(groupID), nil, &result); err != nil {
		return nil, err
	}
	return result.Messages, nil
}

// Digest asks the bridge to digest a group with template
func (c *Client) Digest(ctx context.Context, groupID, template string) (*Digest, error) {
	var result Digest
	body := map[string]interface{}{"template": template}
	if err := c.post(ctx, "/api/digest/"+url.PathEscape(groupID), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ============ Chats ============

// GetActiveChats returns the cached upstream chat list
func (c *Client) GetActiveChats(ctx context.Context) (*ActiveChats, error) {
	var result ActiveChats
	if err := c.post(ctx, "/api/getActiveChats", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateChats triggers a chat cache refresh and waits for it
func (c *Client) UpdateChats(ctx context.Context) (*UpdateResult, error) {
	var result UpdateResult
	if err := c.post(ctx, "/api/updateChats", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ============ HTTP Helpers ============

func (c *Client) post(ctx context.Context, path string, body map[string]interface{}, result interface{}) error {
	if body == nil {
		body = map[string]interface{}{}
	}
	body["token"] = c.token

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP POST failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
