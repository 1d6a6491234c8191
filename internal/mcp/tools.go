package mcp

import (
	"context"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/shatool-dad/group-bridge/internal/biz/domain"
)

// Tools exposes the bridge API as MCP tools
type Tools struct {
	client *Client
}

// NewServer creates an MCP server with the bridge tools registered
func NewServer(client *Client, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "group-bridge",
		Version: version,
	}, nil)

	t := &Tools{client: client}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "bridge_list_groups",
		Description: "List the registered groups and the chat ids each one follows.",
	}, t.ListGroups)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "bridge_get_messages",
		Description: "Get the retained messages of a group, oldest first. Set drain to also clear them.",
	}, t.GetMessages)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "bridge_get_active_chats",
		Description: "List the chats of the upstream session with their active flag, as of the last refresh.",
	}, t.GetActiveChats)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "bridge_update_chats",
		Description: "Refresh the upstream chat list now. Slow: waits for the session to be ready.",
	}, t.UpdateChats)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "bridge_digest",
		Description: "Summarize a group's retained messages with a digest template: general, todo or calendar.",
	}, t.Digest)

	return server
}

// ListGroupsInput is empty - no input needed
type ListGroupsInput struct{}

// GroupInfo is one registered group
type GroupInfo struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	ChatIDs []string `json:"chat_ids"`
}

// ListGroupsOutput contains the registered groups
type ListGroupsOutput struct {
	Groups []GroupInfo `json:"groups"`
	Error  string      `json:"error,omitempty"`
}

func (t *Tools) ListGroups(ctx context.Context, req *mcp.CallToolRequest, input ListGroupsInput) (*mcp.CallToolResult, ListGroupsOutput, error) {
	groups, err := t.client.ListGroups(ctx)
	if err != nil {
		return nil, ListGroupsOutput{Error: err.Error()}, nil
	}

	out := ListGroupsOutput{Groups: make([]GroupInfo, 0, len(groups))}
	for id, g := range groups {
		out.Groups = append(out.Groups, GroupInfo{ID: id, Name: g.Name, ChatIDs: g.ChatIDs})
	}
	sort.Slice(out.Groups, func(i, j int) bool { return out.Groups[i].ID < out.Groups[j].ID })
	return nil, out, nil
}

// GetMessagesInput selects a group's history
type GetMessagesInput struct {
	GroupID string `json:"group_id" jsonschema:"The registered group id"`
	Limit   int    `json:"limit,omitempty" jsonschema:"Only return the newest N messages (default all)"`
	Drain   bool   `json:"drain,omitempty" jsonschema:"Clear the returned messages from the bridge"`
}

// GetMessagesOutput contains the messages
type GetMessagesOutput struct {
	Messages []*domain.NormalizedMessage `json:"messages"`
	Error    string                      `json:"error,omitempty"`
}

func (t *Tools) GetMessages(ctx context.Context, req *mcp.CallToolRequest, input GetMessagesInput) (*mcp.CallToolResult, GetMessagesOutput, error) {
	if input.GroupID == "" {
		return nil, GetMessagesOutput{Error: "group_id is required"}, nil
	}

	var msgs []*domain.NormalizedMessage
	var err error
	if input.Drain {
		msgs, err = t.client.DrainMessages(ctx, input.GroupID)
	} else {
		msgs, err = t.client.GetMessages(ctx, input.GroupID)
	}
	if err != nil {
		return nil, GetMessagesOutput{Error: err.Error()}, nil
	}

	if input.Limit > 0 && len(msgs) > input.Limit {
		msgs = msgs[len(msgs)-input.Limit:]
	}
	if msgs == nil {
		msgs = []*domain.NormalizedMessage{}
	}
	return nil, GetMessagesOutput{Messages: msgs}, nil
}

// GetActiveChatsInput filters the chat list
type GetActiveChatsInput struct {
	OnlyActive bool `json:"only_active,omitempty" jsonschema:"Only return chats marked active"`
}

// GetActiveChatsOutput contains the chat list
type GetActiveChatsOutput struct {
	Chats      []domain.ChatCacheEntry `json:"chats"`
	CapturedAt string                  `json:"captured_at,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

func (t *Tools) GetActiveChats(ctx context.Context, req *mcp.CallToolRequest, input GetActiveChatsInput) (*mcp.CallToolResult, GetActiveChatsOutput, error) {
	result, err := t.client.GetActiveChats(ctx)
	if err != nil {
		return nil, GetActiveChatsOutput{Error: err.Error()}, nil
	}

	chats := make([]domain.ChatCacheEntry, 0, len(result.Chats))
	for _, c := range result.Chats {
		if input.OnlyActive && !c.Active {
			continue
		}
		chats = append(chats, c)
	}
	return nil, GetActiveChatsOutput{
		Chats:      chats,
		CapturedAt: result.CapturedAt.Format("2006-01-02 15:04:05"),
	}, nil
}

// UpdateChatsInput is empty - no input needed
type UpdateChatsInput struct{}

// UpdateChatsOutput reports the refresh
type UpdateChatsOutput struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Error   string `json:"error,omitempty"`
}

func (t *Tools) UpdateChats(ctx context.Context, req *mcp.CallToolRequest, input UpdateChatsInput) (*mcp.CallToolResult, UpdateChatsOutput, error) {
	result, err := t.client.UpdateChats(ctx)
	if err != nil {
		return nil, UpdateChatsOutput{Success: false, Error: err.Error()}, nil
	}
	return nil, UpdateChatsOutput{Success: result.Success, Count: result.Count}, nil
}

// DigestInput selects the group and template
type DigestInput struct {
	GroupID  string `json:"group_id" jsonschema:"The registered group id"`
	Template string `json:"template,omitempty" jsonschema:"Digest template: general, todo or calendar (default general)"`
}

// DigestOutput contains the digest text
type DigestOutput struct {
	Digest       string `json:"digest"`
	MessageCount int    `json:"message_count"`
	Error        string `json:"error,omitempty"`
}

func (t *Tools) Digest(ctx context.Context, req *mcp.CallToolRequest, input DigestInput) (*mcp.CallToolResult, DigestOutput, error) {
	if input.GroupID == "" {
		return nil, DigestOutput{Error: "group_id is required"}, nil
	}
	result, err := t.client.Digest(ctx, input.GroupID, input.Template)
	if err != nil {
		return nil, DigestOutput{Error: err.Error()}, nil
	}
	return nil, DigestOutput{Digest: result.Digest, MessageCount: result.MessageCount}, nil
}
