package backend

import (
	"context"

	"github.com/pandoo/chatsync/internal/model"
)

// Messages fetches one page of messages for a conversation, ordered
// oldest-to-newest. Pass an empty nextToken for the first page.
func (c *Client) Messages(ctx context.Context, conversationID string, limit int, nextToken string) (*MessagePage, error) {
	variables := map[string]any{
		"conversationId": conversationID,
		"limit":          limit,
	}
	if nextToken != "" {
		variables["nextToken"] = nextToken
	}

	var out struct {
		Messages MessagePage `json:"messages"`
	}
	if err := c.do(ctx, "messages", messagesQuery, variables, &out); err != nil {
		return nil, err
	}
	return &out.Messages, nil
}

// SendMessage dispatches the create-message mutation and returns the
// authoritative message the backend created, msgId included.
func (c *Client) SendMessage(ctx context.Context, input SendMessageInput) (*model.Message, error) {
	variables := map[string]any{
		"conversationId": input.ConversationID,
		"type":           input.Type,
		"body":           input.Body,
	}
	if input.MediaKey != "" {
		variables["mediaKey"] = input.MediaKey
	}

	var out struct {
		SendMessage model.Message `json:"sendMessage"`
	}
	if err := c.do(ctx, "sendMessage", sendMessageMutation, variables, &out); err != nil {
		return nil, err
	}
	return &out.SendMessage, nil
}

// MyConversations lists the caller's conversations.
func (c *Client) MyConversations(ctx context.Context) ([]model.Conversation, error) {
	var out struct {
		MyConversations []model.Conversation `json:"myConversations"`
	}
	if err := c.do(ctx, "myConversations", myConversationsQuery, nil, &out); err != nil {
		return nil, err
	}
	return out.MyConversations, nil
}

// GetProfile looks up a user profile. A missing profile yields a nil
// profile and nil error.
func (c *Client) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	var out struct {
		GetUserProfile *model.UserProfile `json:"getUserProfile"`
	}
	if err := c.do(ctx, "getUserProfile", getUserProfileQuery, map[string]any{"userId": userID}, &out); err != nil {
		return nil, err
	}
	return out.GetUserProfile, nil
}

// CreateProfile creates or overwrites a user profile. The backend
// deliberately enforces no conflict check, so re-creating an existing
// profile updates it; callers rely on that for re-sync.
func (c *Client) CreateProfile(ctx context.Context, input CreateProfileInput) (*model.UserProfile, error) {
	var out struct {
		CreateUserProfile model.UserProfile `json:"createUserProfile"`
	}
	if err := c.do(ctx, "createUserProfile", createUserProfileMutation, map[string]any{"input": input}, &out); err != nil {
		return nil, err
	}
	return &out.CreateUserProfile, nil
}
