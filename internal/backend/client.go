// Package backend is the GraphQL-over-HTTP client for the chat API:
// the paginated message query, the create-message mutation, and the
// conversation-list and profile collaborators.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client talks to the chat backend. All calls go through a single
// POST endpoint carrying {query, variables} and return {data, errors}.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// NewClient creates a backend client for the given endpoint. The token is
// sent as the Authorization header on every request.
func NewClient(endpoint, token string, opts ...Option) *Client {
	c := &Client{
		endpoint:   strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the auth token, e.g. after a refresh.
func (c *Client) SetToken(token string) { c.token = token }

const messagesQuery = `query Messages($conversationId: ID!, $limit: Int, $nextToken: String) {
  messages(conversationId: $conversationId, limit: $limit, nextToken: $nextToken) {
    items { conversationId msgId senderId createdAt body type sk mediaKey readBy }
    nextToken
  }
}`

const sendMessageMutation = `mutation SendMessage($conversationId: ID!, $type: MessageType!, $body: String, $mediaKey: String) {
  sendMessage(conversationId: $conversationId, type: $type, body: $body, mediaKey: $mediaKey) {
    conversationId msgId senderId createdAt body type sk mediaKey readBy
  }
}`

const myConversationsQuery = `query MyConversations {
  myConversations { id title members createdAt updatedAt isGroup }
}`

const getUserProfileQuery = `query GetUserProfile($userId: ID!) {
  getUserProfile(userId: $userId) { id username email name avatar status }
}`

const createUserProfileMutation = `mutation CreateUserProfile($input: CreateUserProfileInput!) {
  createUserProfile(input: $input) { id username email name avatar status createdAt updatedAt }
}`

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors,omitempty"`
}

func (c *Client) do(ctx context.Context, operation, query string, variables map[string]any, out any) error {
	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return &RequestError{Operation: operation, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return &RequestError{Operation: operation, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RequestError{Operation: operation, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return &RequestError{Operation: operation, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return &RequestError{
			Operation: operation,
			Message:   fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var gql graphqlResponse
	if err := json.Unmarshal(body, &gql); err != nil {
		return &RequestError{Operation: operation, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(gql.Errors) > 0 {
		return &RequestError{Operation: operation, Message: gql.Errors[0].Message}
	}
	if out != nil {
		if err := json.Unmarshal(gql.Data, out); err != nil {
			return &RequestError{Operation: operation, Err: fmt.Errorf("decode data: %w", err)}
		}
	}
	return nil
}
