package backend

import (
	"fmt"

	"github.com/pandoo/chatsync/internal/model"
)

// MessagePage is one page of a paginated message query, ordered
// oldest-to-newest within the page.
type MessagePage struct {
	Items     []model.Message `json:"items"`
	NextToken string          `json:"nextToken,omitempty"`
}

// SendMessageInput is the create-message mutation payload.
type SendMessageInput struct {
	ConversationID string            `json:"conversationId"`
	Type           model.MessageType `json:"type"`
	Body           string            `json:"body"`
	MediaKey       string            `json:"mediaKey,omitempty"`
}

// CreateProfileInput is the profile-create payload. Creation has
// overwrite-allowed semantics on the backend: repeated calls with the
// same ID update the record instead of rejecting.
type CreateProfileInput struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Status   string `json:"status,omitempty"`
}

// RequestError is a typed failure from a backend request: a transport
// problem, a non-2xx response, or a GraphQL-level error.
type RequestError struct {
	Operation string
	Message   string
	Err       error
}

func (e *RequestError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Operation, e.Message)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }
