// Package model defines the chat data types shared by the sync engine.
package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// MessageType discriminates plain text from attachment-carrying messages.
type MessageType string

const (
	MessageTypeText MessageType = "text"
	MessageTypeFile MessageType = "file"
)

// Validation errors for inbound message candidates.
var (
	ErrMissingMsgID     = errors.New("message missing msgId")
	ErrMissingCreatedAt = errors.New("message missing createdAt")
)

// Message is one entry in a conversation timeline. Identity is the
// (ConversationID, MsgID) pair; messages are immutable once observed.
type Message struct {
	ConversationID string      `json:"conversationId"`
	MsgID          string      `json:"msgId"`
	SenderID       string      `json:"senderId"`
	CreatedAt      time.Time   `json:"createdAt"`
	Type           MessageType `json:"type"`
	Body           string      `json:"body"`
	// SortKey is the backend's opaque sort key. Carried through untouched.
	SortKey  string   `json:"sk,omitempty"`
	MediaKey string   `json:"mediaKey,omitempty"`
	ReadBy   []string `json:"readBy,omitempty"`
}

// Validate checks the fields the timeline requires to accept a candidate.
func (m *Message) Validate() error {
	if strings.TrimSpace(m.MsgID) == "" {
		return ErrMissingMsgID
	}
	if m.CreatedAt.IsZero() {
		return ErrMissingCreatedAt
	}
	return nil
}

// Conversation is read-only context owned by the conversation-list
// collaborator. The sync engine only uses it to key timelines and channels.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	Members   []string  `json:"members"`
	IsGroup   bool      `json:"isGroup"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// UserProfile mirrors the profile record held by the profile collaborator.
type UserProfile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Avatar    string    `json:"avatar,omitempty"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// FileEnvelope is the metadata serialized into Body when Type is "file".
// Older records store a bare filename instead; see ParseFileEnvelope.
type FileEnvelope struct {
	FileName       string `json:"fileName"`
	FileSize       int64  `json:"fileSize"`
	FileType       string `json:"fileType"`
	MediaKey       string `json:"mediaKey"`
	Duration       int    `json:"duration,omitempty"`
	IsVoiceMessage bool   `json:"isVoiceMessage,omitempty"`
}

// ParseFileEnvelope decodes a file-message body. On parse failure the raw
// body is treated as a bare filename so old records keep rendering.
func ParseFileEnvelope(body string) FileEnvelope {
	var env FileEnvelope
	if err := json.Unmarshal([]byte(body), &env); err == nil && env.FileName != "" {
		return env
	}
	return FileEnvelope{FileName: body}
}
