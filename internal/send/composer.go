// Package send implements the outbound message pipeline: draft state,
// attachment and voice upload, the create mutation, and confirmed
// insertion into the timeline.
package send

import (
	"io"
	"strings"
	"sync"
)

// Attachment is a staged local file awaiting upload.
type Attachment struct {
	Name        string
	Size        int64
	ContentType string

	// Open yields the file contents for upload. Each call returns a
	// fresh reader so a retried send starts from the beginning.
	Open func() (io.ReadCloser, error)
}

// VoiceClip is a finished recording staged for upload.
type VoiceClip struct {
	Size        int64
	ContentType string
	Duration    int

	Open func() (io.ReadCloser, error)
}

// Composer holds the draft for one conversation. Its contents survive a
// failed send untouched; only a successful send clears it.
type Composer struct {
	mu         sync.Mutex
	text       string
	attachment *Attachment
	clip       *VoiceClip
}

// NewComposer returns an empty composer.
func NewComposer() *Composer {
	return &Composer{}
}

// SetText replaces the draft text.
func (c *Composer) SetText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
}

// Text returns the current draft text.
func (c *Composer) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// Attach stages a file, replacing any previously staged attachment or
// voice clip.
func (c *Composer) Attach(a *Attachment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attachment = a
	c.clip = nil
}

// Attachment returns the staged attachment, if any.
func (c *Composer) Attachment() *Attachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attachment
}

// AttachVoice stages a finished recording, replacing any previously
// staged attachment.
func (c *Composer) AttachVoice(clip *VoiceClip) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clip = clip
	c.attachment = nil
}

// VoiceClip returns the staged voice clip, if any.
func (c *Composer) VoiceClip() *VoiceClip {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clip
}

// IsEmpty reports whether there is nothing to send.
func (c *Composer) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.TrimSpace(c.text) == "" && c.attachment == nil && c.clip == nil
}

// Clear drops the draft. The pipeline calls this only after the server
// confirmed the message.
func (c *Composer) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = ""
	c.attachment = nil
	c.clip = nil
}

// snapshot returns the draft parts under one lock acquisition.
func (c *Composer) snapshot() (string, *Attachment, *VoiceClip) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text, c.attachment, c.clip
}
