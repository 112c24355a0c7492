package send

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pandoo/chatsync/internal/backend"
	"github.com/pandoo/chatsync/internal/logging"
	"github.com/pandoo/chatsync/internal/model"
	"github.com/pandoo/chatsync/internal/storage"
)

// Pipeline errors.
var (
	ErrEmptyDraft = errors.New("nothing to send")
)

// Sender issues the create-message mutation. *backend.Client satisfies
// it.
type Sender interface {
	SendMessage(ctx context.Context, input backend.SendMessageInput) (*model.Message, error)
}

// Reconciler accepts server-confirmed messages. *timeline.Store
// satisfies it.
type Reconciler interface {
	Reconcile(msgs []model.Message) int
}

// Pipeline turns a composer draft into a server-confirmed message: it
// uploads any staged media, issues the mutation, and feeds the response
// straight into the timeline so the sender sees their message without
// waiting for an echo.
type Pipeline struct {
	sender   Sender
	uploader storage.Uploader
	userID   string
	logger   zerolog.Logger
}

// NewPipeline builds a pipeline. The uploader may be nil when media
// sends are not configured; text sends still work.
func NewPipeline(sender Sender, uploader storage.Uploader, userID string) *Pipeline {
	return &Pipeline{
		sender:   sender,
		uploader: uploader,
		userID:   userID,
		logger:   logging.Component("send-pipeline"),
	}
}

// Send submits the composer draft to the given conversation. On success
// the confirmed message is reconciled into store and the composer is
// cleared. On any failure the draft is left exactly as it was, so the
// user can retry without retyping.
func (p *Pipeline) Send(ctx context.Context, conversationID string, composer *Composer, store Reconciler, progress storage.ProgressFunc) (*model.Message, error) {
	text, attachment, clip := composer.snapshot()

	input := backend.SendMessageInput{ConversationID: conversationID}

	switch {
	case attachment != nil:
		body, mediaKey, err := p.uploadAttachment(ctx, attachment, progress)
		if err != nil {
			return nil, err
		}
		input.Type = model.MessageTypeFile
		input.Body = body
		input.MediaKey = mediaKey

	case clip != nil:
		body, mediaKey, err := p.uploadVoice(ctx, clip, progress)
		if err != nil {
			return nil, err
		}
		input.Type = model.MessageTypeFile
		input.Body = body
		input.MediaKey = mediaKey

	case strings.TrimSpace(text) != "":
		input.Type = model.MessageTypeText
		input.Body = text

	default:
		return nil, ErrEmptyDraft
	}

	msg, err := p.sender.SendMessage(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	store.Reconcile([]model.Message{*msg})
	composer.Clear()

	p.logger.Debug().
		Str("conversation_id", conversationID).
		Str("msg_id", msg.MsgID).
		Str("type", string(msg.Type)).
		Msg("message confirmed")
	return msg, nil
}

func (p *Pipeline) uploadAttachment(ctx context.Context, a *Attachment, progress storage.ProgressFunc) (string, string, error) {
	if p.uploader == nil {
		return "", "", errors.New("media storage not configured")
	}

	r, err := a.Open()
	if err != nil {
		return "", "", fmt.Errorf("open attachment: %w", err)
	}
	defer r.Close()

	key := storage.GenerateFileKey(p.userID, a.Name)
	if _, err := p.uploader.Upload(ctx, key, a.ContentType, r, a.Size, progress); err != nil {
		return "", "", fmt.Errorf("upload attachment: %w", err)
	}

	env := model.FileEnvelope{
		FileName: a.Name,
		FileSize: a.Size,
		FileType: a.ContentType,
		MediaKey: key,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return "", "", fmt.Errorf("encode file body: %w", err)
	}
	return string(body), key, nil
}

func (p *Pipeline) uploadVoice(ctx context.Context, clip *VoiceClip, progress storage.ProgressFunc) (string, string, error) {
	if p.uploader == nil {
		return "", "", errors.New("media storage not configured")
	}

	r, err := clip.Open()
	if err != nil {
		return "", "", fmt.Errorf("open recording: %w", err)
	}
	defer r.Close()

	name := voiceFileName(clip)
	key := storage.GenerateFileKey(p.userID, name)
	if _, err := p.uploader.Upload(ctx, key, clip.ContentType, r, clip.Size, progress); err != nil {
		return "", "", fmt.Errorf("upload recording: %w", err)
	}

	env := model.FileEnvelope{
		FileName:       name,
		FileSize:       clip.Size,
		FileType:       clip.ContentType,
		MediaKey:       key,
		Duration:       clip.Duration,
		IsVoiceMessage: true,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return "", "", fmt.Errorf("encode voice body: %w", err)
	}
	return string(body), key, nil
}

func voiceFileName(clip *VoiceClip) string {
	ext := ".webm"
	switch clip.ContentType {
	case "audio/ogg":
		ext = ".ogg"
	case "audio/mp4", "audio/m4a":
		ext = ".m4a"
	case "audio/mpeg":
		ext = ".mp3"
	}
	return "voice-message" + ext
}
