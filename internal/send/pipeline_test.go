package send

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pandoo/chatsync/internal/backend"
	"github.com/pandoo/chatsync/internal/model"
	"github.com/pandoo/chatsync/internal/storage"
	"github.com/pandoo/chatsync/internal/timeline"
)

type fakeSender struct {
	lastInput backend.SendMessageInput
	err       error
}

func (f *fakeSender) SendMessage(ctx context.Context, input backend.SendMessageInput) (*model.Message, error) {
	f.lastInput = input
	if f.err != nil {
		return nil, f.err
	}
	return &model.Message{
		ConversationID: input.ConversationID,
		MsgID:          "m-confirmed",
		SenderID:       "u-1",
		CreatedAt:      time.Now(),
		Type:           input.Type,
		Body:           input.Body,
		MediaKey:       input.MediaKey,
	}, nil
}

type fakeUploader struct {
	uploadedKey  string
	uploadedType string
	uploadedSize int64
	body         []byte
	err          error
}

func (f *fakeUploader) Upload(ctx context.Context, key, contentType string, r io.Reader, size int64, progress storage.ProgressFunc) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.uploadedKey = key
	f.uploadedType = contentType
	f.uploadedSize = size
	f.body = data
	if progress != nil {
		progress(1)
	}
	return key, nil
}

func (f *fakeUploader) DownloadURL(ctx context.Context, key string) (string, error) {
	return "https://media.test/" + key, nil
}

func staticAttachment(name, contentType string, data []byte) *Attachment {
	return &Attachment{
		Name:        name,
		Size:        int64(len(data)),
		ContentType: contentType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func TestSendTextClearsComposer(t *testing.T) {
	sender := &fakeSender{}
	store := timeline.NewStore()
	p := NewPipeline(sender, nil, "u-1")

	composer := NewComposer()
	composer.SetText("hello there")

	msg, err := p.Send(context.Background(), "c-1", composer, store, nil)
	require.NoError(t, err)

	assert.Equal(t, model.MessageTypeText, sender.lastInput.Type)
	assert.Equal(t, "hello there", sender.lastInput.Body)
	assert.True(t, store.Contains(msg.MsgID), "confirmed message lands in the timeline immediately")
	assert.True(t, composer.IsEmpty(), "success clears the draft")
}

func TestSendFailurePreservesComposer(t *testing.T) {
	sender := &fakeSender{err: errors.New("mutation rejected")}
	store := timeline.NewStore()
	p := NewPipeline(sender, nil, "u-1")

	composer := NewComposer()
	composer.SetText("do not lose me")

	_, err := p.Send(context.Background(), "c-1", composer, store, nil)
	require.Error(t, err)

	assert.Equal(t, "do not lose me", composer.Text(), "failed send leaves the draft untouched")
	assert.Equal(t, 0, store.Len())
}

func TestSendEmptyDraft(t *testing.T) {
	p := NewPipeline(&fakeSender{}, nil, "u-1")
	composer := NewComposer()
	composer.SetText("   ")

	_, err := p.Send(context.Background(), "c-1", composer, timeline.NewStore(), nil)
	assert.ErrorIs(t, err, ErrEmptyDraft)
}

func TestSendAttachmentBuildsEnvelope(t *testing.T) {
	sender := &fakeSender{}
	uploader := &fakeUploader{}
	store := timeline.NewStore()
	p := NewPipeline(sender, uploader, "u-1")

	composer := NewComposer()
	composer.Attach(staticAttachment("report.pdf", "application/pdf", []byte("pdf-bytes")))

	var lastProgress float64
	_, err := p.Send(context.Background(), "c-1", composer, store, func(f float64) { lastProgress = f })
	require.NoError(t, err)

	assert.Equal(t, []byte("pdf-bytes"), uploader.body)
	assert.Equal(t, "application/pdf", uploader.uploadedType)
	assert.Equal(t, 1.0, lastProgress)

	require.Equal(t, model.MessageTypeFile, sender.lastInput.Type)
	var env model.FileEnvelope
	require.NoError(t, json.Unmarshal([]byte(sender.lastInput.Body), &env))
	assert.Equal(t, "report.pdf", env.FileName)
	assert.Equal(t, int64(len("pdf-bytes")), env.FileSize)
	assert.Equal(t, "application/pdf", env.FileType)
	assert.Equal(t, uploader.uploadedKey, env.MediaKey)
	assert.False(t, env.IsVoiceMessage)
	assert.Equal(t, env.MediaKey, sender.lastInput.MediaKey)
	assert.True(t, composer.IsEmpty())
}

func TestSendVoiceBuildsVoiceEnvelope(t *testing.T) {
	sender := &fakeSender{}
	uploader := &fakeUploader{}
	p := NewPipeline(sender, uploader, "u-1")

	composer := NewComposer()
	composer.AttachVoice(&VoiceClip{
		Size:        9,
		ContentType: "audio/webm",
		Duration:    17,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader([]byte("audio-bin"))), nil
		},
	})

	_, err := p.Send(context.Background(), "c-1", composer, timeline.NewStore(), nil)
	require.NoError(t, err)

	var env model.FileEnvelope
	require.NoError(t, json.Unmarshal([]byte(sender.lastInput.Body), &env))
	assert.True(t, env.IsVoiceMessage)
	assert.Equal(t, 17, env.Duration)
	assert.Equal(t, "voice-message.webm", env.FileName)
}

func TestUploadFailureKeepsDraftAndSkipsMutation(t *testing.T) {
	sender := &fakeSender{}
	uploader := &fakeUploader{err: errors.New("network down")}
	p := NewPipeline(sender, uploader, "u-1")

	composer := NewComposer()
	attachment := staticAttachment("report.pdf", "application/pdf", []byte("pdf"))
	composer.Attach(attachment)

	_, err := p.Send(context.Background(), "c-1", composer, timeline.NewStore(), nil)
	require.Error(t, err)

	assert.Empty(t, sender.lastInput.ConversationID, "mutation never fired")
	assert.Same(t, attachment, composer.Attachment(), "attachment stays staged for retry")
}

func TestAttachmentReplacesVoiceAndViceVersa(t *testing.T) {
	composer := NewComposer()

	composer.Attach(staticAttachment("a.txt", "text/plain", []byte("x")))
	composer.AttachVoice(&VoiceClip{ContentType: "audio/webm"})
	assert.Nil(t, composer.Attachment())
	assert.NotNil(t, composer.VoiceClip())

	composer.Attach(staticAttachment("b.txt", "text/plain", []byte("y")))
	assert.Nil(t, composer.VoiceClip())
	assert.NotNil(t, composer.Attachment())
}
