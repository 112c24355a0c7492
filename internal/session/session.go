// Package session coordinates the per-conversation sync machinery: the
// history load, the push channel, the polling fallback, and the send
// pipeline, all feeding one timeline store.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pandoo/chatsync/internal/backend"
	"github.com/pandoo/chatsync/internal/events"
	"github.com/pandoo/chatsync/internal/live"
	"github.com/pandoo/chatsync/internal/logging"
	"github.com/pandoo/chatsync/internal/model"
	"github.com/pandoo/chatsync/internal/poll"
	"github.com/pandoo/chatsync/internal/send"
	"github.com/pandoo/chatsync/internal/storage"
	"github.com/pandoo/chatsync/internal/timeline"
)

// Session errors.
var (
	ErrNoConversation  = errors.New("no conversation selected")
	ErrNoConversations = errors.New("no conversations available")
)

// Config wires a Session together.
type Config struct {
	Backend *backend.Client

	// LiveURL is the push subscription endpoint. Empty disables the
	// push channel; the poller alone keeps the timeline converging.
	LiveURL string
	Token   string
	UserID  string

	// Uploader is the media store. Nil disables file and voice sends.
	Uploader storage.Uploader

	// Recorder is the capture device. Nil disables voice recording.
	Recorder send.Recorder

	Poll poll.Config

	// Reconnect tuning for the push channel. Zero values fall back to
	// the channel's own defaults.
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	ReconnectMaxAttempts int

	// PageLimit is the history page size. Default: 50.
	PageLimit int

	// Publisher receives session events. Nil means a private one is
	// created; either way Events() exposes it.
	Publisher events.Publisher
}

// Session owns at most one active conversation at a time. Selecting a
// new conversation tears down every channel of the old one before any
// state of the new one is built, so a late callback from the old
// conversation can never touch the new timeline.
type Session struct {
	cfg       Config
	publisher events.Publisher
	logger    zerolog.Logger

	mu        sync.Mutex
	activeID  string
	store     *timeline.Store
	composer  *send.Composer
	pipeline  *send.Pipeline
	recording *send.Recording
	channel   *live.Channel
	poller    *poll.Poller
}

// New builds a session in the no-conversation state.
func New(cfg Config) *Session {
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 50
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = events.NewInMemoryPublisher()
	}

	s := &Session{
		cfg:       cfg,
		publisher: pub,
		store:     timeline.NewStore(),
		composer:  send.NewComposer(),
		pipeline:  send.NewPipeline(cfg.Backend, cfg.Uploader, cfg.UserID),
		logger:    logging.Component("session"),
	}
	if cfg.Recorder != nil {
		s.recording = send.NewRecording(cfg.Recorder)
	}
	return s
}

// Events returns the publisher session notifications go through.
func (s *Session) Events() events.Publisher {
	return s.publisher
}

// Active returns the selected conversation id, if any.
func (s *Session) Active() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID, s.activeID != ""
}

// Store returns the timeline store of the active conversation. The
// store is replaced wholesale on every switch; callers should re-fetch
// it after Select rather than hold one across switches.
func (s *Session) Store() *timeline.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store
}

// Composer returns the current draft.
func (s *Session) Composer() *send.Composer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.composer
}

// Conversations lists the conversations visible to the current user.
func (s *Session) Conversations(ctx context.Context) ([]model.Conversation, error) {
	return s.cfg.Backend.MyConversations(ctx)
}

// AutoSelect picks the first available conversation, mirroring the
// initial-load behavior of the reference client. Returns
// ErrNoConversations when the user has none.
func (s *Session) AutoSelect(ctx context.Context) (string, error) {
	convs, err := s.cfg.Backend.MyConversations(ctx)
	if err != nil {
		return "", fmt.Errorf("list conversations: %w", err)
	}
	if len(convs) == 0 {
		return "", ErrNoConversations
	}
	if err := s.Select(ctx, convs[0].ID); err != nil {
		return "", err
	}
	return convs[0].ID, nil
}

// Select makes the given conversation active. Old machinery is torn
// down first, then history is loaded, then the push channel and poller
// start. Selecting the already-active conversation is a no-op.
func (s *Session) Select(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	if s.activeID == conversationID {
		s.mu.Unlock()
		return nil
	}
	oldChannel := s.channel
	oldPoller := s.poller
	s.channel = nil
	s.poller = nil
	s.activeID = ""
	s.mu.Unlock()

	if oldPoller != nil {
		_ = oldPoller.Stop()
	}
	if oldChannel != nil {
		oldChannel.Close()
	}

	store := timeline.NewStore()
	loaded, err := s.loadHistory(ctx, conversationID)
	if err != nil {
		return err
	}
	store.Reconcile(loaded)

	poller := s.newPoller(conversationID, store)
	if mark, ok := store.Watermark(); ok {
		poller.SeedWatermark(mark)
	}

	var channel *live.Channel
	if s.cfg.LiveURL != "" {
		channel = s.newChannel(conversationID, store)
	}

	s.mu.Lock()
	s.activeID = conversationID
	s.store = store
	s.composer = send.NewComposer()
	s.channel = channel
	s.poller = poller
	s.mu.Unlock()

	if channel != nil {
		if err := channel.Open(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("push channel failed to open")
		}
	}
	if err := poller.Start(ctx); err != nil {
		return fmt.Errorf("start poller: %w", err)
	}

	s.logger.Info().Str("conversation_id", conversationID).Int("history", len(loaded)).Msg("conversation selected")
	s.publisher.Publish(&events.Event{Type: events.EventConversationSelected, ConversationID: conversationID})
	return nil
}

// loadHistory fetches the first page of history. Older pages stay on
// the server; the timeline starts from the most recent window and grows
// forward through the push channel and the poller.
func (s *Session) loadHistory(ctx context.Context, conversationID string) ([]model.Message, error) {
	page, err := s.cfg.Backend.Messages(ctx, conversationID, s.cfg.PageLimit, "")
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return page.Items, nil
}

func (s *Session) newPoller(conversationID string, store *timeline.Store) *poll.Poller {
	sink := func(id string, msgs []model.Message) {
		if !s.isActive(id) {
			s.logger.Debug().Str("conversation_id", id).Msg("discarding stale poll result")
			return
		}
		if n := store.Reconcile(msgs); n > 0 {
			s.publisher.Publish(&events.Event{Type: events.EventMessagesUpdated, ConversationID: id, Inserted: n})
		}
	}
	return poll.NewPoller(conversationID, s.cfg.Poll, &recentFetcher{client: s.cfg.Backend}, sink)
}

func (s *Session) newChannel(conversationID string, store *timeline.Store) *live.Channel {
	handler := func(id string, msg model.Message) {
		if !s.isActive(id) {
			s.logger.Debug().Str("conversation_id", id).Msg("discarding stale push event")
			return
		}
		if n := store.Reconcile([]model.Message{msg}); n > 0 {
			s.publisher.Publish(&events.Event{Type: events.EventMessagesUpdated, ConversationID: id, Inserted: n})
		}
	}
	return live.NewChannel(conversationID, s.liveConfig(conversationID), handler)
}

// liveConfig builds the push channel configuration, carrying the
// session's reconnect tuning through to the channel.
func (s *Session) liveConfig(conversationID string) live.Config {
	return live.Config{
		URL:                  s.cfg.LiveURL,
		Token:                s.cfg.Token,
		ReconnectBaseDelay:   s.cfg.ReconnectBaseDelay,
		ReconnectMaxDelay:    s.cfg.ReconnectMaxDelay,
		MaxReconnectAttempts: s.cfg.ReconnectMaxAttempts,
		OnState: func(state live.State) {
			s.publisher.Publish(&events.Event{Type: events.EventChannelState, ConversationID: conversationID, ChannelState: string(state)})
		},
	}
}

func (s *Session) isActive(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID == conversationID
}

// LiveState reports the push channel state, StateIdle when no channel
// exists.
func (s *Session) LiveState() live.State {
	s.mu.Lock()
	channel := s.channel
	s.mu.Unlock()
	if channel == nil {
		return live.StateIdle
	}
	return channel.State()
}

// Send submits the current draft to the active conversation. The draft
// survives any failure.
func (s *Session) Send(ctx context.Context, progress storage.ProgressFunc) (*model.Message, error) {
	s.mu.Lock()
	id := s.activeID
	store := s.store
	composer := s.composer
	s.mu.Unlock()

	if id == "" {
		return nil, ErrNoConversation
	}

	msg, err := s.pipeline.Send(ctx, id, composer, store, progress)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(&events.Event{Type: events.EventMessageSent, ConversationID: id})
	s.publisher.Publish(&events.Event{Type: events.EventMessagesUpdated, ConversationID: id, Inserted: 1})
	return msg, nil
}

// AttachmentURL resolves a time-limited download locator for a file
// message in the current timeline.
func (s *Session) AttachmentURL(ctx context.Context, msgID string) (string, error) {
	if s.cfg.Uploader == nil {
		return "", errors.New("media storage not configured")
	}
	msg, ok := s.Store().Get(msgID)
	if !ok {
		return "", fmt.Errorf("message %s not in timeline", msgID)
	}
	content, ok := msg.Content().(model.FileContent)
	if !ok || content.MediaKey == "" {
		return "", fmt.Errorf("message %s has no attachment", msgID)
	}
	return s.cfg.Uploader.DownloadURL(ctx, content.MediaKey)
}

// StartRecording begins a voice capture session.
func (s *Session) StartRecording(ctx context.Context) error {
	if s.recording == nil {
		return errors.New("recording not configured")
	}
	return s.recording.Start(ctx)
}

// StopRecording ends the capture and stages the clip on the composer.
func (s *Session) StopRecording() error {
	if s.recording == nil {
		return errors.New("recording not configured")
	}
	clip, err := s.recording.Stop()
	if err != nil {
		return err
	}
	s.Composer().AttachVoice(clip)
	return nil
}

// CancelRecording discards an in-progress capture. Safe when idle.
func (s *Session) CancelRecording() error {
	if s.recording == nil {
		return nil
	}
	return s.recording.Cancel()
}

// RecordingElapsed returns whole seconds captured so far, zero when no
// capture is running.
func (s *Session) RecordingElapsed() int {
	if s.recording == nil {
		return 0
	}
	return s.recording.Elapsed()
}

// Close tears everything down: poller, push channel, and any
// in-progress recording. The session returns to the no-conversation
// state.
func (s *Session) Close() {
	s.mu.Lock()
	channel := s.channel
	poller := s.poller
	s.channel = nil
	s.poller = nil
	s.activeID = ""
	s.mu.Unlock()

	if poller != nil {
		_ = poller.Stop()
	}
	if channel != nil {
		channel.Close()
	}
	if s.recording != nil {
		_ = s.recording.Cancel()
	}
}

// recentFetcher adapts the backend client to the poller's view: first
// page only, newest messages.
type recentFetcher struct {
	client *backend.Client
}

func (f *recentFetcher) RecentMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	page, err := f.client.Messages(ctx, conversationID, limit, "")
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}
