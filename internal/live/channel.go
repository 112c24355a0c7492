// Package live maintains the push subscription that delivers newly
// created messages for one conversation. The connection is best-effort:
// it may drop or never come up at all, and the rest of the sync engine
// stays correct without it.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/pandoo/chatsync/internal/logging"
	"github.com/pandoo/chatsync/internal/model"
)

// State is the channel's connection state.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
	StateClosed     State = "closed"
	StateErrored    State = "errored"
)

// ChannelError wraps a subscription failure. It is never fatal to the
// sync engine; callers at most surface it as a connectivity indicator.
type ChannelError struct {
	ConversationID string
	Err            error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("live channel %s: %v", e.ConversationID, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

const eventMessageAdded = "message.added"

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Handler receives each pushed message together with the conversation id
// the channel was registered for, so stale-channel guards compare ids
// rather than rely on captured scope.
type Handler func(conversationID string, msg model.Message)

// Config configures a Channel.
type Config struct {
	// URL is the subscription endpoint; http(s) schemes are rewritten to
	// ws(s) at dial time.
	URL   string
	Token string

	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	MaxReconnectAttempts int

	// OnState observes state transitions. Called from the channel
	// goroutine; must not block.
	OnState func(State)
}

func (c *Config) defaults() {
	if c.ReconnectBaseDelay <= 0 {
		c.ReconnectBaseDelay = time.Second
	}
	if c.ReconnectMaxDelay <= 0 {
		c.ReconnectMaxDelay = 30 * time.Second
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = 10
	}
}

// Channel is one subscription for one conversation id. It is not reused
// across conversations: switching tears the channel down and opens a new
// one.
type Channel struct {
	conversationID string
	cfg            Config
	handler        Handler
	logger         zerolog.Logger

	mu          sync.Mutex
	state       State
	conn        *websocket.Conn
	cancel      context.CancelFunc
	intentional bool
	wg          sync.WaitGroup
}

// NewChannel builds a channel for the given conversation. Open starts it.
func NewChannel(conversationID string, cfg Config, handler Handler) *Channel {
	cfg.defaults()
	return &Channel{
		conversationID: conversationID,
		cfg:            cfg,
		handler:        handler,
		state:          StateIdle,
		logger:         logging.WithConversation(conversationID).With().Str("component", "live-channel").Logger(),
	}
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open starts the connect/read/retry loop in its own goroutine. It is an
// error to open a channel twice.
func (c *Channel) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return errors.New("channel already open")
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.intentional = false
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run(ctx)
	return nil
}

// Close tears the subscription down, closing the underlying connection
// with a normal-shutdown code so no retry is attempted. Safe to call on
// a channel that never connected.
func (c *Channel) Close() {
	c.mu.Lock()
	c.intentional = true
	cancel := c.cancel
	c.cancel = nil
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "teardown")
	}
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	c.setState(StateIdle)
}

func (c *Channel) run(ctx context.Context) {
	defer c.wg.Done()

	recon := newReconnector(c.cfg.ReconnectBaseDelay, c.cfg.ReconnectMaxDelay, c.cfg.MaxReconnectAttempts)

	for {
		if ctx.Err() != nil {
			return
		}
		c.setState(StateConnecting)

		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil || c.isIntentional() {
				return
			}
			// Dial errors can echo the request, token included.
			c.logger.Warn().Str("error", logging.Redact(err.Error())).Msg("subscription dial failed")
			c.setState(StateErrored)
			if !c.backoff(ctx, recon) {
				return
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		recon.markConnected()
		c.setState(StateConnected)
		c.logger.Debug().Msg("subscription connected")

		err = c.readLoop(ctx, conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()

		if ctx.Err() != nil || c.isIntentional() {
			return
		}
		if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
			// Server ended the subscription on purpose; not a failure.
			c.setState(StateClosed)
			return
		}

		c.logger.Warn().Str("error", logging.Redact(err.Error())).Msg("subscription dropped")
		c.setState(StateErrored)
		if !c.backoff(ctx, recon) {
			return
		}
	}
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	url := strings.Replace(c.cfg.URL, "https://", "wss://", 1)
	url = strings.Replace(url, "http://", "ws://", 1)
	if strings.Contains(url, "?") {
		url += "&conversationId=" + c.conversationID
	} else {
		url += "?conversationId=" + c.conversationID
	}

	opts := &websocket.DialOptions{}
	if c.cfg.Token != "" {
		opts.HTTPHeader = http.Header{"Authorization": []string{c.cfg.Token}}
	}
	conn, _, err := websocket.Dial(ctx, url, opts)
	if err != nil {
		return nil, &ChannelError{ConversationID: c.conversationID, Err: err}
	}
	conn.SetReadLimit(8 << 20)
	return conn, nil
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn().Err(err).Msg("dropping malformed push event")
			continue
		}
		if env.Type != eventMessageAdded {
			continue
		}

		var msg model.Message
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			c.logger.Warn().Err(err).Msg("dropping undecodable message event")
			continue
		}
		if msg.ConversationID != c.conversationID {
			// Cross-conversation event during a fast switch; never deliver.
			c.logger.Debug().Str("event_conversation", msg.ConversationID).Msg("dropping event for other conversation")
			continue
		}
		c.handler(c.conversationID, msg)
	}
}

func (c *Channel) backoff(ctx context.Context, recon *reconnector) bool {
	if !recon.shouldRetry() {
		c.logger.Warn().Int("attempts", recon.attempt).Msg("giving up on subscription")
		return false
	}
	delay := recon.nextDelay()
	c.logger.Debug().Dur("delay", delay).Int("attempt", recon.attempt).Msg("reconnecting")

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *Channel) isIntentional() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intentional
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	onState := c.cfg.OnState
	c.mu.Unlock()
	if changed && onState != nil {
		onState(s)
	}
}
