// Package poll provides the fixed-interval fallback fetch that keeps a
// conversation converging when the push channel is degraded or down.
package poll

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pandoo/chatsync/internal/logging"
	"github.com/pandoo/chatsync/internal/model"
)

// Poller errors.
var (
	ErrPollerAlreadyRunning = errors.New("poller already running")
	ErrPollerNotRunning     = errors.New("poller not running")
)

// Fetcher retrieves the most recent messages of a conversation, newest
// page first. backend.Client satisfies this through a small adapter in
// the session package.
type Fetcher interface {
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error)
}

// Sink receives messages that passed the watermark filter. The
// conversation id is passed explicitly so a consumer can discard
// results that arrive after a conversation switch.
type Sink func(conversationID string, msgs []model.Message)

// Config contains configuration for the Poller.
type Config struct {
	// Interval is how often to poll. Default: 2s.
	Interval time.Duration

	// PageLimit is how many recent messages each poll requests.
	// Default: 50.
	PageLimit int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:  2 * time.Second,
		PageLimit: 50,
	}
}

// Poller periodically fetches recent messages and forwards only the
// ones newer than its watermark. At most one fetch is in flight at a
// time; ticks that land while a fetch is outstanding are skipped, never
// queued.
type Poller struct {
	conversationID string
	config         Config
	fetcher        Fetcher
	sink           Sink
	logger         zerolog.Logger

	mu        sync.Mutex
	running   bool
	inFlight  bool
	watermark time.Time
	hasMark   bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewPoller creates a poller for one conversation. If the history load
// already established a newest-known timestamp, seed it with
// SeedWatermark before Start so the first tick does not re-deliver
// loaded messages.
func NewPoller(conversationID string, config Config, fetcher Fetcher, sink Sink) *Poller {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.PageLimit <= 0 {
		config.PageLimit = DefaultConfig().PageLimit
	}

	return &Poller{
		conversationID: conversationID,
		config:         config,
		fetcher:        fetcher,
		sink:           sink,
		logger:         logging.WithConversation(conversationID).With().Str("component", "poller").Logger(),
	}
}

// SeedWatermark sets the newest-known message timestamp before the
// first tick.
func (p *Poller) SeedWatermark(ts time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasMark || ts.After(p.watermark) {
		p.watermark = ts
		p.hasMark = true
	}
}

// Watermark returns the current watermark and whether one is set.
func (p *Poller) Watermark() (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watermark, p.hasMark
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrPollerAlreadyRunning
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true

	p.logger.Debug().
		Dur("interval", p.config.Interval).
		Int("page_limit", p.config.PageLimit).
		Msg("poller starting")

	p.wg.Add(1)
	go p.runLoop()

	return nil
}

// Stop halts the polling loop and releases the ticker. An in-flight
// fetch is cancelled rather than waited out.
func (p *Poller) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return ErrPollerNotRunning
	}
	p.cancel()
	p.running = false
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Debug().Msg("poller stopped")
	return nil
}

// IsRunning returns true if the poller is running.
func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// runLoop is the main polling loop.
func (p *Poller) runLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

// tick starts one polling cycle unless a previous one is still running.
// Skipped ticks are dropped, never queued.
func (p *Poller) tick() {
	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		p.logger.Debug().Msg("previous poll still in flight, skipping tick")
		return
	}
	p.inFlight = true
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			p.mu.Lock()
			p.inFlight = false
			p.mu.Unlock()
		}()
		p.doPoll()
	}()
}

// doPoll fetches the recent page and applies the watermark filter.
func (p *Poller) doPoll() {
	msgs, err := p.fetcher.RecentMessages(p.ctx, p.conversationID, p.config.PageLimit)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		// Poll failures are transient by assumption; the next tick tries
		// again with the same watermark.
		p.logger.Warn().Err(err).Msg("poll fetch failed")
		return
	}
	if len(msgs) == 0 {
		return
	}

	newest := newestCreatedAt(msgs)

	p.mu.Lock()
	hadMark := p.hasMark
	mark := p.watermark
	// The watermark advances on every successful tick, whether or not
	// anything is delivered, so a message is never considered twice.
	if !p.hasMark || newest.After(p.watermark) {
		p.watermark = newest
		p.hasMark = true
	}
	p.mu.Unlock()

	if !hadMark {
		// First observation of this conversation: record where "now" is
		// and deliver nothing. History loading owns the backlog.
		p.logger.Debug().Time("watermark", newest).Msg("watermark initialized")
		return
	}

	fresh := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.CreatedAt.After(mark) {
			fresh = append(fresh, m)
		}
	}
	if len(fresh) == 0 {
		return
	}

	p.logger.Debug().Int("count", len(fresh)).Msg("poll found new messages")
	p.sink(p.conversationID, fresh)
}

func newestCreatedAt(msgs []model.Message) time.Time {
	newest := msgs[0].CreatedAt
	for _, m := range msgs[1:] {
		if m.CreatedAt.After(newest) {
			newest = m.CreatedAt
		}
	}
	return newest
}
