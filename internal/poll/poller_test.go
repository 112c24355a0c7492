package poll

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pandoo/chatsync/internal/model"
)

func msg(id string, at time.Time) model.Message {
	return model.Message{
		ConversationID: "c-1",
		MsgID:          id,
		SenderID:       "u-1",
		CreatedAt:      at,
		Type:           model.MessageTypeText,
		Body:           "body " + id,
	}
}

// scriptedFetcher returns the configured batch on every call and counts
// invocations. Block makes calls hang until release is closed.
type scriptedFetcher struct {
	mu      sync.Mutex
	batches [][]model.Message
	calls   int
	err     error
	block   chan struct{}
}

func (f *scriptedFetcher) RecentMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	idx := call - 1
	if idx >= len(f.batches) {
		idx = len(f.batches) - 1
	}
	if idx < 0 {
		return nil, nil
	}
	return f.batches[idx], nil
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type sinkRecorder struct {
	mu    sync.Mutex
	calls [][]model.Message
}

func (r *sinkRecorder) sink(conversationID string, msgs []model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, msgs)
}

func (r *sinkRecorder) all() []model.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Message
	for _, c := range r.calls {
		out = append(out, c...)
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestFirstTickRecordsWatermarkWithoutDelivering(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fetcher := &scriptedFetcher{batches: [][]model.Message{
		{msg("m-1", base), msg("m-2", base.Add(time.Second))},
	}}
	rec := &sinkRecorder{}

	p := NewPoller("c-1", Config{Interval: 10 * time.Millisecond}, fetcher, rec.sink)
	require.NoError(t, p.Start(context.Background()))
	defer func() { _ = p.Stop() }()

	waitFor(t, func() bool {
		_, ok := p.Watermark()
		return ok
	})

	mark, _ := p.Watermark()
	assert.True(t, mark.Equal(base.Add(time.Second)), "watermark is the newest fetched timestamp")
	assert.Empty(t, rec.all(), "first observation delivers nothing")
}

func TestDeliversOnlyStrictlyNewer(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	older := msg("m-1", base.Add(-time.Minute))
	atMark := msg("m-2", base)
	newer := msg("m-3", base.Add(time.Second))

	fetcher := &scriptedFetcher{batches: [][]model.Message{
		{older, atMark, newer},
	}}
	rec := &sinkRecorder{}

	p := NewPoller("c-1", Config{Interval: 10 * time.Millisecond}, fetcher, rec.sink)
	p.SeedWatermark(base)
	require.NoError(t, p.Start(context.Background()))
	defer func() { _ = p.Stop() }()

	waitFor(t, func() bool { return len(rec.all()) > 0 })

	delivered := rec.calls[0]
	require.Len(t, delivered, 1)
	assert.Equal(t, "m-3", delivered[0].MsgID, "messages at or before the watermark are filtered")

	mark, _ := p.Watermark()
	assert.True(t, mark.Equal(base.Add(time.Second)))
}

func TestWatermarkAdvancesEvenWhenNothingDelivered(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fetcher := &scriptedFetcher{batches: [][]model.Message{
		{msg("m-1", base.Add(-time.Minute))},
	}}
	rec := &sinkRecorder{}

	p := NewPoller("c-1", Config{Interval: 10 * time.Millisecond}, fetcher, rec.sink)
	p.SeedWatermark(base)
	require.NoError(t, p.Start(context.Background()))
	defer func() { _ = p.Stop() }()

	waitFor(t, func() bool { return fetcher.callCount() >= 2 })

	assert.Empty(t, rec.all())
	mark, _ := p.Watermark()
	assert.True(t, mark.Equal(base), "watermark never regresses")
}

func TestSkipsTicksWhileFetchInFlight(t *testing.T) {
	release := make(chan struct{})
	fetcher := &scriptedFetcher{block: release}
	rec := &sinkRecorder{}

	p := NewPoller("c-1", Config{Interval: 10 * time.Millisecond}, fetcher, rec.sink)
	require.NoError(t, p.Start(context.Background()))

	waitFor(t, func() bool { return fetcher.callCount() == 1 })

	// Several intervals pass while the first fetch hangs; no second
	// fetch starts and none queue up behind it.
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, fetcher.callCount())

	close(release)
	waitFor(t, func() bool { return fetcher.callCount() >= 2 })
	_ = p.Stop()
}

func TestFetchErrorsAreSwallowed(t *testing.T) {
	fetcher := &scriptedFetcher{err: errors.New("backend down")}
	rec := &sinkRecorder{}

	p := NewPoller("c-1", Config{Interval: 10 * time.Millisecond}, fetcher, rec.sink)
	require.NoError(t, p.Start(context.Background()))
	defer func() { _ = p.Stop() }()

	waitFor(t, func() bool { return fetcher.callCount() >= 3 })

	assert.Empty(t, rec.all())
	_, ok := p.Watermark()
	assert.False(t, ok, "failed fetches never touch the watermark")
}

func TestStartStopLifecycle(t *testing.T) {
	fetcher := &scriptedFetcher{}
	p := NewPoller("c-1", Config{Interval: 10 * time.Millisecond}, fetcher, func(string, []model.Message) {})

	require.ErrorIs(t, p.Stop(), ErrPollerNotRunning)
	require.NoError(t, p.Start(context.Background()))
	require.ErrorIs(t, p.Start(context.Background()), ErrPollerAlreadyRunning)
	require.True(t, p.IsRunning())
	require.NoError(t, p.Stop())
	require.False(t, p.IsRunning())
}
