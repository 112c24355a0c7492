package send

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Recording errors.
var (
	ErrRecordingActive   = errors.New("recording already in progress")
	ErrRecordingInactive = errors.New("no recording in progress")
)

// Recorder abstracts the capture device. Implementations own an
// exclusive system resource, so every Start must be paired with exactly
// one Stop or Cancel.
type Recorder interface {
	// Start begins capturing.
	Start(ctx context.Context) error

	// Stop ends capturing and returns the finished clip.
	Stop() (*VoiceClip, error)

	// Cancel ends capturing and discards everything captured so far.
	Cancel() error
}

// Recording tracks one capture session over a Recorder. It enforces the
// single-session invariant and owns the elapsed-time bookkeeping.
type Recording struct {
	recorder Recorder

	mu        sync.Mutex
	active    bool
	startedAt time.Time
}

// NewRecording wraps a recorder.
func NewRecording(recorder Recorder) *Recording {
	return &Recording{recorder: recorder}
}

// Start begins a capture session.
func (r *Recording) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return ErrRecordingActive
	}
	if err := r.recorder.Start(ctx); err != nil {
		return err
	}
	r.active = true
	r.startedAt = time.Now()
	return nil
}

// Active reports whether a capture session is in progress.
func (r *Recording) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Elapsed returns the whole seconds captured so far, zero when idle.
func (r *Recording) Elapsed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return 0
	}
	return int(time.Since(r.startedAt) / time.Second)
}

// Stop ends the session and returns the clip with its duration filled
// in. The device is released even if the recorder fails.
func (r *Recording) Stop() (*VoiceClip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return nil, ErrRecordingInactive
	}
	elapsed := int(time.Since(r.startedAt) / time.Second)
	r.active = false

	clip, err := r.recorder.Stop()
	if err != nil {
		return nil, err
	}
	clip.Duration = elapsed
	return clip, nil
}

// Cancel ends the session and discards the capture. Safe to call when
// idle, so teardown paths can call it unconditionally.
func (r *Recording) Cancel() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return nil
	}
	r.active = false
	return r.recorder.Cancel()
}
