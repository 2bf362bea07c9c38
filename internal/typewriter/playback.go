package typewriter

import (
	"context"
	"sync"
	"time"
)

// Playback reveals a response at a controlled cadence, decoupled from
// network arrival timing. Live-streamed text is shown as-is — the network
// already paces it. Replayed text (loaded from storage) reveals one
// character per interval to keep the "thinking" feel consistent.
type Playback struct {
	mu       sync.Mutex
	target   []rune
	pos      int
	live     bool
	interval time.Duration
}

// PlaybackOption configures a Playback driver.
type PlaybackOption func(*Playback)

// WithRevealInterval overrides the per-character reveal cadence.
func WithRevealInterval(d time.Duration) PlaybackOption {
	return func(p *Playback) { p.interval = d }
}

// NewPlayback creates a Playback driver.
func NewPlayback(opts ...PlaybackOption) *Playback {
	p := &Playback{interval: DefaultRevealInterval}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetTarget points the driver at text. Switching to a different string
// resets the reveal position to zero; re-setting the same string keeps it.
// live marks text that is arriving from a live stream.
func (p *Playback) SetTarget(text string, live bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if string(p.target) != text {
		p.target = []rune(text)
		p.pos = 0
	}
	p.live = live
}

// Step advances one tick and returns the visible text, the delay before
// the next tick, and whether more ticks remain. Live targets are fully
// visible immediately.
func (p *Playback) Step() (frame string, wait time.Duration, more bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.live {
		p.pos = len(p.target)
		return string(p.target), 0, false
	}

	if p.pos < len(p.target) {
		p.pos++
	}
	if p.pos >= len(p.target) {
		return string(p.target), 0, false
	}
	return string(p.target[:p.pos]), p.interval, true
}

// Run drives the playback with real timers, delivering each frame to sink,
// until the target is fully revealed or ctx is cancelled.
func (p *Playback) Run(ctx context.Context, sink func(string)) {
	for {
		frame, wait, more := p.Step()
		sink(frame)
		if !more {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}
