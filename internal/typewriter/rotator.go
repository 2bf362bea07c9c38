// Package typewriter implements the idle-prompt rotation and response
// playback drivers. Both are pure steppers over a target string: Step
// advances one tick and reports the visible text plus the delay before the
// next tick, so tests drive them directly and Run drives them with real
// timers.
package typewriter

import (
	"context"
	"sync"
	"time"
)

// Default cadences.
const (
	DefaultTypeInterval   = 65 * time.Millisecond
	DefaultDeleteInterval = 40 * time.Millisecond
	DefaultIdleHold       = 15 * time.Second
	DefaultRevealInterval = 55 * time.Millisecond
)

type rotatorPhase int

const (
	phaseTyping rotatorPhase = iota
	phaseIdle
	phaseDeleting
)

// Rotator cycles through a fixed ordered list of prompt strings: type one
// character at a time, hold, backspace, advance to the next (wrapping).
// Freeze suspends the cycle so the visible prompt never vanishes or jumps
// mid-interaction: mid-type it finishes the current string and holds
// forever; mid-delete it reverses into retyping the same string.
type Rotator struct {
	mu        sync.Mutex
	questions [][]rune
	typeEvery time.Duration
	delEvery  time.Duration
	idleFor   time.Duration

	idx    int
	pos    int
	phase  rotatorPhase
	frozen bool
}

// RotatorOption configures a Rotator.
type RotatorOption func(*Rotator)

// WithCadence overrides the type/delete/idle timing.
func WithCadence(typeEvery, deleteEvery, idleFor time.Duration) RotatorOption {
	return func(r *Rotator) {
		r.typeEvery = typeEvery
		r.delEvery = deleteEvery
		r.idleFor = idleFor
	}
}

// NewRotator creates a Rotator over the given questions. The list must be
// non-empty.
func NewRotator(questions []string, opts ...RotatorOption) *Rotator {
	rs := make([][]rune, len(questions))
	for i, q := range questions {
		rs[i] = []rune(q)
	}
	r := &Rotator{
		questions: rs,
		typeEvery: DefaultTypeInterval,
		delEvery:  DefaultDeleteInterval,
		idleFor:   DefaultIdleHold,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Freeze suspends rotation. Raised when the user begins typing.
func (r *Rotator) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Frame returns the currently visible text without advancing.
func (r *Rotator) Frame() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(r.questions[r.idx][:r.pos])
}

// Step advances one tick. It returns the visible text, the delay before
// the next tick, and whether more ticks remain. Once frozen and fully
// typed, more is false and the frame never changes again.
func (r *Rotator) Step() (frame string, wait time.Duration, more bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q := r.questions[r.idx]

	switch r.phase {
	case phaseTyping:
		if r.pos < len(q) {
			r.pos++
		}
		if r.pos == len(q) {
			if r.frozen {
				return string(q), 0, false
			}
			r.phase = phaseIdle
			return string(q), r.idleFor, true
		}
		return string(q[:r.pos]), r.typeEvery, true

	case phaseIdle:
		if r.frozen {
			return string(q), 0, false
		}
		r.phase = phaseDeleting
		return string(q), r.delEvery, true

	default: // phaseDeleting
		if r.frozen {
			// Reverse into retyping the same question.
			r.phase = phaseTyping
			return string(q[:r.pos]), r.typeEvery, true
		}
		if r.pos > 0 {
			r.pos--
		}
		if r.pos == 0 {
			r.idx = (r.idx + 1) % len(r.questions)
			r.phase = phaseTyping
			return "", r.typeEvery, true
		}
		return string(q[:r.pos]), r.delEvery, true
	}
}

// Run drives the rotator with real timers, delivering each frame to sink,
// until the rotator holds or ctx is cancelled.
func (r *Rotator) Run(ctx context.Context, sink func(string)) {
	for {
		frame, wait, more := r.Step()
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
