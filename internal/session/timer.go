// Package session implements the free-tier session lifecycle: a bounded
// wall-clock countdown, an end-of-session grace transition, and a lockout
// window between free sessions backed by best-effort local state.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/blankpage/blankpage/internal/config"
	"github.com/blankpage/blankpage/internal/localstate"
)

// State is the free-session lifecycle state.
type State int

const (
	// StateInactive means no free session has started.
	StateInactive State = iota
	// StateActive means the countdown is running.
	StateActive
	// StateExpired means the countdown hit the session duration; the
	// end-of-session message is showing during the grace delay.
	StateExpired
	// StateEnded is terminal: the conversation is closed to input.
	StateEnded
	// StateLockedOut is terminal: a prior session's lockout window has not
	// elapsed yet.
	StateLockedOut
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateActive:
		return "active"
	case StateExpired:
		return "expired"
	case StateEnded:
		return "ended"
	case StateLockedOut:
		return "locked_out"
	default:
		return "unknown"
	}
}

// lockKey stores the free-session lock record, mirroring the key the web
// client uses in its local storage.
const lockKey = "blankpage_free_session"

type lockRecord struct {
	StartedAt time.Time `json:"startedAt"`
}

// Timer is the free-session state machine. All transitions derive from
// wall-clock time; Progress is a pure function of now and never drives a
// transition on its own.
type Timer struct {
	mu        sync.Mutex
	state     State
	startedAt time.Time
	expiredAt time.Time

	duration time.Duration
	grace    time.Duration
	lockout  time.Duration

	store     localstate.Store
	now       func() time.Time
	observers []func(State)
}

// Option configures a Timer.
type Option func(*Timer)

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Timer) { t.now = now }
}

// NewTimer creates a Timer and resolves the initial state from any
// persisted lock record: a record younger than the lockout window locks
// the session out; an older or unreadable record is discarded.
func NewTimer(cfg config.SessionConfig, store localstate.Store, opts ...Option) *Timer {
	t := &Timer{
		state:    StateInactive,
		duration: cfg.FreeDuration,
		grace:    cfg.EndGrace,
		lockout:  cfg.LockoutWindow,
		store:    store,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.load()
	return t
}

func (t *Timer) load() {
	raw, ok := t.store.Get(lockKey)
	if !ok {
		return
	}

	var rec lockRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.StartedAt.IsZero() {
		// Corrupt record: treat as absent.
		_ = t.store.Delete(lockKey)
		return
	}

	if t.now().Sub(rec.StartedAt) < t.lockout {
		t.state = StateLockedOut
		t.startedAt = rec.StartedAt
		return
	}
	// Lockout elapsed; the stale record is the only thing keeping the
	// session locked, so drop it.
	_ = t.store.Delete(lockKey)
}

// State returns the current state.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// OnTransition registers an observer called after every state change.
func (t *Timer) OnTransition(fn func(State)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, fn)
}

// Start begins the countdown on the first user submission. Persisting the
// lock record is best effort: storage loss degrades to "never lock", it
// does not block the session.
func (t *Timer) Start() {
	t.mu.Lock()
	if t.state != StateInactive {
		t.mu.Unlock()
		return
	}
	t.state = StateActive
	t.startedAt = t.now()

	raw, err := json.Marshal(lockRecord{StartedAt: t.startedAt})
	if err == nil {
		_ = t.store.Set(lockKey, string(raw))
	}
	t.mu.Unlock()

	t.notify(StateActive)
}

// Progress returns the elapsed fraction of the session, clamped to [0,1].
func (t *Timer) Progress(now time.Time) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case StateInactive, StateLockedOut:
		return 0
	case StateExpired, StateEnded:
		return 1
	}
	frac := float64(now.Sub(t.startedAt)) / float64(t.duration)
	if frac < 0 {
		return 0
	}
	if frac > 1 {
		return 1
	}
	return frac
}

// Advance moves the state machine according to now and returns the
// resulting state. Active becomes Expired exactly once when the session
// duration has elapsed; Expired becomes Ended after the grace delay.
func (t *Timer) Advance(now time.Time) State {
	t.mu.Lock()
	var fired State
	var transition bool

	switch t.state {
	case StateActive:
		if now.Sub(t.startedAt) >= t.duration {
			t.state = StateExpired
			t.expiredAt = now
			fired, transition = StateExpired, true
		}
	case StateExpired:
		if now.Sub(t.expiredAt) >= t.grace {
			t.state = StateEnded
			fired, transition = StateEnded, true
		}
	}
	state := t.state
	t.mu.Unlock()

	if transition {
		t.notify(fired)
	}
	return state
}

// InputAllowed reports whether user input is accepted in the current state.
func (t *Timer) InputAllowed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == StateInactive || t.state == StateActive
}

// Run drives the state machine with a real ticker until a terminal state
// or context cancellation. Stopping on cancellation prevents updates to a
// disposed view.
func (t *Timer) Run(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			switch t.Advance(now) {
			case StateEnded, StateLockedOut:
				return
			}
		}
	}
}

func (t *Timer) notify(s State) {
	t.mu.Lock()
	observers := make([]func(State), len(t.observers))
	copy(observers, t.observers)
	t.mu.Unlock()

	for _, fn := range observers {
		fn(s)
	}
}
