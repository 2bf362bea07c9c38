package typewriter

import (
	"testing"
	"time"
)

func TestPlayback_LiveTextShowsImmediately(t *testing.T) {
	p := NewPlayback()
	p.SetTarget("streamed so far", true)

	frame, wait, more := p.Step()
	if frame != "streamed so far" || more {
		t.Errorf("Expected full live text at once, got %q (more=%v)", frame, more)
	}
	if wait != 0 {
		t.Errorf("Expected no delay for live text, got %v", wait)
	}
}

func TestPlayback_ReplayRevealsCharacterByCharacter(t *testing.T) {
	p := NewPlayback(WithRevealInterval(10 * time.Millisecond))
	p.SetTarget("abc", false)

	want := []struct {
		frame string
		more  bool
	}{
		{"a", true},
		{"ab", true},
		{"abc", false},
	}
	for i, w := range want {
		frame, wait, more := p.Step()
		if frame != w.frame || more != w.more {
			t.Fatalf("Step %d: expected %q (more=%v), got %q (more=%v)", i, w.frame, w.more, frame, more)
		}
		if more && wait != 10*time.Millisecond {
			t.Errorf("Step %d: expected reveal interval, got %v", i, wait)
		}
	}
}

func TestPlayback_NewTargetResetsPosition(t *testing.T) {
	p := NewPlayback()
	p.SetTarget("first", false)
	p.Step()
	p.Step()

	p.SetTarget("second", false)
	frame, _, _ := p.Step()
	if frame != "s" {
		t.Errorf("Expected reveal to restart at the first character, got %q", frame)
	}
}

func TestPlayback_SameTargetKeepsPosition(t *testing.T) {
	p := NewPlayback()
	p.SetTarget("hello", false)
	p.Step()
	p.Step()

	p.SetTarget("hello", false)
	frame, _, _ := p.Step()
	if frame != "hel" {
		t.Errorf("Expected reveal to continue from position 2, got %q", frame)
	}
}

func TestPlayback_LiveStreamGrowth(t *testing.T) {
	// Fragments arriving from a live stream replace the target; each frame
	// shows everything received so far, in arrival order.
	p := NewPlayback()

	fragments := []string{"Wh", "at are", " you avoiding?"}
	accumulated := ""
	for _, frag := range fragments {
		accumulated += frag
		p.SetTarget(accumulated, true)
		frame, _, _ := p.Step()
		if frame != accumulated {
			t.Fatalf("Expected %q after fragment %q, got %q", accumulated, frag, frame)
		}
	}
	if got, _, _ := p.Step(); got != "What are you avoiding?" {
		t.Errorf("Expected final text, got %q", got)
	}
}
