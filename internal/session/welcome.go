package session

import "github.com/blankpage/blankpage/internal/localstate"

// welcomeKey mirrors the key the web client uses for the onboarding flag.
const welcomeKey = "blankpage_welcome_seen"

// Welcome tracks whether the onboarding message has been shown. Storage
// unavailability degrades to "always show".
type Welcome struct {
	store localstate.Store
}

// NewWelcome creates a Welcome flag over the given store.
func NewWelcome(store localstate.Store) Welcome {
	return Welcome{store: store}
}

// Seen reports whether the welcome message was already shown.
func (w Welcome) Seen() bool {
	v, ok := w.store.Get(welcomeKey)
	return ok && v == "true"
}

// MarkSeen records that the welcome message was shown, best effort.
func (w Welcome) MarkSeen() {
	_ = w.store.Set(welcomeKey, "true")
}
