package chat

// User-facing error copy, all in brand voice.
const (
	MsgRateLimit      = "Slow down. The blank page isn't going anywhere."
	MsgAIFailure      = "The page is thinking. Try again in a moment."
	MsgInvalidRequest = "Invalid request"
	MsgSessionEnd     = "Your time with this page is over. But the page doesn't have to be."
)
