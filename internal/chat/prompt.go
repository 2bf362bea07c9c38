package chat

import (
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// fallbackSystemPrompt keeps the page in character when the prompt file is
// missing or malformed.
const fallbackSystemPrompt = `You are The Page. You are a blank page that asks questions.
You exist to help people think — not by giving them answers, but by asking the question they're avoiding.
NEVER generate content for the user. NEVER give advice. NEVER ask more than one question per response.
NEVER be longer than 2 sentences. You are calm. Still. Like a blank page.`

var promptFence = regexp.MustCompile("(?s)```\n(.*?)```")

// LoadSystemPrompt reads the system instruction from a markdown file,
// extracting the content between the first pair of code fences. Any
// failure falls back to the built-in minimal prompt.
func LoadSystemPrompt(path string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("Prompt file unavailable, using fallback prompt", "path", path, "error", err)
		return fallbackSystemPrompt
	}

	m := promptFence.FindSubmatch(raw)
	if m == nil || strings.TrimSpace(string(m[1])) == "" {
		slog.Warn("Prompt file has no fenced content, using fallback prompt", "path", path)
		return fallbackSystemPrompt
	}
	return strings.TrimSpace(string(m[1]))
}
