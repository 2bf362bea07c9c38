// The Blank Page — terminal client
//
// Runs the page experience against a blankpage server: a rotating idle
// prompt, a five-minute free session with a 24-hour lockout, streamed
// replies, and (on the paid tier) saving, listing, replaying and deleting
// sessions.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/blankpage/blankpage/internal/chat"
	"github.com/blankpage/blankpage/internal/config"
	"github.com/blankpage/blankpage/internal/domain"
	"github.com/blankpage/blankpage/internal/identity"
	"github.com/blankpage/blankpage/internal/localstate"
	"github.com/blankpage/blankpage/internal/session"
	"github.com/blankpage/blankpage/internal/typewriter"
)

const msgNetwork = "The page is still here. Your connection isn't. We'll wait."

const msgLockedOut = "You've had your time with the page today.\n" +
	"The page will be here tomorrow. Or make it yours for good."

const msgWelcome = "This page is yours. There is nothing to do here. Nothing to finish.\n" +
	"Type when you're ready. Or don't."

// anonIDKey persists the server-issued device identity between runs.
const anonIDKey = "blankpage_anon_id"

var questions = []string{
	"What are you avoiding right now?",
	"What would you do if no one was watching?",
	"What are you pretending not to know?",
	"What conversation do you keep having with yourself?",
}

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "blankpage server URL")
	paid := flag.Bool("paid", false, "run without the free-session time limit")
	saveTitle := flag.String("save", "", "save the conversation under this title when the session ends (paid)")
	list := flag.Bool("list", false, "list saved sessions and exit")
	replayID := flag.String("replay", "", "replay a saved session by id and exit")
	deleteID := flag.String("delete", "", "delete a saved session by id and exit")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	state := openState()
	c := newClient(*serverURL, state)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch {
	case *list:
		err = runList(ctx, c)
	case *replayID != "":
		err = runReplay(ctx, c, *replayID)
	case *deleteID != "":
		err = c.deleteSession(ctx, *deleteID)
	default:
		err = runPage(ctx, c, state, *paid, *saveTitle)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openState opens the client-local state file, degrading to a no-op store
// when the config directory is unusable.
func openState() localstate.Store {
	dir, err := os.UserConfigDir()
	if err != nil {
		return localstate.Noop{}
	}
	fs, err := localstate.Open(filepath.Join(dir, "blankpage", "state.json"))
	if err != nil {
		slog.Warn("local state unavailable, lock and welcome flags disabled", "error", err)
		return localstate.Noop{}
	}
	return fs
}

func runPage(ctx context.Context, c *client, state localstate.Store, paid bool, saveTitle string) error {
	welcome := session.NewWelcome(state)
	if !welcome.Seen() {
		fmt.Println(msgWelcome)
		fmt.Println()
		welcome.MarkSeen()
	}

	timer := session.NewTimer(config.SessionConfig{
		FreeDuration:  5 * time.Minute,
		EndGrace:      3 * time.Second,
		LockoutWindow: 24 * time.Hour,
	}, state)

	if !paid && timer.State() == session.StateLockedOut {
		fmt.Println(msgLockedOut)
		return nil
	}

	ended := make(chan struct{})
	var endOnce sync.Once
	timer.OnTransition(func(s session.State) {
		switch s {
		case session.StateExpired:
			fmt.Println()
			fmt.Println(chat.MsgSessionEnd)
		case session.StateEnded:
			endOnce.Do(func() { close(ended) })
		}
	})

	// Idle prompt rotates until the first keystroke arrives. Line-based
	// input means the freeze lands on submit, which fixes the question
	// that stays on screen.
	rotCtx, stopRotator := context.WithCancel(ctx)
	defer stopRotator()
	rotator := typewriter.NewRotator(questions)
	go rotator.Run(rotCtx, func(frame string) {
		fmt.Printf("\r\033[K%s", frame)
	})

	var timerOnce sync.Once
	var transcript domain.Transcript
	lines := make(chan string)
	go readLines(lines)

	first := true
	for {
		var line string
		select {
		case <-ctx.Done():
			return nil
		case <-ended:
			if paid && saveTitle != "" {
				return saveTranscript(c, saveTitle, transcript)
			}
			return nil
		case l, ok := <-lines:
			if !ok {
				if paid && saveTitle != "" {
					return saveTranscript(c, saveTitle, transcript)
				}
				return nil
			}
			line = strings.TrimSpace(l)
		}

		if first {
			rotator.Freeze()
			fmt.Println()
			first = false
		}
		if line == "" {
			continue
		}
		if !paid {
			if !timer.InputAllowed() {
				continue
			}
			timer.Start()
			timerOnce.Do(func() { go timer.Run(ctx, 100*time.Millisecond) })
		}

		transcript = append(transcript, domain.Message{Role: domain.RoleUser, Content: line})

		reply, err := c.streamChat(ctx, transcript, os.Stdout)
		fmt.Println()
		if err != nil {
			var se *serverError
			if errors.As(err, &se) {
				fmt.Println(se.Message)
			} else {
				fmt.Println(msgNetwork)
			}
			// Keep the draft: the user message stays in the transcript and
			// the next submission resends the full context.
			continue
		}
		if reply != "" {
			transcript = append(transcript, domain.Message{Role: domain.RoleAssistant, Content: reply})
		}
	}
}

func saveTranscript(c *client, title string, transcript domain.Transcript) error {
	if len(transcript) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sess, err := c.saveSession(ctx, title, transcript)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	fmt.Printf("Saved as %s\n", sess.ID)
	return nil
}

func runList(ctx context.Context, c *client) error {
	sessions, err := c.listSessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No saved sessions yet.")
		return nil
	}
	for _, s := range sessions {
		title := s.Title
		if title == "" {
			title = "Untitled"
		}
		fmt.Printf("%s  %s  %s\n", s.ID, s.CreatedAt.Format("Jan 2 2006"), title)
	}
	return nil
}

// runReplay plays a saved conversation back, revealing assistant messages
// at the reading cadence instead of dumping them.
func runReplay(ctx context.Context, c *client, id string) error {
	sessions, err := c.listSessions(ctx)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		if s.ID != id {
			continue
		}
		playback := typewriter.NewPlayback()
		for _, m := range s.Messages {
			if m.Role == domain.RoleUser {
				fmt.Printf("> %s\n", m.Content)
				continue
			}
			playback.SetTarget(m.Content, false)
			playback.Run(ctx, func(frame string) {
				fmt.Printf("\r\033[K%s", frame)
			})
			fmt.Println()
		}
		return nil
	}
	return fmt.Errorf("session %s not found", id)
}

func readLines(out chan<- string) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		out <- scanner.Text()
	}
	close(out)
}

// serverError carries the brand-voice message the server returned.
type serverError struct {
	Status  int
	Message string
}

func (e *serverError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

type client struct {
	base  string
	http  *http.Client
	state localstate.Store
}

func newClient(base string, state localstate.Store) *client {
	return &client{
		base:  strings.TrimRight(base, "/"),
		http:  &http.Client{},
		state: state,
	}
}

// do sends the request with the persisted device identity and captures a
// newly issued one from the response.
func (c *client) do(req *http.Request) (*http.Response, error) {
	if id, ok := c.state.Get(anonIDKey); ok {
		req.AddCookie(&http.Cookie{Name: identity.AnonCookieName, Value: id})
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	for _, ck := range res.Cookies() {
		if ck.Name == identity.AnonCookieName && ck.Value != "" {
			_ = c.state.Set(anonIDKey, ck.Value)
		}
	}
	return res, nil
}

// streamChat submits the transcript and writes reply fragments to out as
// they arrive. Returns the accumulated reply text.
func (c *client) streamChat(ctx context.Context, transcript domain.Transcript, out io.Writer) (string, error) {
	body, err := json.Marshal(map[string]any{"messages": transcript})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return "", decodeServerError(res)
	}

	var full strings.Builder
	buf := make([]byte, 512)
	for {
		n, err := res.Body.Read(buf)
		if n > 0 {
			full.Write(buf[:n])
			if _, werr := out.Write(buf[:n]); werr != nil {
				return full.String(), werr
			}
		}
		if err == io.EOF {
			return full.String(), nil
		}
		if err != nil {
			// Partial content stays on screen; the stream just ends.
			return full.String(), nil
		}
	}
}

func (c *client) saveSession(ctx context.Context, title string, transcript domain.Transcript) (*domain.SavedSession, error) {
	body, err := json.Marshal(map[string]any{"title": title, "messages": transcript})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusCreated {
		return nil, decodeServerError(res)
	}
	var sess domain.SavedSession
	if err := json.NewDecoder(res.Body).Decode(&sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *client) listSessions(ctx context.Context) ([]*domain.SavedSession, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/sessions", nil)
	if err != nil {
		return nil, err
	}
	res, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return nil, decodeServerError(res)
	}
	var sessions []*domain.SavedSession
	if err := json.NewDecoder(res.Body).Decode(&sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *client) deleteSession(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.base+"/api/sessions/"+id, nil)
	if err != nil {
		return err
	}
	res, err := c.do(req)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusNoContent {
		return decodeServerError(res)
	}
	return nil
}

func decodeServerError(res *http.Response) error {
	se := &serverError{Status: res.StatusCode, Message: chat.MsgAIFailure}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, 4096)).Decode(&payload); err == nil && payload.Error != "" {
		se.Message = payload.Error
	}
	return se
}
