package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/blankpage/blankpage/internal/domain"
	"github.com/blankpage/blankpage/internal/identity"
	"github.com/go-chi/chi/v5"
)

// fakeRepo is an in-memory Repository for handler tests.
type fakeRepo struct {
	sessions  []*domain.SavedSession
	saveCalls int
}

func (f *fakeRepo) SaveSession(_ context.Context, ownerID, title string, messages domain.Transcript) (*domain.SavedSession, error) {
	f.saveCalls++
	sess := &domain.SavedSession{
		ID:        "sess-1",
		OwnerID:   ownerID,
		Title:     title,
		Messages:  messages,
		CreatedAt: time.Now().UTC(),
		IsSaved:   true,
	}
	f.sessions = append(f.sessions, sess)
	return sess, nil
}

func (f *fakeRepo) ListSessions(_ context.Context, ownerID string) ([]*domain.SavedSession, error) {
	var out []*domain.SavedSession
	for _, s := range f.sessions {
		if s.OwnerID == ownerID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeRepo) DeleteSession(_ context.Context, id string) error {
	for i, s := range f.sessions {
		if s.ID == id {
			f.sessions = append(f.sessions[:i], f.sessions[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeRepo) Ping(context.Context) error { return nil }
func (f *fakeRepo) Close() error               { return nil }

func sessionRouter(repo *fakeRepo) chi.Router {
	r := chi.NewRouter()
	NewSessionHandler(repo).RegisterRoutes(r)
	return r
}

func authed(req *http.Request, ownerID string) *http.Request {
	return req.WithContext(identity.WithUserID(req.Context(), ownerID))
}

func TestSaveSession_Created(t *testing.T) {
	repo := &fakeRepo{}
	router := sessionRouter(repo)

	body := `{"title":"Tuesday","messages":[{"role":"user","content":"hi"},{"role":"assistant","content":"What matters?"}]}`
	req := authed(httptest.NewRequest(http.MethodPost, "/api/sessions/", strings.NewReader(body)), "anon_1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var sess domain.SavedSession
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if sess.Title != "Tuesday" || len(sess.Messages) != 2 {
		t.Errorf("Unexpected saved session: %+v", sess)
	}
	if strings.Contains(rec.Body.String(), "anon_1") {
		t.Error("Owner id must not appear in the response body")
	}
}

func TestSaveSession_EmptyTranscriptIsNoOp(t *testing.T) {
	repo := &fakeRepo{}
	router := sessionRouter(repo)

	req := authed(httptest.NewRequest(http.MethodPost, "/api/sessions/", strings.NewReader(`{"messages":[]}`)), "anon_1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rec.Code)
	}
	if repo.saveCalls != 0 {
		t.Errorf("Expected no repository call for an empty transcript, got %d", repo.saveCalls)
	}
}

func TestSaveSession_InvalidTranscript(t *testing.T) {
	repo := &fakeRepo{}
	router := sessionRouter(repo)

	body := `{"messages":[{"role":"narrator","content":"x"}]}`
	req := authed(httptest.NewRequest(http.MethodPost, "/api/sessions/", strings.NewReader(body)), "anon_1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
	if repo.saveCalls != 0 {
		t.Errorf("Expected no repository call, got %d", repo.saveCalls)
	}
}

func TestSessions_RequireIdentity(t *testing.T) {
	router := sessionRouter(&fakeRepo{})

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/sessions/"},
		{http.MethodGet, "/api/sessions/"},
		{http.MethodDelete, "/api/sessions/sess-1"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader("{}"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", tc.method, tc.path, rec.Code)
		}
	}
}

func TestListSessions_EmptyIsJSONArray(t *testing.T) {
	router := sessionRouter(&fakeRepo{})

	req := authed(httptest.NewRequest(http.MethodGet, "/api/sessions/", nil), "anon_1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("Expected an empty JSON array, got %q", got)
	}
}

func TestListSessions_ScopedToOwner(t *testing.T) {
	repo := &fakeRepo{}
	router := sessionRouter(repo)

	transcript := domain.Transcript{{Role: domain.RoleUser, Content: "hi"}}
	if _, err := repo.SaveSession(context.Background(), "anon_1", "mine", transcript); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if _, err := repo.SaveSession(context.Background(), "anon_2", "theirs", transcript); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	req := authed(httptest.NewRequest(http.MethodGet, "/api/sessions/", nil), "anon_1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var sessions []*domain.SavedSession
	if err := json.Unmarshal(rec.Body.Bytes(), &sessions); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Title != "mine" {
		t.Errorf("Expected only the owner's sessions, got %+v", sessions)
	}
}

func TestDeleteSession_Idempotent(t *testing.T) {
	repo := &fakeRepo{}
	router := sessionRouter(repo)

	transcript := domain.Transcript{{Role: domain.RoleUser, Content: "hi"}}
	if _, err := repo.SaveSession(context.Background(), "anon_1", "", transcript); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		req := authed(httptest.NewRequest(http.MethodDelete, "/api/sessions/sess-1", nil), "anon_1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("Delete attempt %d: expected 204, got %d", i+1, rec.Code)
		}
	}
}
