package integration_tests

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/eduforge/eduforge-go/internal/auth"
	"github.com/eduforge/eduforge-go/internal/config"
	"github.com/eduforge/eduforge-go/internal/resources"
	"github.com/eduforge/eduforge-go/internal/testutil"
	eduforge "github.com/eduforge/eduforge-go/sdk/go/eduforge"
)

// fakeBackend emulates the platform API: cookie auth, streaming
// generation endpoints, and resource CRUD.
type fakeBackend struct {
	t *testing.T

	mu        sync.Mutex
	nextID    int
	saved     []resources.Resource
	loginHits int

	// accessValue is the cookie value currently accepted; refresh
	// reissues it.
	accessValue string
	refuseLogin bool

	// chatScript and comicScript are the frame sequences the stream
	// endpoints play back.
	chatScript  []map[string]any
	comicScript []map[string]any
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	b := &fakeBackend{t: t, accessValue: "tok-1"}
	b.chatScript = []map[string]any{
		{"type": "text_chunk", "content": "Photosynthesis "},
		{"type": "text_chunk", "content": "turns light into sugar."},
		{"type": "done"},
	}
	b.comicScript = []map[string]any{
		{"type": "text_chunk", "content": "A story about the water cycle."},
		{"type": "panel_image", "index": 1, "data": "cGFuZWwy"},
		{"type": "panel_image", "index": 0, "data": "cGFuZWwx"},
		{"type": "story_prompts", "prompts": []string{"What happens to the rain?"}},
		{"type": "done"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc(auth.LoginPath, b.handleLogin)
	mux.HandleFunc(auth.RefreshPath, b.handleRefresh)
	mux.HandleFunc(auth.LogoutPath, b.handleLogout)
	mux.HandleFunc(auth.MePath, b.withAuth(b.handleMe))
	mux.HandleFunc(eduforge.TutorStreamPath, b.withAuth(func(w http.ResponseWriter, r *http.Request) {
		b.streamScript(w, b.chatScript)
	}))
	mux.HandleFunc(eduforge.ComicStreamPath, b.withAuth(func(w http.ResponseWriter, r *http.Request) {
		b.streamScript(w, b.comicScript)
	}))
	mux.HandleFunc(resources.BasePath, b.withAuth(b.handleResources))
	mux.HandleFunc(resources.BasePath+"/", b.withAuth(b.handleResourceByID))

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return b, ts
}

func (b *fakeBackend) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		want := b.accessValue
		b.mu.Unlock()
		if c, err := r.Cookie("access"); err != nil || c.Value != want {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (b *fakeBackend) setCookie(w http.ResponseWriter) {
	b.mu.Lock()
	value := b.accessValue
	b.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: "access", Value: value, Path: "/"})
}

// expireCredential rotates the accepted cookie value so every cookie
// issued so far is rejected until the client refreshes.
func (b *fakeBackend) expireCredential() {
	b.mu.Lock()
	b.nextID++
	b.accessValue = fmt.Sprintf("tok-%d", b.nextID+1)
	b.mu.Unlock()
}

func (b *fakeBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.loginHits++
	refuse := b.refuseLogin
	b.mu.Unlock()
	if refuse {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	b.setCookie(w)
	testutil.WriteJSON(b.t, w, http.StatusOK, auth.Principal{
		ID: "u_1", Email: "teacher@example.com", Name: "Pat", Role: "teacher",
	})
}

func (b *fakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.setCookie(w)
}

func (b *fakeBackend) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: "access", Value: "", Path: "/", MaxAge: -1})
}

func (b *fakeBackend) handleMe(w http.ResponseWriter, r *http.Request) {
	testutil.WriteJSON(b.t, w, http.StatusOK, auth.Principal{
		ID: "u_1", Email: "teacher@example.com", Name: "Pat", Role: "teacher",
	})
}

func (b *fakeBackend) streamScript(w http.ResponseWriter, script []map[string]any) {
	flusher := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	for _, frame := range script {
		_, _ = w.Write([]byte(testutil.StreamRecord(frame)))
		flusher.Flush()
	}
}

func (b *fakeBackend) handleResources(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req resources.SaveRequest
		if err := testutil.DecodeJSON(r.Body, &req); err != nil {
			b.t.Errorf("decoding save request: %v", err)
		}
		b.mu.Lock()
		b.nextID++
		saved := resources.Resource{
			ID:        fmt.Sprintf("res_%d", b.nextID),
			SessionID: req.SessionID,
			Kind:      req.Kind,
			Title:     req.Title,
			Text:      req.Text,
			PartURLs:  req.Parts,
			Metadata:  req.Metadata,
			CreatedAt: time.Now().UTC(),
		}
		b.saved = append([]resources.Resource{saved}, b.saved...)
		b.mu.Unlock()
		testutil.WriteJSON(b.t, w, http.StatusOK, saved)
	case http.MethodGet:
		b.mu.Lock()
		items := append([]resources.Resource(nil), b.saved...)
		b.mu.Unlock()
		testutil.WriteJSON(b.t, w, http.StatusOK, items)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (b *fakeBackend) handleResourceByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Path[len(resources.BasePath)+1:]
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.saved {
		if b.saved[i].ID == id {
			b.saved = append(b.saved[:i], b.saved[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func chatReq(message string) eduforge.ChatRequest {
	return eduforge.ChatRequest{Message: message}
}

func newTestClient(t *testing.T, ts *httptest.Server) *eduforge.Client {
	t.Helper()
	cfg := config.Default()
	cfg.BaseURL = ts.URL
	client, err := eduforge.New(cfg)
	if err != nil {
		t.Fatalf("eduforge.New returned unexpected error: %v", err)
	}
	return client
}
