package resources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eduforge/eduforge-go/internal/api"
	"github.com/eduforge/eduforge-go/internal/testutil"
)

func newService(t *testing.T, handler http.Handler) (*Service, *Store) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	client, err := api.NewClient(ts.URL)
	if err != nil {
		t.Fatalf("NewClient returned unexpected error: %v", err)
	}
	store := NewStore()
	return NewService(client, store, nil), store
}

func TestServiceCreate(t *testing.T) {
	svc, store := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != BasePath {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req SaveRequest
		if err := testutil.DecodeJSON(r.Body, &req); err != nil {
			t.Errorf("decoding save request: %v", err)
		}
		testutil.WriteJSON(t, w, http.StatusOK, Resource{
			ID:        "res_1",
			SessionID: req.SessionID,
			Kind:      req.Kind,
			Title:     req.Title,
			CreatedAt: time.Now().UTC(),
		})
	}))

	saved, err := svc.Create(context.Background(), SaveRequest{SessionID: "sess_1", Kind: KindChat, Title: "Fractions"})
	if err != nil {
		t.Fatalf("Create returned unexpected error: %v", err)
	}
	if saved.ID != "res_1" {
		t.Errorf("saved.ID = %q, want res_1", saved.ID)
	}
	if _, ok := store.Get("res_1"); !ok {
		t.Error("created resource missing from the store")
	}
}

func TestServiceCreateRejectsMissingID(t *testing.T) {
	svc, store := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(t, w, http.StatusOK, Resource{Kind: KindChat})
	}))

	_, err := svc.Create(context.Background(), SaveRequest{Kind: KindChat})
	testutil.AssertErrorContains(t, err, "missing resource id")
	if store.Len() != 0 {
		t.Error("store must stay untouched when the response is unusable")
	}
}

func TestServiceDelete(t *testing.T) {
	svc, store := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != BasePath+"/res_1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	store.Upsert(Resource{ID: "res_1", Kind: KindChat})

	if err := svc.Delete(context.Background(), "res_1"); err != nil {
		t.Fatalf("Delete returned unexpected error: %v", err)
	}
	if store.Len() != 0 {
		t.Error("deleted resource still in the store")
	}
}

func TestServiceDeleteFailureKeepsLocal(t *testing.T) {
	svc, store := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	store.Upsert(Resource{ID: "res_1", Kind: KindChat})

	if err := svc.Delete(context.Background(), "res_1"); err == nil {
		t.Fatal("Delete should propagate the server error")
	}
	if store.Len() != 1 {
		t.Error("local entry dropped although the server rejected the delete")
	}
}

func TestServiceSync(t *testing.T) {
	remote := []Resource{
		{ID: "res_9", Kind: KindComic, Title: "newest"},
		{ID: "res_8", Kind: KindChat, Title: "older"},
	}
	svc, store := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != BasePath {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		testutil.WriteJSON(t, w, http.StatusOK, remote)
	}))
	store.Upsert(Resource{ID: "stale", Kind: KindChat})

	items, err := svc.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync returned unexpected error: %v", err)
	}
	if len(items) != 2 || items[0].ID != "res_9" {
		t.Fatalf("Sync = %+v, want remote collection in order", items)
	}
	if _, ok := store.Get("stale"); ok {
		t.Error("stale local entry survived the sync")
	}
}
