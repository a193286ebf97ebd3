package integration_tests

import (
	"context"
	"strings"
	"testing"

	"github.com/eduforge/eduforge-go/internal/stream"
)

// TestChatFlow walks the full tutor path: login, stream a reply, save
// it, list the library, delete the entry.
func TestChatFlow(t *testing.T) {
	_, ts := newFakeBackend(t)
	client := newTestClient(t, ts)
	ctx := context.Background()

	p, err := client.Login(ctx, "teacher@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Login returned unexpected error: %v", err)
	}
	if p.Role != "teacher" {
		t.Errorf("principal role = %q, want teacher", p.Role)
	}

	var streamed strings.Builder
	snap, err := client.StreamChat(ctx, chatReq("Explain photosynthesis"), func(delta string) {
		streamed.WriteString(delta)
	})
	if err != nil {
		t.Fatalf("StreamChat returned unexpected error: %v", err)
	}

	const wantText = "Photosynthesis turns light into sugar."
	if snap.Text != wantText {
		t.Errorf("assembled text = %q, want %q", snap.Text, wantText)
	}
	if streamed.String() != wantText {
		t.Errorf("streamed deltas = %q, want %q", streamed.String(), wantText)
	}
	if snap.Status != stream.StatusCompleted || !snap.Complete {
		t.Errorf("snapshot terminal state = %+v, want completed", snap)
	}

	saved, err := client.SaveChat(ctx, "Photosynthesis basics", map[string]string{"subject": "biology"})
	if err != nil {
		t.Fatalf("SaveChat returned unexpected error: %v", err)
	}
	if saved.Text != wantText {
		t.Errorf("saved text = %q, want the assembled reply", saved.Text)
	}
	if client.Transient().Visible {
		t.Error("transient should be cleared after a successful save")
	}

	items, err := client.Resources().Sync(ctx)
	if err != nil {
		t.Fatalf("Sync returned unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].ID != saved.ID {
		t.Fatalf("library = %+v, want the one saved chat", items)
	}
	if items[0].Metadata["subject"] != "biology" {
		t.Errorf("metadata = %v, want subject passed through", items[0].Metadata)
	}

	if err := client.Resources().Delete(ctx, saved.ID); err != nil {
		t.Fatalf("Delete returned unexpected error: %v", err)
	}
	items, err = client.Resources().Sync(ctx)
	if err != nil {
		t.Fatalf("Sync after delete returned unexpected error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("library after delete = %+v, want empty", items)
	}
}

func TestSaveWithoutContentFails(t *testing.T) {
	_, ts := newFakeBackend(t)
	client := newTestClient(t, ts)
	ctx := context.Background()

	if _, err := client.Login(ctx, "teacher@example.com", "s3cret"); err != nil {
		t.Fatalf("Login returned unexpected error: %v", err)
	}
	if _, err := client.SaveChat(ctx, "empty", nil); err == nil {
		t.Fatal("SaveChat with nothing generated should fail")
	}
}

// Starting a new generation discards an unsaved transient.
func TestNewChatDiscardsUnsavedTransient(t *testing.T) {
	_, ts := newFakeBackend(t)
	client := newTestClient(t, ts)
	ctx := context.Background()

	if _, err := client.Login(ctx, "teacher@example.com", "s3cret"); err != nil {
		t.Fatalf("Login returned unexpected error: %v", err)
	}

	first, err := client.StreamChat(ctx, chatReq("first question"), nil)
	if err != nil {
		t.Fatalf("first StreamChat returned unexpected error: %v", err)
	}
	if !first.Visible {
		t.Fatal("first generation produced no visible transient")
	}

	second, err := client.StreamChat(ctx, chatReq("second question"), nil)
	if err != nil {
		t.Fatalf("second StreamChat returned unexpected error: %v", err)
	}
	if second.SessionID == first.SessionID {
		t.Error("second generation reused the first session's transient")
	}
	if _, err := client.SaveChat(ctx, "only the second survives", nil); err != nil {
		t.Fatalf("SaveChat returned unexpected error: %v", err)
	}

	items, err := client.Resources().Sync(ctx)
	if err != nil {
		t.Fatalf("Sync returned unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("library = %+v, want exactly the saved second result", items)
	}
}
