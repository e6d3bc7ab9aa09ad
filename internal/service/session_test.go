package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Strob0t/SandForge/internal/adapter/memstore"
	"github.com/Strob0t/SandForge/internal/domain/message"
	"github.com/Strob0t/SandForge/internal/port/storage"
	"github.com/Strob0t/SandForge/internal/service"
)

func TestSessionRoundTrip(t *testing.T) {
	svc := service.NewSessionService(memstore.New(), discard())
	ctx := context.Background()

	sess, err := svc.Create(ctx)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if sess.ID == "" {
		t.Fatal("session has no ID")
	}

	sess.Messages = []message.Message{
		message.System("prompt"),
		message.User("what time is it"),
		message.Assistant("late", nil),
	}
	if err := svc.Save(ctx, sess); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := svc.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(loaded.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(loaded.Messages))
	}
	if loaded.Messages[1].Content.Text != "what time is it" {
		t.Fatalf("message content lost: %+v", loaded.Messages[1])
	}
	if loaded.Title != "what time is it" {
		t.Fatalf("expected derived title, got %q", loaded.Title)
	}
}

func TestSessionGetMissing(t *testing.T) {
	svc := service.NewSessionService(memstore.New(), discard())

	_, err := svc.Get(context.Background(), "nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionListNewestFirst(t *testing.T) {
	svc := service.NewSessionService(memstore.New(), discard())
	ctx := context.Background()

	first, err := svc.Create(ctx)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	second, err := svc.Create(ctx)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Touch the first session so it becomes the most recent.
	first.Messages = append(first.Messages, message.User("bump"))
	if err := svc.Save(ctx, first); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	summaries, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].ID != first.ID {
		t.Fatalf("expected %s first, got %s", first.ID, summaries[0].ID)
	}
	if summaries[0].MessageCount != 1 {
		t.Fatalf("unexpected message count: %d", summaries[0].MessageCount)
	}
	_ = second
}

func TestSessionDelete(t *testing.T) {
	svc := service.NewSessionService(memstore.New(), discard())
	ctx := context.Background()

	sess, err := svc.Create(ctx)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := svc.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := svc.Get(ctx, sess.ID); err == nil {
		t.Fatal("expected error after delete")
	}

	// Deleting again is a no-op.
	if err := svc.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("repeat Delete failed: %v", err)
	}
}
