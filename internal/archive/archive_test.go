package archive

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/msto63/personachat/internal/session"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "sub", "archive.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Error("Open() expected error for empty path")
	}
}

func TestSaveAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	id, err := s.Save(ctx, Entry{
		SessionID: "sess-1",
		Model:     "llama-3.1-8b-instant",
		Persona:   "steve-jobs",
		Turns: []session.Turn{
			{Role: session.RoleUser, Content: "My name is Alex", CreatedAt: ts},
			{Role: session.RoleAssistant, Content: "Hello Alex.", CreatedAt: ts.Add(time.Second)},
			{Role: session.RoleUser, Content: "", CreatedAt: ts.Add(2 * time.Second)},
		},
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if id == "" {
		t.Fatal("Save() returned empty id")
	}

	c, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if c.SessionID != "sess-1" || c.Model != "llama-3.1-8b-instant" || c.Persona != "steve-jobs" {
		t.Errorf("conversation = %+v", c)
	}
	if c.Title != "My name is Alex" || c.TurnCount != 3 {
		t.Errorf("title = %q, turn_count = %d", c.Title, c.TurnCount)
	}
	if len(c.Turns) != 3 {
		t.Fatalf("turns = %d, want 3", len(c.Turns))
	}
	if c.Turns[1].Role != session.RoleAssistant || c.Turns[1].Content != "Hello Alex." {
		t.Errorf("turn[1] = %+v", c.Turns[1])
	}
	if c.Turns[2].Content != "" {
		t.Errorf("empty turn content = %q", c.Turns[2].Content)
	}
	if !c.Turns[0].CreatedAt.Equal(ts) {
		t.Errorf("created_at = %v, want %v", c.Turns[0].CreatedAt, ts)
	}
}

func TestSaveEmptyTranscript(t *testing.T) {
	s := openTestStore(t)
	id, err := s.Save(context.Background(), Entry{SessionID: "x"})
	if err != nil || id != "" {
		t.Errorf("Save(empty) = %q, %v; want \"\", nil", id, err)
	}
	list, _ := s.List(context.Background(), 0, 0)
	if len(list) != 0 {
		t.Errorf("List() = %d entries, want 0", len(list))
	}
}

func TestSaveSession(t *testing.T) {
	s := openTestStore(t)
	sess := session.New("abc", session.Settings{Model: "qwen/qwen3-32b"})
	sess.Store.AppendTurn(session.RoleUser, "hi")
	sess.Store.AppendTurn(session.RoleAssistant, "hello")

	id, err := s.SaveSession(context.Background(), sess, "steve-jobs")
	if err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}
	c, err := s.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if c.SessionID != "abc" || c.Model != "qwen/qwen3-32b" || len(c.Turns) != 2 {
		t.Errorf("conversation = %+v", c)
	}
}

func TestListOrderAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var ids []string
	for _, q := range []string{"first", "second", "third"} {
		id, err := s.Save(ctx, Entry{Turns: []session.Turn{{Role: session.RoleUser, Content: q}}})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	list, err := s.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("List() = %d, want 3", len(list))
	}
	if list[0].Title != "third" || list[2].Title != "first" {
		t.Errorf("order = %s, %s, %s", list[0].Title, list[1].Title, list[2].Title)
	}
	if list[0].Turns != nil {
		t.Error("List() should not load turns")
	}

	page, _ := s.List(ctx, 1, 1)
	if len(page) != 1 || page[0].Title != "second" {
		t.Errorf("page = %+v", page)
	}

	if err := s.Delete(ctx, ids[0]); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, ids[0]); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(deleted) error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, ids[0]); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(deleted) error = %v, want ErrNotFound", err)
	}

	stats, err := s.Statistics(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats["total_conversations"].(int64) != 2 || stats["total_turns"].(int64) != 2 {
		t.Errorf("stats = %v", stats)
	}
}

func TestGetUnknown(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestTitle(t *testing.T) {
	long := strings.Repeat("word ", 30)
	tests := []struct {
		name  string
		turns []session.Turn
		want  string
	}{
		{"first user turn", []session.Turn{{Role: session.RoleAssistant, Content: "hi"}, {Role: session.RoleUser, Content: "  What   is\nthis? "}}, "What is this?"},
		{"no user turn", []session.Turn{{Role: session.RoleAssistant, Content: "hi"}}, "Untitled conversation"},
		{"skips empty", []session.Turn{{Role: session.RoleUser, Content: " "}, {Role: session.RoleUser, Content: "real"}}, "real"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Title(tt.turns); got != tt.want {
				t.Errorf("Title() = %q, want %q", got, tt.want)
			}
		})
	}

	got := Title([]session.Turn{{Role: session.RoleUser, Content: long}})
	if !strings.HasSuffix(got, "…") || len([]rune(got)) > titleLength+1 {
		t.Errorf("Title(long) = %q", got)
	}
}
