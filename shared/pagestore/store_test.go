package pagestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dfryer1193/spacetraveling/blog/domain"
)

func testEntry(uid string) *domain.CacheEntry {
	return &domain.CacheEntry{
		Page: &domain.PostPage{
			Post:          &domain.Post{ID: "1", UID: uid, Title: "Title " + uid},
			FormattedDate: "15 mar 2021",
			ReadingTime:   4 * time.Minute,
		},
		BuiltAt: time.Date(2021, 3, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		uid  string
		want string
	}{
		{uid: "my-post", want: "page-my-post.json"},
		{uid: "Post_2", want: "page-Post_2.json"},
		{uid: "", want: ""},
		{uid: "../etc/passwd", want: ""},
		{uid: "a/b", want: ""},
		{uid: "-leading", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.uid, func(t *testing.T) {
			if got := Key(tt.uid); got != tt.want {
				t.Errorf("Key(%q) = %q, want %q", tt.uid, got, tt.want)
			}
		})
	}
}

func TestLocalStore_SaveLoadDelete(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	ctx := context.Background()

	if err := store.Save(ctx, testEntry("hello")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(ctx, "hello")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Page.Post.Title != "Title hello" || got.Page.ReadingTime != 4*time.Minute {
		t.Errorf("Load() = %+v", got.Page)
	}
	if !got.BuiltAt.Equal(testEntry("hello").BuiltAt) {
		t.Errorf("BuiltAt = %v", got.BuiltAt)
	}

	if err := store.Delete(ctx, "hello"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Load(ctx, "hello"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Load() after delete error = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "hello"); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestLocalStore_SaveRejectsBadEntries(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}

	if err := store.Save(context.Background(), &domain.CacheEntry{}); err == nil {
		t.Error("Save() of entry without post should fail")
	}
	if err := store.Save(context.Background(), testEntry("../escape")); err == nil {
		t.Error("Save() with unsafe uid should fail")
	}
}

func TestLocalStore_List(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	ctx := context.Background()

	for _, uid := range []string{"one", "two"} {
		if err := store.Save(ctx, testEntry(uid)); err != nil {
			t.Fatalf("Save(%s) error = %v", uid, err)
		}
	}
	// Unrelated and corrupt files are ignored
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "page-broken.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}

	pages, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("List() returned %d pages, want 2", len(pages))
	}
}
