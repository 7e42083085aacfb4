package domain

import (
	"errors"
	"testing"
	"time"
)

func TestPostEdited(t *testing.T) {
	published := time.Date(2021, 3, 15, 19, 25, 28, 0, time.UTC)

	tests := []struct {
		name     string
		editedAt time.Time
		want     bool
	}{
		{name: "same instant", editedAt: published, want: false},
		{name: "one second later", editedAt: published.Add(time.Second), want: true},
		{name: "earlier", editedAt: published.Add(-time.Second), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Post{PublishedAt: published, EditedAt: tt.editedAt}
			if got := p.Edited(); got != tt.want {
				t.Errorf("Edited() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPagedPostList(t *testing.T) {
	first := []PostSummary{{UID: "a"}, {UID: "b"}}
	list := NewPagedPostList(first, "c1")

	// The list owns its items.
	first[0].UID = "mutated"
	if list.Items()[0].UID != "a" {
		t.Fatal("list shares the caller's slice")
	}
	items := list.Items()
	items[1].UID = "mutated"
	if list.Items()[1].UID != "b" {
		t.Fatal("Items() exposes internal state")
	}

	cursor, err := list.BeginLoad()
	if err != nil || cursor != "c1" {
		t.Fatalf("BeginLoad() = %q, %v", cursor, err)
	}
	if _, err := list.BeginLoad(); !errors.Is(err, ErrLoadMoreInFlight) {
		t.Errorf("second BeginLoad() error = %v, want ErrLoadMoreInFlight", err)
	}

	list.CompleteLoad([]PostSummary{{UID: "c"}}, "")
	if list.Len() != 3 || list.HasMore() {
		t.Errorf("after CompleteLoad: Len() = %d, HasMore() = %v", list.Len(), list.HasMore())
	}
	if _, err := list.BeginLoad(); !errors.Is(err, ErrNoMorePages) {
		t.Errorf("BeginLoad() on complete list error = %v, want ErrNoMorePages", err)
	}
}

func TestPagedPostList_AbortLoad(t *testing.T) {
	list := NewPagedPostList([]PostSummary{{UID: "a"}}, "c1")

	if _, err := list.BeginLoad(); err != nil {
		t.Fatal(err)
	}
	list.AbortLoad()

	if list.Len() != 1 || list.Cursor() != "c1" {
		t.Errorf("AbortLoad changed state: Len() = %d, Cursor() = %q", list.Len(), list.Cursor())
	}
	if _, err := list.BeginLoad(); err != nil {
		t.Errorf("BeginLoad() after abort error = %v", err)
	}
}
