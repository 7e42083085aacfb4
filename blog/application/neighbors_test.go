package application

import (
	"context"
	"errors"
	"testing"

	"github.com/dfryer1193/spacetraveling/blog/domain"
)

func TestNeighborResolver_Resolve(t *testing.T) {
	gw := newFakeGateway(
		postRecord("1", "p1", "2021-03-01T10:00:00+0000", "Post 1"),
		postRecord("2", "p2", "2021-03-02T10:00:00+0000", "Post 2"),
		postRecord("3", "p3", "2021-03-03T10:00:00+0000", "Post 3"),
	)
	resolver := NewNeighborResolver(gw)

	tests := []struct {
		id, uid      string
		wantPrevious string
		wantNext     string
	}{
		{id: "1", uid: "p1", wantPrevious: "", wantNext: "p2"},
		{id: "2", uid: "p2", wantPrevious: "p1", wantNext: "p3"},
		{id: "3", uid: "p3", wantPrevious: "p2", wantNext: ""},
	}

	for _, tt := range tests {
		t.Run(tt.uid, func(t *testing.T) {
			pair, err := resolver.Resolve(context.Background(), &domain.Post{ID: tt.id, UID: tt.uid})
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got := linkUID(pair.Previous); got != tt.wantPrevious {
				t.Errorf("Previous = %q, want %q", got, tt.wantPrevious)
			}
			if got := linkUID(pair.Next); got != tt.wantNext {
				t.Errorf("Next = %q, want %q", got, tt.wantNext)
			}
		})
	}
}

func TestNeighborResolver_QueryShape(t *testing.T) {
	gw := newFakeGateway(
		postRecord("1", "p1", "2021-03-01T10:00:00+0000", "Post 1"),
		postRecord("2", "p2", "2021-03-02T10:00:00+0000", "Post 2"),
	)

	pair, err := NewNeighborResolver(gw).Resolve(context.Background(), &domain.Post{ID: "2", UID: "p2"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if pair.Previous == nil || pair.Previous.Title != "Post 1" {
		t.Errorf("Previous = %+v", pair.Previous)
	}

	if len(gw.queries) != 2 {
		t.Fatalf("queries = %d, want 2", len(gw.queries))
	}
	for i, q := range gw.queries {
		if q.PageSize != 1 || q.After != "2" || q.Type != domain.PostType || q.Ordering.Field != domain.OrderByPublication {
			t.Errorf("query %d = %+v", i, q)
		}
	}
	if !gw.queries[0].Ordering.Desc || gw.queries[1].Ordering.Desc {
		t.Error("expected one descending and one ascending query")
	}
}

func TestNeighborResolver_Errors(t *testing.T) {
	gw := newFakeGateway(
		postRecord("1", "", "2021-03-01T10:00:00+0000", "No uid"),
		postRecord("2", "p2", "2021-03-02T10:00:00+0000", "Post 2"),
	)

	_, err := NewNeighborResolver(gw).Resolve(context.Background(), &domain.Post{ID: "2", UID: "p2"})
	if !errors.Is(err, domain.ErrMalformedRecord) {
		t.Errorf("Resolve() error = %v, want ErrMalformedRecord", err)
	}

	gw.queryErr = &domain.TransportError{Op: "query", Err: errors.New("connection reset")}
	_, err = NewNeighborResolver(gw).Resolve(context.Background(), &domain.Post{ID: "2", UID: "p2"})
	if !domain.IsTransportError(err) {
		t.Errorf("Resolve() error = %v, want transport error", err)
	}
}

func linkUID(l *domain.PostLink) string {
	if l == nil {
		return ""
	}
	return l.UID
}
