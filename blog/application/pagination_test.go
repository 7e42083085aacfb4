package application

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dfryer1193/spacetraveling/blog/domain"
)

// sevenPosts returns posts p1..p7, p7 being the newest.
func sevenPosts() []domain.RawRecord {
	var records []domain.RawRecord
	for i := 1; i <= 7; i++ {
		records = append(records, postRecord(
			fmt.Sprintf("id%d", i),
			fmt.Sprintf("p%d", i),
			fmt.Sprintf("2021-03-%02dT10:00:00+0000", i),
			fmt.Sprintf("Post %d", i),
		))
	}
	return records
}

func uids(items []domain.PostSummary) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		out = append(out, s.UID)
	}
	return out
}

func firstList(t *testing.T, gw *fakeGateway, pageSize int) (*PostService, *domain.PagedPostList) {
	t.Helper()
	svc := NewPostService(gw, pageSize)
	list, err := svc.IndexPage(context.Background())
	if err != nil {
		t.Fatalf("IndexPage() error = %v", err)
	}
	return svc, list
}

func TestPaginator_LoadMoreAppendsUntilExhausted(t *testing.T) {
	gw := newFakeGateway(sevenPosts()...)
	svc, list := firstList(t, gw, 5)

	if got := uids(list.Items()); fmt.Sprint(got) != "[p7 p6 p5 p4 p3]" {
		t.Fatalf("first page = %v", got)
	}
	if !list.HasMore() {
		t.Fatal("HasMore() = false after first page")
	}

	before := list.Items()
	if err := svc.Paginator().LoadMore(context.Background(), list); err != nil {
		t.Fatalf("LoadMore() error = %v", err)
	}

	after := list.Items()
	if got := uids(after); fmt.Sprint(got) != "[p7 p6 p5 p4 p3 p2 p1]" {
		t.Errorf("after load more = %v", got)
	}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("item %d changed: %+v -> %+v", i, before[i], after[i])
		}
	}
	if list.HasMore() {
		t.Error("HasMore() = true after last page")
	}

	err := svc.Paginator().LoadMore(context.Background(), list)
	if !errors.Is(err, domain.ErrNoMorePages) {
		t.Errorf("LoadMore() on complete list error = %v, want ErrNoMorePages", err)
	}
	if list.Len() != 7 {
		t.Errorf("Len() = %d after terminal LoadMore", list.Len())
	}
}

func TestPaginator_SinglePageCorpus(t *testing.T) {
	gw := newFakeGateway(sevenPosts()[:3]...)
	svc, list := firstList(t, gw, 5)

	if list.Len() != 3 || list.HasMore() {
		t.Fatalf("Len() = %d, HasMore() = %v", list.Len(), list.HasMore())
	}
	if err := svc.Paginator().LoadMore(context.Background(), list); !errors.Is(err, domain.ErrNoMorePages) {
		t.Errorf("LoadMore() error = %v, want ErrNoMorePages", err)
	}
}

func TestPaginator_EmptyCorpus(t *testing.T) {
	_, list := firstList(t, newFakeGateway(), 5)

	if list.Len() != 0 || list.HasMore() {
		t.Errorf("Len() = %d, HasMore() = %v", list.Len(), list.HasMore())
	}
}

func TestPaginator_RejectsConcurrentLoad(t *testing.T) {
	gw := newFakeGateway(sevenPosts()...)
	svc, list := firstList(t, gw, 5)

	cursor, err := list.BeginLoad()
	if err != nil {
		t.Fatalf("BeginLoad() error = %v", err)
	}

	err = svc.Paginator().LoadMore(context.Background(), list)
	if !errors.Is(err, domain.ErrLoadMoreInFlight) {
		t.Fatalf("LoadMore() error = %v, want ErrLoadMoreInFlight", err)
	}
	if list.Len() != 5 || list.Cursor() != cursor {
		t.Errorf("state changed by rejected call: len=%d cursor=%q", list.Len(), list.Cursor())
	}

	list.AbortLoad()
	if err := svc.Paginator().LoadMore(context.Background(), list); err != nil {
		t.Errorf("LoadMore() after abort error = %v", err)
	}
}

func TestPaginator_FailureLeavesStateUntouched(t *testing.T) {
	tests := []struct {
		name    string
		breakIt func(gw *fakeGateway)
		check   func(error) bool
	}{
		{
			name: "transport failure",
			breakIt: func(gw *fakeGateway) {
				gw.fetchErr = &domain.TransportError{Op: "fetch cursor", StatusCode: 503, Err: errors.New("unavailable")}
			},
			check: domain.IsRetryable,
		},
		{
			name: "malformed record",
			breakIt: func(gw *fakeGateway) {
				gw.records[0].Data.Title = ""
			},
			check: func(err error) bool { return errors.Is(err, domain.ErrMalformedRecord) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newFakeGateway(sevenPosts()...)
			svc, list := firstList(t, gw, 5)
			cursor := list.Cursor()

			tt.breakIt(gw)
			err := svc.Paginator().LoadMore(context.Background(), list)
			if err == nil || !tt.check(err) {
				t.Fatalf("LoadMore() error = %v", err)
			}
			if list.Len() != 5 || list.Cursor() != cursor {
				t.Errorf("state changed: len=%d cursor=%q", list.Len(), list.Cursor())
			}

			if _, err := list.BeginLoad(); err != nil {
				t.Errorf("list still claimed after failure: %v", err)
			}
		})
	}
}

func TestPaginator_LoadAll(t *testing.T) {
	gw := newFakeGateway(sevenPosts()...)

	svc, list := firstList(t, gw, 2)
	if err := svc.Paginator().LoadAll(context.Background(), list, 0); err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if list.Len() != 7 || list.HasMore() {
		t.Errorf("Len() = %d, HasMore() = %v", list.Len(), list.HasMore())
	}

	svc, list = firstList(t, gw, 2)
	if err := svc.Paginator().LoadAll(context.Background(), list, 3); err != nil {
		t.Fatalf("LoadAll(limit) error = %v", err)
	}
	if list.Len() != 4 || !list.HasMore() {
		t.Errorf("limited Len() = %d, HasMore() = %v", list.Len(), list.HasMore())
	}
}
