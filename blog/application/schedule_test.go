package application

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/dfryer1193/spacetraveling/blog/domain"
)

func TestIsStale(t *testing.T) {
	built := time.Date(2021, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		age  time.Duration
		want bool
	}{
		{name: "just built", age: 0, want: false},
		{name: "one second before the window", age: 1799 * time.Second, want: false},
		{name: "exactly the window", age: 1800 * time.Second, want: false},
		{name: "one nanosecond past", age: 1800*time.Second + 1, want: true},
		{name: "one second past", age: 1801 * time.Second, want: true},
		{name: "clock went backwards", age: -time.Minute, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsStale(built, built.Add(tt.age)); got != tt.want {
				t.Errorf("IsStale() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScheduler_Plan(t *testing.T) {
	gw := newFakeGateway(
		postRecord("1", "oldest", "2021-03-01T10:00:00+0000", "Oldest"),
		postRecord("2", "middle", "2021-03-02T10:00:00+0000", "Middle"),
		postRecord("3", "newest", "2021-03-03T10:00:00+0000", "Newest"),
	)

	plan, err := NewScheduler(gw, DefaultPrebuildCount).Plan(context.Background())
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	if want := []string{"newest", "middle"}; !reflect.DeepEqual(plan.UIDs, want) {
		t.Errorf("UIDs = %v, want %v", plan.UIDs, want)
	}
	if plan.Fallback != FallbackBlocking {
		t.Errorf("Fallback = %q", plan.Fallback)
	}
	if plan.Revalidate != 1800*time.Second {
		t.Errorf("Revalidate = %v", plan.Revalidate)
	}

	if len(gw.queries) != 1 {
		t.Fatalf("queries = %d, want 1", len(gw.queries))
	}
	q := gw.queries[0]
	if !reflect.DeepEqual(q.Fields, []string{"uid"}) || q.PageSize != 2 || !q.Ordering.Desc {
		t.Errorf("query = %+v", q)
	}
}

func TestScheduler_PlanNothing(t *testing.T) {
	gw := newFakeGateway()

	plan, err := NewScheduler(gw, 0).Plan(context.Background())
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(plan.UIDs) != 0 || len(gw.queries) != 0 {
		t.Errorf("plan = %+v, queries = %d", plan, len(gw.queries))
	}

	plan, err = NewScheduler(gw, 5).Plan(context.Background())
	if err != nil {
		t.Fatalf("Plan() on empty store error = %v", err)
	}
	if plan.UIDs == nil || len(plan.UIDs) != 0 {
		t.Errorf("UIDs = %#v, want empty", plan.UIDs)
	}
}

func TestScheduler_PlanError(t *testing.T) {
	gw := newFakeGateway()
	gw.queryErr = &domain.TransportError{Op: "query", StatusCode: 503, Err: errors.New("unavailable")}

	_, err := NewScheduler(gw, 2).Plan(context.Background())
	if !domain.IsRetryable(err) {
		t.Errorf("Plan() error = %v, want retryable transport error", err)
	}
}
