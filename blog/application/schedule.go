package application

import (
	"context"
	"fmt"
	"time"

	"github.com/dfryer1193/spacetraveling/blog/domain"
)

// StalenessWindow is how long a built page is served before it is regenerated.
const StalenessWindow = 1800 * time.Second

// DefaultPrebuildCount is how many of the newest posts are built ahead of time.
const DefaultPrebuildCount = 2

// Fallback says what happens on a request for a path that was not built ahead of time.
type Fallback string

// FallbackBlocking makes the first requester wait for a synchronous build.
const FallbackBlocking Fallback = "blocking"

// IsStale reports whether a page built at lastBuilt must be regenerated at now.
// A page is fresh for the whole window, including its last instant.
func IsStale(lastBuilt, now time.Time) bool {
	return now.Sub(lastBuilt) > StalenessWindow
}

// BuildPlan lists the identities to build ahead of time and the policy for everything else.
type BuildPlan struct {
	UIDs       []string
	Fallback   Fallback
	Revalidate time.Duration
}

// Scheduler decides which post pages are pre-built.
type Scheduler struct {
	gateway       domain.Gateway
	prebuildCount int
}

func NewScheduler(gateway domain.Gateway, prebuildCount int) *Scheduler {
	if prebuildCount < 0 {
		prebuildCount = 0
	}
	return &Scheduler{
		gateway:       gateway,
		prebuildCount: prebuildCount,
	}
}

// Plan enumerates the newest posts' identities with a uid-only projection.
func (s *Scheduler) Plan(ctx context.Context) (*BuildPlan, error) {
	plan := &BuildPlan{
		UIDs:       []string{},
		Fallback:   FallbackBlocking,
		Revalidate: StalenessWindow,
	}
	if s.prebuildCount == 0 {
		return plan, nil
	}

	resp, err := s.gateway.Query(ctx, domain.QueryOptions{
		Type:     domain.PostType,
		Fields:   []string{"uid"},
		PageSize: s.prebuildCount,
		Page:     1,
		Ordering: domain.Ordering{Field: domain.OrderByPublication, Desc: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate post paths: %w", err)
	}

	for _, raw := range resp.Results {
		if raw.UID == "" {
			continue
		}
		plan.UIDs = append(plan.UIDs, raw.UID)
	}
	return plan, nil
}
