package application

import (
	"context"
	"fmt"

	"github.com/dfryer1193/spacetraveling/blog/domain"
)

// neighborFields is the projection used for neighbor lookups; only the link text is needed.
var neighborFields = []string{"post.title"}

// NeighborResolver finds the chronologically adjacent posts of a post.
type NeighborResolver struct {
	gateway domain.Gateway
}

func NewNeighborResolver(gateway domain.Gateway) *NeighborResolver {
	return &NeighborResolver{gateway: gateway}
}

// Resolve issues one descending and one ascending single-result query, both
// starting after the post's own document, and returns whatever each finds.
func (r *NeighborResolver) Resolve(ctx context.Context, post *domain.Post) (domain.NeighborPair, error) {
	var pair domain.NeighborPair

	previous, err := r.adjacent(ctx, post, true)
	if err != nil {
		return pair, fmt.Errorf("failed to resolve previous post of %s: %w", post.UID, err)
	}

	next, err := r.adjacent(ctx, post, false)
	if err != nil {
		return pair, fmt.Errorf("failed to resolve next post of %s: %w", post.UID, err)
	}

	pair.Previous = previous
	pair.Next = next
	return pair, nil
}

func (r *NeighborResolver) adjacent(ctx context.Context, post *domain.Post, desc bool) (*domain.PostLink, error) {
	resp, err := r.gateway.Query(ctx, domain.QueryOptions{
		Type:     domain.PostType,
		Fields:   neighborFields,
		PageSize: 1,
		After:    post.ID,
		Ordering: domain.Ordering{Field: domain.OrderByPublication, Desc: desc},
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Results) == 0 {
		return nil, nil
	}

	raw := resp.Results[0]
	if raw.UID == "" {
		return nil, &domain.MalformedRecordError{UID: raw.ID, Field: "uid"}
	}

	return &domain.PostLink{
		UID:   raw.UID,
		Title: raw.Data.Title,
	}, nil
}
