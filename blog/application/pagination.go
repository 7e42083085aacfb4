package application

import (
	"context"
	"fmt"

	"github.com/dfryer1193/spacetraveling/blog/domain"
	"github.com/rs/zerolog/log"
)

// CursorFetcher exchanges a cursor for the page it points at.
type CursorFetcher interface {
	FetchCursor(ctx context.Context, cursor domain.Cursor) (*domain.QueryResponse, error)
}

// Paginator owns the "load more" merge of store pages into a PagedPostList.
type Paginator struct {
	fetcher CursorFetcher
}

func NewPaginator(fetcher CursorFetcher) *Paginator {
	return &Paginator{fetcher: fetcher}
}

// Initialize builds a list from the first page.
func (p *Paginator) Initialize(page *domain.QueryResponse) (*domain.PagedPostList, error) {
	summaries, err := ToSummaries(page.Results)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize first page: %w", err)
	}
	return domain.NewPagedPostList(summaries, page.NextCursor), nil
}

// LoadMore fetches the page behind the list's cursor and appends it.
// The list is left untouched on any error, so a failed call can be retried.
func (p *Paginator) LoadMore(ctx context.Context, list *domain.PagedPostList) error {
	cursor, err := list.BeginLoad()
	if err != nil {
		return err
	}

	resp, err := p.fetcher.FetchCursor(ctx, cursor)
	if err != nil {
		list.AbortLoad()
		return fmt.Errorf("failed to load next page: %w", err)
	}

	summaries, err := ToSummaries(resp.Results)
	if err != nil {
		list.AbortLoad()
		return fmt.Errorf("failed to normalize next page: %w", err)
	}

	list.CompleteLoad(summaries, resp.NextCursor)

	log.Debug().
		Int("appended", len(summaries)).
		Int("total", list.Len()).
		Bool("has_more", resp.NextCursor != "").
		Msg("Loaded next page of posts")

	return nil
}

// LoadAll keeps loading until the list is complete or limit summaries are loaded (limit <= 0 means no limit).
func (p *Paginator) LoadAll(ctx context.Context, list *domain.PagedPostList, limit int) error {
	for list.HasMore() {
		if limit > 0 && list.Len() >= limit {
			return nil
		}
		if err := p.LoadMore(ctx, list); err != nil {
			return err
		}
	}
	return nil
}
