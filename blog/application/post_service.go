package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/dfryer1193/spacetraveling/blog/domain"
	"github.com/rs/zerolog/log"
)

// DefaultIndexPageSize is the number of summaries on the first index page and every later page.
const DefaultIndexPageSize = 5

// summaryFields is the projection used for index pages.
var summaryFields = []string{"post.title", "post.subtitle", "post.author"}

// Redirect is returned instead of a page when the requested post does not exist.
type Redirect struct {
	Destination string
	Permanent   bool
}

// NotFoundRedirect sends readers of a missing post back to the index.
var NotFoundRedirect = Redirect{Destination: "/", Permanent: false}

// Outcome is either a built page or a redirect.
type Outcome struct {
	Page     *domain.PostPage
	Redirect *Redirect
}

// PostService assembles index and post pages from the content store.
type PostService struct {
	gateway   domain.Gateway
	neighbors *NeighborResolver
	paginator *Paginator
	pageSize  int
}

func NewPostService(gateway domain.Gateway, pageSize int) *PostService {
	if pageSize < 1 {
		pageSize = DefaultIndexPageSize
	}
	return &PostService{
		gateway:   gateway,
		neighbors: NewNeighborResolver(gateway),
		paginator: NewPaginator(gateway),
		pageSize:  pageSize,
	}
}

// Paginator exposes the load-more aggregator bound to this service's store.
func (s *PostService) Paginator() *Paginator {
	return s.paginator
}

// IndexQuery is the query behind the first index page.
func (s *PostService) IndexQuery() domain.QueryOptions {
	return domain.QueryOptions{
		Type:     domain.PostType,
		Fields:   summaryFields,
		PageSize: s.pageSize,
		Page:     1,
		Ordering: domain.Ordering{Field: domain.OrderByPublication, Desc: true},
	}
}

// FirstPage returns the raw first index page.
func (s *PostService) FirstPage(ctx context.Context) (*domain.QueryResponse, error) {
	resp, err := s.gateway.Query(ctx, s.IndexQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to query first index page: %w", err)
	}
	return resp, nil
}

// IndexPage returns a new list holding the first index page.
func (s *PostService) IndexPage(ctx context.Context) (*domain.PagedPostList, error) {
	resp, err := s.FirstPage(ctx)
	if err != nil {
		return nil, err
	}
	return s.paginator.Initialize(resp)
}

// NextPage exchanges a load-more cursor for the raw page behind it.
func (s *PostService) NextPage(ctx context.Context, cursor domain.Cursor) (*domain.QueryResponse, error) {
	if cursor == "" {
		return nil, domain.ErrNoMorePages
	}
	return s.gateway.FetchCursor(ctx, cursor)
}

// BuildPage fetches, normalizes and decorates a post. A missing post yields domain.ErrNotFound.
func (s *PostService) BuildPage(ctx context.Context, uid string) (*domain.PostPage, error) {
	raw, err := s.gateway.GetByUID(ctx, domain.PostType, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to get post %s: %w", uid, err)
	}

	post, err := ToPost(*raw)
	if err != nil {
		return nil, err
	}

	neighbors, err := s.neighbors.Resolve(ctx, post)
	if err != nil {
		return nil, err
	}

	page := &domain.PostPage{
		Post:          post,
		FormattedDate: FormatDate(post.PublishedAt),
		Edited:        post.Edited(),
		ReadingTime:   EstimateReadingTime(post),
		Neighbors:     neighbors,
	}
	if page.Edited {
		page.FormattedEditedAt = FormatDateTime(post.EditedAt)
	}

	log.Debug().Str("uid", uid).Dur("readingTime", page.ReadingTime).Msg("Built post page")
	return page, nil
}

// Lookup builds a page, turning a missing post into a temporary redirect to the index.
func (s *PostService) Lookup(ctx context.Context, uid string) (Outcome, error) {
	page, err := s.BuildPage(ctx, uid)
	if errors.Is(err, domain.ErrNotFound) {
		redirect := NotFoundRedirect
		return Outcome{Redirect: &redirect}, nil
	}
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Page: page}, nil
}
