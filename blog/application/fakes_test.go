package application

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dfryer1193/spacetraveling/blog/domain"
)

// fakeGateway is an in-memory content store that pages and orders like the real ones.
type fakeGateway struct {
	mu      sync.Mutex
	records []domain.RawRecord
	queries []domain.QueryOptions
	cursors map[domain.Cursor]domain.QueryOptions

	queryErr error
	fetchErr error
	getErr   error
}

func newFakeGateway(records ...domain.RawRecord) *fakeGateway {
	return &fakeGateway{
		records: records,
		cursors: make(map[domain.Cursor]domain.QueryOptions),
	}
}

func (g *fakeGateway) Query(_ context.Context, opts domain.QueryOptions) (*domain.QueryResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.queries = append(g.queries, opts)
	if g.queryErr != nil {
		return nil, g.queryErr
	}
	return g.query(opts), nil
}

func (g *fakeGateway) query(opts domain.QueryOptions) *domain.QueryResponse {
	var docs []domain.RawRecord
	for _, r := range g.records {
		if opts.Type == "" || r.Type == opts.Type {
			docs = append(docs, r)
		}
	}
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		if a.FirstPublicationAt != b.FirstPublicationAt {
			if opts.Ordering.Desc {
				return a.FirstPublicationAt > b.FirstPublicationAt
			}
			return a.FirstPublicationAt < b.FirstPublicationAt
		}
		return a.UID < b.UID
	})

	if opts.After != "" {
		for i, d := range docs {
			if d.ID == opts.After {
				docs = docs[i+1:]
				break
			}
		}
	}

	size := opts.PageSize
	if size < 1 {
		size = 20
	}
	page := opts.Page
	if page < 1 {
		page = 1
	}

	start := (page - 1) * size
	if start > len(docs) {
		start = len(docs)
	}
	end := min(start+size, len(docs))

	resp := &domain.QueryResponse{Results: append([]domain.RawRecord{}, docs[start:end]...)}
	if end < len(docs) {
		next := opts
		next.Page = page + 1
		cursor := domain.Cursor(fmt.Sprintf("cursor-%d-%d", len(g.cursors), next.Page))
		g.cursors[cursor] = next
		resp.NextCursor = cursor
	}
	return resp
}

func (g *fakeGateway) FetchCursor(_ context.Context, cursor domain.Cursor) (*domain.QueryResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	opts, ok := g.cursors[cursor]
	if !ok {
		return nil, domain.ErrInvalidCursor
	}
	return g.query(opts), nil
}

func (g *fakeGateway) GetByUID(_ context.Context, docType string, uid string) (*domain.RawRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.getErr != nil {
		return nil, g.getErr
	}
	for _, r := range g.records {
		if r.Type == docType && r.UID == uid {
			cp := r
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func postRecord(id, uid, published, title string) domain.RawRecord {
	return domain.RawRecord{
		ID:                 id,
		UID:                uid,
		Type:               domain.PostType,
		FirstPublicationAt: published,
		LastPublicationAt:  published,
		Data: domain.RecordData{
			Title:    title,
			Subtitle: "About " + title,
			Author:   "Joseph Oliveira",
		},
	}
}
