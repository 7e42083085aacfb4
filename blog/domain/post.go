package domain

import (
	"sync"
	"time"
)

// PostType is the only document type the blog reads from the content store.
const PostType = "post"

// PostSummary is the index-page view of a post.
type PostSummary struct {
	UID         string    `json:"uid"`
	PublishedAt time.Time `json:"published_at"`
	Title       string    `json:"title"`
	Subtitle    string    `json:"subtitle"`
	Author      string    `json:"author"`
}

// Post is a fully normalized post as rendered on its own page.
// EditedAt equals PublishedAt when the post was never edited after publication.
type Post struct {
	ID          string           `json:"id"`
	UID         string           `json:"uid"`
	PublishedAt time.Time        `json:"published_at"`
	EditedAt    time.Time        `json:"edited_at"`
	Title       string           `json:"title"`
	Subtitle    string           `json:"subtitle"`
	BannerURL   string           `json:"banner_url,omitempty"`
	Author      string           `json:"author"`
	Sections    []ContentSection `json:"sections"`
}

// Edited reports whether the post changed after it was first published.
func (p *Post) Edited() bool {
	return p.EditedAt.After(p.PublishedAt)
}

// ContentSection is a headed run of rich text blocks. Sections render in order.
type ContentSection struct {
	Heading string      `json:"heading"`
	Body    []RichBlock `json:"body"`
}

// PostLink identifies a neighboring post.
type PostLink struct {
	UID   string `json:"uid"`
	Title string `json:"title"`
}

// NeighborPair holds the chronologically previous (older) and next (newer) posts.
// Either side is nil at the ends of the corpus.
type NeighborPair struct {
	Previous *PostLink `json:"previous,omitempty"`
	Next     *PostLink `json:"next,omitempty"`
}

// PostPage is everything a post page needs, assembled once per build.
type PostPage struct {
	Post              *Post         `json:"post"`
	FormattedDate     string        `json:"formatted_date"`
	FormattedEditedAt string        `json:"formatted_edited_at,omitempty"`
	Edited            bool          `json:"edited"`
	ReadingTime       time.Duration `json:"reading_time"`
	Neighbors         NeighborPair  `json:"neighbors"`
}

// CacheEntry is a built post page and when it was built.
type CacheEntry struct {
	Page    *PostPage `json:"page"`
	BuiltAt time.Time `json:"built_at"`
}

// Cursor is an opaque continuation token. The empty cursor marks the last page.
type Cursor string

// PagedPostList is the client-visible list of post summaries for one browsing session.
// Items only ever grow by appending whole pages.
type PagedPostList struct {
	mu       sync.RWMutex
	items    []PostSummary
	cursor   Cursor
	inFlight bool
}

// NewPagedPostList creates a list holding the first page and its continuation cursor.
func NewPagedPostList(items []PostSummary, cursor Cursor) *PagedPostList {
	cp := make([]PostSummary, len(items))
	copy(cp, items)
	return &PagedPostList{
		items:  cp,
		cursor: cursor,
	}
}

// Items returns a copy of the summaries loaded so far, in store order.
func (l *PagedPostList) Items() []PostSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	cp := make([]PostSummary, len(l.items))
	copy(cp, l.items)
	return cp
}

// Cursor returns the cursor for the next page, or "" when the list is complete.
func (l *PagedPostList) Cursor() Cursor {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cursor
}

// HasMore reports whether another page can be loaded.
func (l *PagedPostList) HasMore() bool {
	return l.Cursor() != ""
}

// Len returns the number of loaded summaries.
func (l *PagedPostList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// BeginLoad claims the list for a load-more call and returns the cursor to fetch.
// It fails if the list is complete or another load is outstanding.
func (l *PagedPostList) BeginLoad() (Cursor, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cursor == "" {
		return "", ErrNoMorePages
	}
	if l.inFlight {
		return "", ErrLoadMoreInFlight
	}
	l.inFlight = true
	return l.cursor, nil
}

// CompleteLoad appends a page and replaces the cursor, releasing the claim taken by BeginLoad.
func (l *PagedPostList) CompleteLoad(page []PostSummary, next Cursor) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.items = append(l.items, page...)
	l.cursor = next
	l.inFlight = false
}

// AbortLoad releases the claim without touching items or cursor.
func (l *PagedPostList) AbortLoad() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inFlight = false
}
