package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Ordering sorts results by a single field; ties are broken by uid ascending.
type Ordering struct {
	Field string
	Desc  bool
}

// OrderByPublication is the ordering field for first publication time.
const OrderByPublication = "first_publication_date"

// QueryOptions filters and pages a Query.
type QueryOptions struct {
	Type     string
	Fields   []string
	PageSize int
	// Page is 1-based; with After set it pages through the documents after that one.
	Page int
	// After restricts results to documents strictly after the given document id in Ordering.
	After    string
	Ordering Ordering
}

// QueryResponse is one page of raw records plus the cursor for the next page.
type QueryResponse struct {
	Results    []RawRecord `json:"results"`
	NextCursor Cursor      `json:"next_page"`
}

// RawRecord is a document as returned by the content store, before normalization.
type RawRecord struct {
	ID                 string     `json:"id"`
	UID                string     `json:"uid"`
	Type               string     `json:"type"`
	FirstPublicationAt string     `json:"first_publication_date"`
	LastPublicationAt  string     `json:"last_publication_date"`
	Data               RecordData `json:"data"`
}

// RecordData is the post-specific payload of a RawRecord.
type RecordData struct {
	Title    string          `json:"title"`
	Subtitle string          `json:"subtitle"`
	Author   string          `json:"author"`
	Banner   *Banner         `json:"banner,omitempty"`
	Content  []RecordSection `json:"content,omitempty"`
}

// Banner is the optional header image of a post.
type Banner struct {
	URL string `json:"url,omitempty"`
	Alt string `json:"alt,omitempty"`
}

// RecordSection is a raw content section. Body is kept raw so block decoding
// happens once, in the normalizer.
type RecordSection struct {
	Heading string          `json:"heading"`
	Body    json.RawMessage `json:"body,omitempty"`
}

// Gateway is the read-only query interface to the content store.
// Implementations never retry; failures surface as *TransportError.
type Gateway interface {
	Query(ctx context.Context, opts QueryOptions) (*QueryResponse, error)
	FetchCursor(ctx context.Context, cursor Cursor) (*QueryResponse, error)
	// GetByUID returns ErrNotFound when no document has the uid.
	GetByUID(ctx context.Context, docType string, uid string) (*RawRecord, error)
}

// RecordRepository is a writable content store used by the importer.
type RecordRepository interface {
	Gateway
	// GetByID returns ErrNotFound when no document has the id.
	GetByID(ctx context.Context, id string) (*RawRecord, error)
	UpsertRecord(ctx context.Context, rec *RawRecord) error
	// DeleteRecord removes a document and returns the uid it had.
	DeleteRecord(ctx context.Context, id string) (string, error)
}

// TimestampLayout is the offset form the content store emits, e.g. "2021-03-25T19:25:28+0000".
const TimestampLayout = "2006-01-02T15:04:05-0700"

// ParseTimestamp accepts RFC 3339 as well as TimestampLayout and returns the time in UTC.
func ParseTimestamp(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, TimestampLayout} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", value)
}

// FormatTimestamp renders t in TimestampLayout, in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
