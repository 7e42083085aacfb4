// Package prismic is a read-only client for a Prismic-style documents API.
package prismic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dfryer1193/spacetraveling/blog/domain"
)

var _ domain.Gateway = (*Client)(nil)

// refTTL bounds how long a master ref is reused before the API root is asked again.
const refTTL = 30 * time.Second

// HTTPClient interface for making HTTP requests (allows injection for testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithAccessToken sets the token sent with every request.
func WithAccessToken(token string) ClientOption {
	return func(c *Client) {
		c.accessToken = token
	}
}

// Client queries a repository's documents endpoint.
type Client struct {
	httpClient  HTTPClient
	endpoint    *url.URL
	accessToken string

	mu         sync.Mutex
	ref        string
	refFetched time.Time
	now        func() time.Time
}

// NewClient creates a client for the repository API rooted at endpoint,
// e.g. https://spacetraveling.cdn.prismic.io/api/v2.
func NewClient(endpoint string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q: scheme and host are required", endpoint)
	}

	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		endpoint:   u,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type apiRoot struct {
	Refs []struct {
		ID          string `json:"id"`
		Ref         string `json:"ref"`
		IsMasterRef bool   `json:"isMasterRef"`
	} `json:"refs"`
}

// searchResponse is the documents search payload. next_page is null on the last page.
type searchResponse struct {
	Page     int                `json:"page"`
	Results  []domain.RawRecord `json:"results"`
	NextPage *string            `json:"next_page"`
}

// Query runs a documents search.
func (c *Client) Query(ctx context.Context, opts domain.QueryOptions) (*domain.QueryResponse, error) {
	ref, err := c.masterRef(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("ref", ref)
	params.Set("q", fmt.Sprintf(`[[at(document.type,%q)]]`, opts.Type))
	if opts.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(opts.PageSize))
	}
	if opts.Page > 1 {
		params.Set("page", strconv.Itoa(opts.Page))
	}
	if len(opts.Fields) > 0 {
		params.Set("fetch", strings.Join(opts.Fields, ","))
	}
	if opts.After != "" {
		params.Set("after", opts.After)
	}
	params.Set("orderings", orderings(opts))

	return c.search(ctx, "query", c.searchURL(params))
}

// FetchCursor follows a next_page URL returned by an earlier search.
func (c *Client) FetchCursor(ctx context.Context, cursor domain.Cursor) (*domain.QueryResponse, error) {
	u, err := url.Parse(string(cursor))
	if err != nil || u.Host != c.endpoint.Host || !strings.HasPrefix(u.Path, c.endpoint.Path) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCursor, cursor)
	}
	return c.search(ctx, "fetch cursor", u.String())
}

// GetByUID looks a single document up by its uid.
func (c *Client) GetByUID(ctx context.Context, docType string, uid string) (*domain.RawRecord, error) {
	ref, err := c.masterRef(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("ref", ref)
	params.Set("q", fmt.Sprintf(`[[at(my.%s.uid,%q)]]`, docType, uid))
	params.Set("pageSize", "1")

	resp, err := c.search(ctx, "get by uid", c.searchURL(params))
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("%s %q: %w", docType, uid, domain.ErrNotFound)
	}
	rec := resp.Results[0]
	return &rec, nil
}

// orderings renders the primary ordering with uid as tie-breaker.
func orderings(opts domain.QueryOptions) string {
	field := opts.Ordering.Field
	if field == "" {
		field = domain.OrderByPublication
	}
	primary := "document." + field
	if opts.Ordering.Desc {
		primary += " desc"
	}
	docType := opts.Type
	if docType == "" {
		docType = domain.PostType
	}
	return "[" + primary + ",my." + docType + ".uid]"
}

func (c *Client) searchURL(params url.Values) string {
	if c.accessToken != "" {
		params.Set("access_token", c.accessToken)
	}
	u := *c.endpoint
	u.Path += "/documents/search"
	u.RawQuery = params.Encode()
	return u.String()
}

func (c *Client) search(ctx context.Context, op string, target string) (*domain.QueryResponse, error) {
	var payload searchResponse
	if err := c.getJSON(ctx, op, target, &payload); err != nil {
		return nil, err
	}

	resp := &domain.QueryResponse{Results: payload.Results}
	if resp.Results == nil {
		resp.Results = []domain.RawRecord{}
	}
	if payload.NextPage != nil {
		resp.NextCursor = domain.Cursor(*payload.NextPage)
	}
	return resp, nil
}

func (c *Client) masterRef(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.ref != "" && c.now().Sub(c.refFetched) < refTTL {
		ref := c.ref
		c.mu.Unlock()
		return ref, nil
	}
	c.mu.Unlock()

	target := c.endpoint.String()
	if c.accessToken != "" {
		target += "?" + url.Values{"access_token": {c.accessToken}}.Encode()
	}

	var root apiRoot
	if err := c.getJSON(ctx, "fetch master ref", target, &root); err != nil {
		return "", err
	}

	for _, r := range root.Refs {
		if r.IsMasterRef {
			c.mu.Lock()
			c.ref = r.Ref
			c.refFetched = c.now()
			c.mu.Unlock()
			return r.Ref, nil
		}
	}
	return "", &domain.TransportError{Op: "fetch master ref", Err: fmt.Errorf("API root lists no master ref")}
}

func (c *Client) getJSON(ctx context.Context, op string, target string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &domain.TransportError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &domain.TransportError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(body))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &domain.TransportError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}
