package api

// PostSummary is one entry of the post index.
type PostSummary struct {
	UID           string `json:"uid"`
	Title         string `json:"title"`
	Subtitle      string `json:"subtitle"`
	Author        string `json:"author"`
	PublishedAt   string `json:"published_at"`
	FormattedDate string `json:"formatted_date"`
}

// PostList is a page of the post index. NextPage is empty on the last page.
type PostList struct {
	Results  []PostSummary `json:"results"`
	NextPage string        `json:"next_page"`
}

// PostLink points at a neighboring post.
type PostLink struct {
	UID   string `json:"uid"`
	Title string `json:"title"`
}

// Section is a rendered content section.
type Section struct {
	Heading string `json:"heading"`
	HTML    string `json:"html"`
}

// Post is a post page as served to API clients.
type Post struct {
	UID               string    `json:"uid"`
	Title             string    `json:"title"`
	Subtitle          string    `json:"subtitle"`
	Author            string    `json:"author"`
	BannerURL         string    `json:"banner_url,omitempty"`
	FormattedDate     string    `json:"formatted_date"`
	Edited            bool      `json:"edited"`
	FormattedEditedAt string    `json:"formatted_edited_at,omitempty"`
	ReadingTime       string    `json:"reading_time"`
	Sections          []Section `json:"sections"`
	Previous          *PostLink `json:"previous,omitempty"`
	Next              *PostLink `json:"next,omitempty"`
}

// Error is the body of every failed API response.
type Error struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}
