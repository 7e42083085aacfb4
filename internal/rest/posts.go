package rest

import (
	"net/http"
	"strings"

	"github.com/dfryer1193/spacetraveling/api"
	"github.com/dfryer1193/spacetraveling/blog/application"
	"github.com/dfryer1193/spacetraveling/blog/domain"
	"github.com/gin-gonic/gin"
)

// GetPosts returns the first page of the post index.
func (s *Server) GetPosts(c *gin.Context) {
	resp, err := s.posts.FirstPage(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	s.writePostList(c, resp)
}

// GetNextPosts exchanges a load-more cursor for the next page of the index.
func (s *Server) GetNextPosts(c *gin.Context) {
	cursor := strings.TrimSpace(c.Query("cursor"))
	resp, err := s.posts.NextPage(c.Request.Context(), domain.Cursor(cursor))
	if err != nil {
		writeError(c, err)
		return
	}
	s.writePostList(c, resp)
}

func (s *Server) writePostList(c *gin.Context, resp *domain.QueryResponse) {
	summaries, err := application.ToSummaries(resp.Results)
	if err != nil {
		writeError(c, err)
		return
	}

	list := api.PostList{
		Results:  make([]api.PostSummary, 0, len(summaries)),
		NextPage: string(resp.NextCursor),
	}
	for _, p := range summaries {
		list.Results = append(list.Results, toAPISummary(p))
	}
	c.JSON(http.StatusOK, list)
}

// GetPost returns a single post page as JSON.
func (s *Server) GetPost(c *gin.Context) {
	page, err := s.pages.Get(c.Request.Context(), c.Param("slug"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAPIPost(page))
}

func toAPISummary(p domain.PostSummary) api.PostSummary {
	return api.PostSummary{
		UID:           p.UID,
		Title:         p.Title,
		Subtitle:      p.Subtitle,
		Author:        p.Author,
		PublishedAt:   domain.FormatTimestamp(p.PublishedAt),
		FormattedDate: application.FormatDate(p.PublishedAt),
	}
}

func toAPIPost(page *domain.PostPage) api.Post {
	post := page.Post
	out := api.Post{
		UID:               post.UID,
		Title:             post.Title,
		Subtitle:          post.Subtitle,
		Author:            post.Author,
		BannerURL:         post.BannerURL,
		FormattedDate:     page.FormattedDate,
		Edited:            page.Edited,
		FormattedEditedAt: page.FormattedEditedAt,
		ReadingTime:       application.FormatReadingTime(page.ReadingTime),
		Sections:          make([]api.Section, 0, len(post.Sections)),
		Previous:          toAPILink(page.Neighbors.Previous),
		Next:              toAPILink(page.Neighbors.Next),
	}
	for _, sec := range post.Sections {
		out.Sections = append(out.Sections, api.Section{
			Heading: sec.Heading,
			HTML:    domain.AsHTML(sec.Body),
		})
	}
	return out
}

func toAPILink(l *domain.PostLink) *api.PostLink {
	if l == nil {
		return nil
	}
	return &api.PostLink{UID: l.UID, Title: l.Title}
}
