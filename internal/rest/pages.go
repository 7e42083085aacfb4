package rest

import (
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/dfryer1193/spacetraveling/blog/application"
	"github.com/dfryer1193/spacetraveling/blog/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

//go:embed tmpl/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"formatDate":  application.FormatDate,
	"readingTime": application.FormatReadingTime,
	"richText": func(blocks []domain.RichBlock) template.HTML {
		// AsHTML escapes all block text.
		return template.HTML(domain.AsHTML(blocks))
	},
}).ParseFS(templateFS, "tmpl/*.tmpl"))

type indexView struct {
	Posts    []domain.PostSummary
	NextPage string
}

// GetIndex renders the first index page. Further pages are loaded from /api/posts/next.
func (s *Server) GetIndex(c *gin.Context) {
	resp, err := s.posts.FirstPage(c.Request.Context())
	if err != nil {
		s.renderError(c, err)
		return
	}

	summaries, err := application.ToSummaries(resp.Results)
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.HTML(http.StatusOK, "index.tmpl", indexView{
		Posts:    summaries,
		NextPage: string(resp.NextCursor),
	})
}

// GetPostPage renders a post. Unknown posts redirect to the index.
func (s *Server) GetPostPage(c *gin.Context) {
	page, err := s.pages.Get(c.Request.Context(), c.Param("slug"))
	if errors.Is(err, domain.ErrNotFound) {
		redirect := application.NotFoundRedirect
		status := http.StatusFound
		if redirect.Permanent {
			status = http.StatusMovedPermanently
		}
		c.Redirect(status, redirect.Destination)
		return
	}
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.HTML(http.StatusOK, "post.tmpl", page)
}

func (s *Server) renderError(c *gin.Context, err error) {
	status, _ := statusFor(err)
	log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Failed to render page")
	c.HTML(status, "error.tmpl", gin.H{"Status": status})
}
