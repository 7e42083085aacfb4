package rest

import (
	"context"
	"net/http"

	"github.com/dfryer1193/spacetraveling/blog/domain"
	"github.com/dfryer1193/spacetraveling/internal/middleware"
	"github.com/gin-gonic/gin"
)

// PostLister serves the raw pages behind the post index.
type PostLister interface {
	FirstPage(ctx context.Context) (*domain.QueryResponse, error)
	NextPage(ctx context.Context, cursor domain.Cursor) (*domain.QueryResponse, error)
}

// PageGetter returns a built post page, or domain.ErrNotFound.
type PageGetter interface {
	Get(ctx context.Context, uid string) (*domain.PostPage, error)
}

// RouteRegistrar adds routes owned by another package, such as the git webhook.
type RouteRegistrar interface {
	RegisterRoutes(r gin.IRouter)
}

// Server renders the blog's pages and JSON API.
type Server struct {
	posts PostLister
	pages PageGetter
}

func NewServer(posts PostLister, pages PageGetter) *Server {
	return &Server{
		posts: posts,
		pages: pages,
	}
}

// NewApi builds the engine with logging, panic recovery and every route.
func NewApi(s *Server, extra ...RouteRegistrar) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestLogger(), gin.CustomRecovery(middleware.HandlePanics()))
	router.SetHTMLTemplate(templates)

	router.GET("/", s.GetIndex)
	router.GET("/posts/:slug", s.GetPostPage)
	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	postsV1 := router.Group("api/posts")
	{
		postsV1.GET("", s.GetPosts)
		postsV1.GET("/next", s.GetNextPosts)
		postsV1.GET("/:slug", s.GetPost)
	}

	for _, r := range extra {
		r.RegisterRoutes(router)
	}

	return router
}
